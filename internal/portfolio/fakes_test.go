package portfolio

import (
	"context"
	"errors"
	"strings"
	"sync"

	"insightstox/internal/database"
	"insightstox/internal/models"
	"insightstox/internal/quotes"

	"github.com/shopspring/decimal"
)

// memStore stages writes per unit of work and publishes them on success.
type memStore struct {
	mu          sync.Mutex
	holdings    map[string]models.Holding
	instruments map[string]models.Instrument
	ledger      []models.LedgerEntry

	readErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{holdings: map[string]models.Holding{}, instruments: map[string]models.Instrument{}}
}

func hkey(email, symbol string) string { return email + "|" + symbol }

func (s *memStore) GetHolding(_ context.Context, email, symbol string) (*models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	h, ok := s.holdings[hkey(email, symbol)]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *memStore) ListHoldings(_ context.Context, email string) ([]models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []models.Holding
	for k, h := range s.holdings {
		if strings.HasPrefix(k, email+"|") {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *memStore) GetInstrument(_ context.Context, symbol string) (*models.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.instruments[symbol]
	if !ok {
		return nil, nil
	}
	return &in, nil
}

func (s *memStore) InsertInstrument(_ context.Context, in models.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instruments[in.Symbol]; !ok {
		s.instruments[in.Symbol] = in
	}
	return nil
}

func (s *memStore) Atomically(ctx context.Context, fn func(database.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{store: s, holdings: map[string]models.Holding{}}
	if err := fn(tx); err != nil {
		return err
	}
	for k, h := range tx.holdings {
		s.holdings[k] = h
	}
	s.ledger = append(s.ledger, tx.ledger...)
	return nil
}

func (s *memStore) ledgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

type memTx struct {
	store    *memStore
	holdings map[string]models.Holding
	ledger   []models.LedgerEntry
}

func (t *memTx) LockHolding(_ context.Context, email, symbol string) (models.Holding, error) {
	if h, ok := t.holdings[hkey(email, symbol)]; ok {
		return h, nil
	}
	if h, ok := t.store.holdings[hkey(email, symbol)]; ok {
		return h, nil
	}
	return models.Holding{Email: email, Symbol: symbol}, nil
}

func (t *memTx) InsertLedgerEntry(_ context.Context, e models.LedgerEntry) error {
	t.ledger = append(t.ledger, e)
	return nil
}

func (t *memTx) SaveHolding(_ context.Context, h models.Holding) error {
	if t.store.saveErr != nil {
		return t.store.saveErr
	}
	t.holdings[hkey(h.Email, h.Symbol)] = h
	return nil
}

func (t *memTx) ListLedger(_ context.Context, email, symbol string) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range append(append([]models.LedgerEntry{}, t.store.ledger...), t.ledger...) {
		if e.Email == email && e.Symbol == symbol {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeFetcher serves fixed quotes; symbols listed in fail return an error.
type fakeFetcher struct {
	mu         sync.Mutex
	quotes     map[string]models.Quote
	fail       map[string]error
	priceCalls int
	extCalls   int
}

func (f *fakeFetcher) GetPrice(_ context.Context, symbol string) (models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCalls++
	if err := f.fail[symbol]; err != nil {
		return models.Snapshot{}, err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return models.Snapshot{}, quotes.ErrUnavailable
	}
	q.Symbol = symbol
	return q.Snapshot(), nil
}

func (f *fakeFetcher) GetExtendedQuote(_ context.Context, symbol string) (models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extCalls++
	if err := f.fail[symbol]; err != nil {
		return models.Quote{}, err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return models.Quote{}, quotes.ErrUnavailable
	}
	q.Symbol = symbol
	return q, nil
}

func priced(price string) models.Quote {
	return models.Quote{HasPrice: true, Current: decimal.RequireFromString(price), Currency: "INR"}
}

var errBoom = errors.New("boom")

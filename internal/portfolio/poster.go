package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"insightstox/internal/database"
	"insightstox/internal/metrics"
	"insightstox/internal/models"
	"insightstox/internal/quotes"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const notAvailable = "N/A"

// Store is the storage side of posting. GetHolding and GetInstrument return
// nil with no error when the row does not exist.
type Store interface {
	GetHolding(ctx context.Context, email, symbol string) (*models.Holding, error)
	GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error)
	InsertInstrument(ctx context.Context, in models.Instrument) error
	Atomically(ctx context.Context, fn func(database.Tx) error) error
}

// Receipt carries the two rows written by a successful post.
type Receipt struct {
	Entry   models.LedgerEntry `json:"insert"`
	Holding models.Holding     `json:"update"`
}

type Poster struct {
	store     Store
	quotes    quotes.Fetcher
	metrics   *metrics.Metrics
	dbTimeout time.Duration
	log       *logrus.Logger
	newID     func() string
}

func NewPoster(store Store, q quotes.Fetcher, m *metrics.Metrics, dbTimeout time.Duration, log *logrus.Logger) *Poster {
	if dbTimeout <= 0 {
		dbTimeout = 5 * time.Second
	}
	return &Poster{
		store:     store,
		quotes:    q,
		metrics:   m,
		dbTimeout: dbTimeout,
		log:       log,
		newID:     func() string { return uuid.NewString() },
	}
}

// PostTransaction applies one BUY or SELL for req.Email. Nothing is written
// unless the ledger entry and the summary update both commit.
func (p *Poster) PostTransaction(ctx context.Context, req TransactionRequest) (*Receipt, error) {
	rec, err := p.post(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = string(Kind(err))
		p.log.Warnf("post %s %s x%s for %s failed: %v", req.Side, req.Symbol, req.Quantity, req.Email, err)
	}
	p.metrics.Transactions.WithLabelValues(string(req.Side), outcome).Inc()
	return rec, err
}

func (p *Poster) post(ctx context.Context, req TransactionRequest) (*Receipt, error) {
	if !req.Quantity.IsPositive() || req.Symbol == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: email, symbol and a positive quantity are required", ErrInvalidInput)
	}

	current, err := p.holding(ctx, req.Email, req.Symbol)
	if err != nil {
		return nil, err
	}
	if req.Side == models.Sell && req.Quantity.GreaterThan(current.CurrentHolding) {
		return nil, fmt.Errorf("%w: selling %s of %s held", ErrInsufficientHoldings, req.Quantity, current.CurrentHolding)
	}

	price, err := p.resolvePrice(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	var rec Receipt
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.dbTimeout)
	defer cancel()
	err = p.store.Atomically(dbCtx, func(tx database.Tx) error {
		locked, err := tx.LockHolding(dbCtx, req.Email, req.Symbol)
		if err != nil {
			return err
		}
		updated, signed, err := Apply(locked, req.Side, req.Quantity, price)
		if err != nil {
			return err
		}
		updated.LastUpdated = time.Now().UTC()

		entry := models.LedgerEntry{
			ID:              p.newID(),
			Email:           req.Email,
			Symbol:          req.Symbol,
			Quantity:        signed,
			Price:           price,
			TransactionType: req.Side,
			TransactionDate: req.Timestamp,
		}
		if err := tx.InsertLedgerEntry(dbCtx, entry); err != nil {
			return err
		}
		if err := tx.SaveHolding(dbCtx, updated); err != nil {
			return err
		}
		rec = Receipt{Entry: entry, Holding: updated}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientHoldings) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInternal) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	p.log.Infof("posted %s %s x%s @ %s for %s", req.Side, req.Symbol, req.Quantity, price.StringFixed(4), req.Email)
	return &rec, nil
}

func (p *Poster) holding(ctx context.Context, email, symbol string) (models.Holding, error) {
	dbCtx, cancel := context.WithTimeout(ctx, p.dbTimeout)
	defer cancel()
	h, err := p.store.GetHolding(dbCtx, email, symbol)
	if err != nil {
		return models.Holding{}, fmt.Errorf("%w: read holding: %v", ErrPersistenceFailure, err)
	}
	if h == nil {
		return models.Holding{Email: email, Symbol: symbol}, nil
	}
	return *h, nil
}

// resolvePrice returns the display-currency execution price. Unknown symbols
// take the extended path so the instrument row can be created first.
func (p *Poster) resolvePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	dbCtx, cancel := context.WithTimeout(ctx, p.dbTimeout)
	inst, err := p.store.GetInstrument(dbCtx, symbol)
	cancel()
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: read instrument: %v", ErrPersistenceFailure, err)
	}

	if inst != nil {
		snap, err := p.quotes.GetPrice(ctx, symbol)
		if err != nil {
			return decimal.Zero, err
		}
		return snap.Current, nil
	}

	q, err := p.quotes.GetExtendedQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	dbCtx, cancel = context.WithTimeout(ctx, p.dbTimeout)
	defer cancel()
	if err := p.store.InsertInstrument(dbCtx, instrumentFromQuote(symbol, q)); err != nil {
		return decimal.Zero, fmt.Errorf("%w: insert instrument: %v", ErrPersistenceFailure, err)
	}
	p.log.Infof("registered instrument %s", symbol)
	return q.Current, nil
}

func instrumentFromQuote(symbol string, q models.Quote) models.Instrument {
	or := func(s *string) *string {
		if s == nil || *s == "" {
			v := notAvailable
			return &v
		}
		return s
	}
	cur := q.Currency
	return models.Instrument{
		Symbol:    symbol,
		ShortName: or(q.ShortName),
		LongName:  or(q.LongName),
		Sector:    or(q.Sector),
		Currency:  or(&cur),
		QuoteType: or(q.QuoteType),
		Market:    or(q.Market),
		Exchange:  or(q.Exchange),
		CreatedAt: time.Now().UTC(),
	}
}

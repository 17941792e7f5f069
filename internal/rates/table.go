// Package rates resolves currency codes to multipliers against the display
// currency: amount_display = amount_foreign * multiplier.
package rates

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrRateNotFound = errors.New("exchange rate not found")

type Table interface {
	Rate(ctx context.Context, currency string) (decimal.Decimal, error)
}

// MemoryTable is populated from outside (see service.RateRefresher) and read
// by the quote path.
type MemoryTable struct {
	mu      sync.RWMutex
	display string
	rates   map[string]decimal.Decimal
}

func NewMemoryTable(display string) *MemoryTable {
	return &MemoryTable{display: normalize(display), rates: map[string]decimal.Decimal{}}
}

func (t *MemoryTable) Display() string { return t.display }

func (t *MemoryTable) Rate(_ context.Context, currency string) (decimal.Decimal, error) {
	cur := normalize(currency)
	if cur == "" {
		return decimal.Zero, ErrRateNotFound
	}
	if cur == t.display {
		return decimal.NewFromInt(1), nil
	}
	t.mu.RLock()
	r, ok := t.rates[cur]
	t.mu.RUnlock()
	if !ok || !r.IsPositive() {
		return decimal.Zero, ErrRateNotFound
	}
	return r, nil
}

// Replace swaps the whole table in one step.
func (t *MemoryTable) Replace(rates map[string]decimal.Decimal) {
	next := make(map[string]decimal.Decimal, len(rates))
	for k, v := range rates {
		next[normalize(k)] = v
	}
	t.mu.Lock()
	t.rates = next
	t.mu.Unlock()
}

func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rates)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

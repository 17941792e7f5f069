package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"insightstox/internal/cache"
	"insightstox/internal/metrics"
	"insightstox/internal/models"
	"insightstox/internal/rates"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnavailable     = errors.New("quote unavailable")
	ErrRateUnavailable = errors.New("exchange rate unavailable")
)

// Fetcher is what the portfolio core consumes.
type Fetcher interface {
	GetPrice(ctx context.Context, symbol string) (models.Snapshot, error)
	GetExtendedQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// Service resolves quotes through the price cache, falling back to the
// provider on a miss. Prices leave here in the display currency.
type Service struct {
	provider Provider
	cache    *cache.PriceCache
	rates    rates.Table
	metrics  *metrics.Metrics
	timeout  time.Duration
	log      *logrus.Logger
}

func NewService(p Provider, c *cache.PriceCache, r rates.Table, m *metrics.Metrics, timeout time.Duration, log *logrus.Logger) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{provider: p, cache: c, rates: r, metrics: m, timeout: timeout, log: log}
}

func (s *Service) GetPrice(ctx context.Context, symbol string) (models.Snapshot, error) {
	if snap, ok := s.cache.Get(symbol); ok {
		s.metrics.QuoteCache.WithLabelValues("hit").Inc()
		return snap, nil
	}
	s.metrics.QuoteCache.WithLabelValues("miss").Inc()

	q, err := s.fetch(ctx, symbol, ModulePrice)
	if err != nil {
		return models.Snapshot{}, err
	}
	return s.cache.Add(symbol, q.Snapshot()), nil
}

func (s *Service) GetExtendedQuote(ctx context.Context, symbol string) (models.Quote, error) {
	q, err := s.fetch(ctx, symbol, AllModules...)
	if err != nil {
		return models.Quote{}, err
	}
	s.cache.Add(symbol, q.Snapshot())
	return q, nil
}

func (s *Service) fetch(ctx context.Context, symbol string, modules ...string) (models.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	q, err := s.provider.Summary(ctx, symbol, modules...)
	s.metrics.QuoteFetch.Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Warnf("quote fetch for %s failed: %v", symbol, err)
		return models.Quote{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
	}
	if !q.HasPrice {
		return models.Quote{}, fmt.Errorf("%w: %s: no usable price", ErrUnavailable, symbol)
	}

	rate, err := s.rates.Rate(ctx, q.Currency)
	if err != nil {
		s.log.Warnf("no exchange rate for %s (%s): %v", q.Currency, symbol, err)
		return models.Quote{}, fmt.Errorf("%w: %s: %v", ErrRateUnavailable, q.Currency, err)
	}
	return convert(q, rate), nil
}

// convert moves the money fields of q into the display currency. Volumes,
// percentages and market cap are left as the provider reported them.
func convert(q models.Quote, rate decimal.Decimal) models.Quote {
	if rate.Equal(decimal.NewFromInt(1)) {
		return q
	}
	q.Current = q.Current.Mul(rate)
	q.PreviousClose = q.PreviousClose.Mul(rate)
	q.Change = q.Change.Mul(rate)

	f, _ := rate.Float64()
	for _, p := range []**float64{&q.DayLow, &q.DayHigh, &q.YearLow, &q.YearHigh, &q.DividendRate, &q.TrailingRate, &q.LastDividend} {
		if *p != nil {
			v := **p * f
			*p = &v
		}
	}
	return q
}

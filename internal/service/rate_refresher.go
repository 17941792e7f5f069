package service

import (
	"context"
	"time"

	"insightstox/internal/cache"
	"insightstox/internal/metrics"
	"insightstox/internal/rates"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type RateSource interface {
	Fetch(ctx context.Context, display string) (map[string]decimal.Decimal, error)
}

// RateRefresher keeps the in-memory rate table current and drops expired
// price snapshots on the same schedule.
type RateRefresher struct {
	source  RateSource
	table   *rates.MemoryTable
	prices  *cache.PriceCache
	metrics *metrics.Metrics
	timeout time.Duration
	log     *logrus.Logger
	cron    *cron.Cron
}

func NewRateRefresher(src RateSource, table *rates.MemoryTable, prices *cache.PriceCache, m *metrics.Metrics, log *logrus.Logger) *RateRefresher {
	return &RateRefresher{
		source:  src,
		table:   table,
		prices:  prices,
		metrics: m,
		timeout: 30 * time.Second,
		log:     log,
		cron:    cron.New(),
	}
}

// Refresh replaces the whole table on success. On failure the previous
// rates stay in place.
func (r *RateRefresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if n := r.prices.Purge(); n > 0 {
		r.log.Debugf("purged %d expired price snapshots", n)
	}

	fetched, err := r.source.Fetch(ctx, r.table.Display())
	if err != nil {
		r.metrics.RateRefreshes.WithLabelValues("error").Inc()
		r.log.Warnf("exchange rate refresh failed: %v", err)
		return err
	}
	r.table.Replace(fetched)
	r.metrics.RateRefreshes.WithLabelValues("ok").Inc()
	r.log.Infof("loaded %d exchange rates against %s", len(fetched), r.table.Display())
	return nil
}

// Start runs one refresh right away, then follows schedule until ctx ends.
func (r *RateRefresher) Start(ctx context.Context, schedule string) error {
	if _, err := r.cron.AddFunc(schedule, func() { _ = r.Refresh(ctx) }); err != nil {
		return err
	}
	_ = r.Refresh(ctx)
	r.cron.Start()
	r.log.Infof("rate refresher scheduled (%s)", schedule)

	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
		r.log.Info("rate refresher stopping")
	}()
	return nil
}

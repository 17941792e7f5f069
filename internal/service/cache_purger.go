package service

import (
	"context"

	"insightstox/internal/cache"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CachePurger drops expired price snapshots on a schedule. The server runs
// it when rates come from Redis and no RateRefresher is purging.
type CachePurger struct {
	prices *cache.PriceCache
	log    *logrus.Logger
	cron   *cron.Cron
}

func NewCachePurger(prices *cache.PriceCache, log *logrus.Logger) *CachePurger {
	return &CachePurger{prices: prices, log: log, cron: cron.New()}
}

func (p *CachePurger) Purge() int {
	n := p.prices.Purge()
	if n > 0 {
		p.log.Debugf("purged %d expired price snapshots", n)
	}
	return n
}

// Start follows schedule until ctx ends.
func (p *CachePurger) Start(ctx context.Context, schedule string) error {
	if _, err := p.cron.AddFunc(schedule, func() { p.Purge() }); err != nil {
		return err
	}
	p.cron.Start()
	p.log.Infof("price cache purge scheduled (%s)", schedule)

	go func() {
		<-ctx.Done()
		<-p.cron.Stop().Done()
	}()
	return nil
}

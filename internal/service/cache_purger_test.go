package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"insightstox/internal/cache"
	"insightstox/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePurger_Purge(t *testing.T) {
	var offset atomic.Int64
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := cache.NewPriceCacheWithClock(time.Minute, func() time.Time { return base.Add(time.Duration(offset.Load())) })
	prices.Add("AAPL", models.Snapshot{Symbol: "AAPL"})
	offset.Store(int64(30 * time.Second))
	prices.Add("TCS.NS", models.Snapshot{Symbol: "TCS.NS"})
	offset.Store(int64(70 * time.Second))

	p := NewCachePurger(prices, logrus.New())
	assert.Equal(t, 1, p.Purge())
	assert.Equal(t, 1, prices.Len())
	_, ok := prices.Get("TCS.NS")
	assert.True(t, ok)
}

func TestCachePurger_Start(t *testing.T) {
	var offset atomic.Int64
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := cache.NewPriceCacheWithClock(time.Minute, func() time.Time { return base.Add(time.Duration(offset.Load())) })
	prices.Add("AAPL", models.Snapshot{Symbol: "AAPL"})
	offset.Store(int64(2 * time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewCachePurger(prices, logrus.New())
	assert.Error(t, p.Start(ctx, "not a schedule"))
	require.NoError(t, p.Start(ctx, "@every 1s"))
	require.Eventually(t, func() bool { return prices.Len() == 0 }, 3*time.Second, 50*time.Millisecond)
}

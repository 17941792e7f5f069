package cache

import (
	"strings"
	"sync"
	"time"

	"insightstox/internal/models"
)

const DefaultTTL = 60 * time.Second

// PriceCache keeps the last fetched snapshot per symbol. An entry is absent
// once now >= ExpiresAt; stale entries are never returned.
type PriceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]models.Snapshot
}

func NewPriceCache(ttl time.Duration) *PriceCache {
	return NewPriceCacheWithClock(ttl, time.Now)
}

func NewPriceCacheWithClock(ttl time.Duration, now func() time.Time) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PriceCache{ttl: ttl, now: now, entries: make(map[string]models.Snapshot)}
}

func (c *PriceCache) Get(symbol string) (models.Snapshot, bool) {
	c.mu.RLock()
	s, ok := c.entries[key(symbol)]
	c.mu.RUnlock()
	if !ok || !c.now().Before(s.ExpiresAt) {
		return models.Snapshot{}, false
	}
	return s, true
}

// Add overwrites any entry for symbol and stamps a fresh expiry.
func (c *PriceCache) Add(symbol string, s models.Snapshot) models.Snapshot {
	s.ExpiresAt = c.now().Add(c.ttl)
	c.mu.Lock()
	c.entries[key(symbol)] = s
	c.mu.Unlock()
	return s
}

func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops expired entries and reports how many were removed.
func (c *PriceCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, s := range c.entries {
		if !now.Before(s.ExpiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

package rates

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// RedisTable reads multipliers from a hash maintained by another process,
// keyed fx:rates:<DISPLAY> with one field per currency code.
type RedisTable struct {
	client  *redis.Client
	display string
}

func NewRedisTable(client *redis.Client, display string) *RedisTable {
	return &RedisTable{client: client, display: normalize(display)}
}

func (t *RedisTable) Key() string {
	return fmt.Sprintf("fx:rates:%s", t.display)
}

func (t *RedisTable) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	cur := normalize(currency)
	if cur == "" {
		return decimal.Zero, ErrRateNotFound
	}
	if cur == t.display {
		return decimal.NewFromInt(1), nil
	}
	v, err := t.client.HGet(ctx, t.Key(), cur).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, ErrRateNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis rate lookup: %w", err)
	}
	r, err := decimal.NewFromString(v)
	if err != nil || !r.IsPositive() {
		return decimal.Zero, ErrRateNotFound
	}
	return r, nil
}

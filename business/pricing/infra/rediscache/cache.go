// Package rediscache persists oracle quotes in Redis hashes so restarts do not
// start cold.
package rediscache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/pricing/domain"
	"github.com/fd1az/depth-compare/internal/asset"
)

// Cache stores each quote at "{prefix}oracle:price:{ASSET}" with fields
// value, ts (unix millis) and source.
type Cache struct {
	rdb    *redis.Client
	prefix string
}

// New creates a Cache.
func New(rdb *redis.Client, prefix string) *Cache {
	return &Cache{rdb: rdb, prefix: prefix}
}

func (c *Cache) key(sym asset.Symbol) string {
	return c.prefix + "oracle:price:" + sym.String()
}

// Get implements app.QuoteCache.
func (c *Cache) Get(ctx context.Context, sym asset.Symbol) (domain.Quote, bool, error) {
	vals, err := c.rdb.HGetAll(ctx, c.key(sym)).Result()
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("redis: get price %s: %w", sym, err)
	}
	q, ok := decode(sym, vals)
	return q, ok, nil
}

// Set implements app.QuoteCache.
func (c *Cache) Set(ctx context.Context, q domain.Quote, ttl time.Duration) error {
	key := c.key(q.Asset)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encode(q))
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set price %s: %w", q.Asset, err)
	}
	return nil
}

func encode(q domain.Quote) map[string]any {
	return map[string]any{
		"value":  q.USD.String(),
		"ts":     strconv.FormatInt(q.At.UnixMilli(), 10),
		"source": q.Source,
	}
}

// decode treats anything unreadable as a miss.
func decode(sym asset.Symbol, vals map[string]string) (domain.Quote, bool) {
	if len(vals) == 0 {
		return domain.Quote{}, false
	}
	value, err := decimal.NewFromString(vals["value"])
	if err != nil || !value.IsPositive() {
		return domain.Quote{}, false
	}
	ms, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil || ms <= 0 {
		return domain.Quote{}, false
	}
	return domain.Quote{
		Asset:  sym,
		USD:    value,
		Source: vals["source"],
		At:     time.UnixMilli(ms),
	}, true
}

// Package ratingcache puts a Redis read-through cache in front of a rating
// repo. Rating rows change only through slow administrative processes, so a
// short TTL is enough to keep lookups fresh without invalidation plumbing.
package ratingcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Assamir/kiro-demo-sub001/internal/core"
)

// missSentinel marks a cached "no matching row" so misses do not hammer the
// store on every calculation.
const missSentinel = "__miss__"

type Cache struct {
	inner core.RatingRepo
	rdb   *redis.Client
	ttl   time.Duration
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func New(inner core.RatingRepo, cfg Config) (*Cache, error) {
	if inner == nil {
		return nil, fmt.Errorf("ratingcache: missing inner repo")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{inner: inner, rdb: rdb, ttl: ttl}, nil
}

// Key builds the cache key for a lookup. Exported for tests.
func Key(category core.InsuranceCategory, factorKey string, asOf time.Time) string {
	return fmt.Sprintf("rating:%s:%s:%s", category, factorKey, core.DateOnly(asOf).Format("2006-01-02"))
}

func (c *Cache) Lookup(ctx context.Context, category core.InsuranceCategory, key string, asOf time.Time) (decimal.Decimal, bool, error) {
	cacheKey := Key(category, key, asOf)

	val, err := c.rdb.Get(ctx, cacheKey).Result()
	switch {
	case err == nil:
		if val == missSentinel {
			return decimal.Decimal{}, false, nil
		}
		mult, perr := decimal.NewFromString(val)
		if perr == nil {
			return mult, true, nil
		}
		// Unparseable entry: fall through to the store and overwrite.
	case !errors.Is(err, redis.Nil):
		// Cache trouble must not block pricing; go straight to the store.
		return c.inner.Lookup(ctx, category, key, asOf)
	}

	mult, ok, err := c.inner.Lookup(ctx, category, key, asOf)
	if err != nil {
		return decimal.Decimal{}, false, err
	}

	cached := missSentinel
	if ok {
		cached = mult.String()
	}
	// Best effort; a failed write just means a future re-read.
	_ = c.rdb.Set(ctx, cacheKey, cached, c.ttl).Err()

	return mult, ok, nil
}

func (c *Cache) Put(ctx context.Context, f core.RatingFactor) error {
	return c.inner.Put(ctx, f)
}

func (c *Cache) Retire(ctx context.Context, id string, validTo time.Time) error {
	return c.inner.Retire(ctx, id, validTo)
}

// Ping verifies cache connectivity (used by /readyz when the cache is on).
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

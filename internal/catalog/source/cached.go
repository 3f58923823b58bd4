package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/resilience"
)

const keyPrefix = "source:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// CacheObserver is notified of every cache lookup.
type CacheObserver func(hit bool)

// Cached serves catalog documents from a shared cache in front of a slower
// Source so that a fleet of catalog services does not hammer the database on
// reload. Cache failures fall through to the wrapped source, and a circuit
// breaker stops consulting a cache that keeps failing.
type Cached struct {
	next    Source
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	observe CacheObserver
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewCached(next Source, store Store, ttl time.Duration, observe CacheObserver) *Cached {
	if observe == nil {
		observe = func(bool) {}
	}
	return &Cached{
		next:    next,
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("catalog-cache", resilience.CircuitBreakerConfig{}),
		observe: observe,
		logger:  slog.Default().With("component", "catalog-cache"),
	}
}

// WithBreaker replaces the cache's circuit breaker. Call it before the cache
// is used.
func (c *Cached) WithBreaker(cfg resilience.CircuitBreakerConfig) *Cached {
	c.breaker = resilience.NewCircuitBreaker("catalog-cache", cfg)
	return c
}

func (c *Cached) LoadBulletins(ctx context.Context) (map[string][]*listing.Record, error) {
	return getOrLoad(ctx, c, "bulletins", c.next.LoadBulletins)
}

func (c *Cached) LoadFilters(ctx context.Context) (map[string][]facet.Definition, error) {
	return getOrLoad(ctx, c, "filters", c.next.LoadFilters)
}

func (c *Cached) LoadCategories(ctx context.Context) ([]listing.Category, error) {
	return getOrLoad(ctx, c, "categories", c.next.LoadCategories)
}

// Invalidate drops every cached document.
func (c *Cached) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating catalog cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cached) get(ctx context.Context, key string, dst any) bool {
	var found bool
	err := c.breaker.Execute(func() error {
		var err error
		found, err = c.store.GetJSON(ctx, key, dst)
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		found = false
	}
	if found {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	c.observe(found)
	return found
}

func (c *Cached) set(ctx context.Context, key string, value any) {
	err := c.breaker.Execute(func() error {
		return c.store.SetJSON(ctx, key, value, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func getOrLoad[T any](ctx context.Context, c *Cached, name string, load func(context.Context) (T, error)) (T, error) {
	key := keyPrefix + name
	var cached T
	if c.get(ctx, key, &cached) {
		return cached, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		var again T
		if c.get(ctx, key, &again) {
			return again, nil
		}
		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, fresh)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return val.(T), nil
}

package erp

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/domain/catalog"
)

// Source fetches the full active catalog. *Client satisfies it.
type Source interface {
	FetchActiveProducts(ctx context.Context) ([]catalog.Product, int, error)
}

// Cache keeps the last successful catalog pull and refreshes it at most once
// per TTL. Concurrent refreshes collapse into a single upstream call.
type Cache struct {
	source Source
	ttl    time.Duration
	lg     *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	products  []catalog.Product
	active    int
	fetchedAt time.Time
}

// NewCache wraps source with a TTL cache.
func NewCache(source Source, ttl time.Duration, lg *zap.Logger) *Cache {
	return &Cache{source: source, ttl: ttl, lg: lg}
}

// Products returns the catalog, refreshing from the ERP when the cache is
// stale or forceRefresh is set. A forced refresh still coalesces with any
// refresh already in flight.
func (c *Cache) Products(ctx context.Context, forceRefresh bool) ([]catalog.Product, int, error) {
	if !forceRefresh {
		if products, active, ok := c.fresh(); ok {
			return products, active, nil
		}
	}

	type result struct {
		products []catalog.Product
		active   int
	}
	v, err, shared := c.group.Do("catalog", func() (any, error) {
		// A concurrent caller may have refreshed while this one waited on
		// the flight group.
		if !forceRefresh {
			if products, active, ok := c.fresh(); ok {
				return result{products, active}, nil
			}
		}

		products, active, err := c.source.FetchActiveProducts(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.products = products
		c.active = active
		c.fetchedAt = time.Now()
		c.mu.Unlock()

		return result{products, active}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	if shared {
		c.lg.Debug("catalog refresh coalesced")
	}

	r := v.(result)
	return r.products, r.active, nil
}

// fresh is keyed on fetchedAt alone: a successful pull of an empty catalog
// is still a cacheable answer.
func (c *Cache) fresh() ([]catalog.Product, int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() || time.Since(c.fetchedAt) >= c.ttl {
		return nil, 0, false
	}
	return c.products, c.active, true
}

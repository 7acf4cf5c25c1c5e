package backing

import (
	"context"
	"errors"
	"time"
)

const cacheKeyspace = "cache:"

// Cache is a best-effort response cache over a [Store]. An unreachable
// backing store degrades to a miss; it never fails a request.
type Cache struct {
	store      *Store
	defaultTTL time.Duration
}

// NewCache creates a cache with the given default TTL for entries stored
// without an explicit one.
func NewCache(store *Store, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Cache{store: store, defaultTTL: defaultTTL}
}

// Get returns the cached value and whether it was present. Outages count
// as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, cacheKeyspace+key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			c.store.warnf("backing: cache read degraded to miss: %v", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores value under key. ttl <= 0 selects the cache default. Failures
// are reported through the warn hook only.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.store.SetWithTTL(ctx, cacheKeyspace+key, value, ttl); err != nil {
		c.store.warnf("backing: cache write dropped: %v", err)
	}
}

// Invalidate removes every cache entry under prefix and returns the count.
func (c *Cache) Invalidate(ctx context.Context, prefix string) int {
	count, err := c.store.DeleteByPrefix(ctx, cacheKeyspace+prefix)
	if err != nil {
		c.store.warnf("backing: cache invalidation incomplete: %v", err)
	}
	return count
}

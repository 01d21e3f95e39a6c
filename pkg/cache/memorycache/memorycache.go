package memorycache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/asakaida/kanmon/pkg/cache"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// entry keeps its own deadline so Set can use a TTL shorter than DefaultTTL
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache implements cache.Cache with an expiring LRU.
type Cache struct {
	lru *lru.LRU[string, entry]

	// Metrics (nil when disabled)
	metrics *cacheMetrics
}

type cacheMetrics struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	keysAdded   atomic.Uint64
	keysEvicted atomic.Uint64
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxEntries is the maximum number of cached items.
	// When this limit is exceeded, least recently used items are evicted.
	MaxEntries int

	// DefaultTTL is the upper bound on how long an item stays cached.
	DefaultTTL time.Duration

	// EnableMetrics enables collection of cache metrics.
	EnableMetrics bool
}

// New creates a new memory cache with the given configuration.
func New(config *Config) (*Cache, error) {
	maxEntries := config.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	c := &Cache{
		lru: lru.NewLRU[string, entry](maxEntries, nil, config.DefaultTTL),
	}

	if config.EnableMetrics {
		c.metrics = &cacheMetrics{}
	}

	return c, nil
}

// Get retrieves a value from cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	ent, ok := c.lru.Get(key)
	if ok && time.Now().After(ent.expiresAt) {
		c.lru.Remove(key)
		ok = false
	}

	if c.metrics != nil {
		if ok {
			c.metrics.hits.Add(1)
		} else {
			c.metrics.misses.Add(1)
		}
	}

	if !ok {
		return nil, false
	}
	return ent.value, true
}

// Set stores a value in cache with the specified TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	evicted := c.lru.Add(key, entry{value: value, expiresAt: time.Now().Add(ttl)})

	if c.metrics != nil {
		c.metrics.keysAdded.Add(1)
		if evicted {
			c.metrics.keysEvicted.Add(1)
		}
	}

	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.lru.Purge()
	return nil
}

// Close releases resources (no-op for memory cache).
func (c *Cache) Close() error {
	return nil
}

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	if c.metrics == nil {
		return &cache.Metrics{}
	}

	return &cache.Metrics{
		Hits:        c.metrics.hits.Load(),
		Misses:      c.metrics.misses.Load(),
		KeysAdded:   c.metrics.keysAdded.Load(),
		KeysEvicted: c.metrics.keysEvicted.Load(),
	}
}

// ResetMetrics resets cache statistics.
func (c *Cache) ResetMetrics() {
	if c.metrics == nil {
		return
	}

	c.metrics.hits.Store(0)
	c.metrics.misses.Store(0)
	c.metrics.keysAdded.Store(0)
	c.metrics.keysEvicted.Store(0)
}

// Len returns the current number of items in cache.
func (c *Cache) Len() int {
	return c.lru.Len()
}

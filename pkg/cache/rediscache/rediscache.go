// Package rediscache implements cache.Cache on Redis so that several
// service instances can share one registry cache.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/asakaida/kanmon/pkg/cache"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 100

// Cache implements cache.Cache backed by Redis.
// All keys are stored under Prefix so Clear never touches foreign data.
type Cache struct {
	client *redis.Client
	prefix string
	owned  bool

	hits      atomic.Uint64
	misses    atomic.Uint64
	keysAdded atomic.Uint64
	errors    atomic.Uint64
}

// Config holds configuration for the Redis cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg *Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("rediscache: ping: %w", err)
	}

	c := NewWithClient(client, cfg.Prefix)
	c.owned = true
	return c, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of it.
func NewWithClient(client *redis.Client, prefix string) *Cache {
	if prefix == "" {
		prefix = "kanmon:"
	}
	return &Cache{client: client, prefix: prefix}
}

// Get retrieves a value from Redis. Backend failures count as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.errors.Add(1)
		}
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return value, true
}

// Set stores a value with the specified TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("rediscache: set: %w", err)
	}
	c.keysAdded.Add(1)
	return nil
}

// Delete removes a value.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("rediscache: delete: %w", err)
	}
	return nil
}

// Clear removes every key under the prefix.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", scanBatchSize).Iterator()

	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				c.errors.Add(1)
				return fmt.Errorf("rediscache: clear: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("rediscache: scan: %w", err)
	}

	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			c.errors.Add(1)
			return fmt.Errorf("rediscache: clear: %w", err)
		}
	}
	return nil
}

// Close closes the client if it was created by New.
func (c *Cache) Close() error {
	if c.owned {
		return c.client.Close()
	}
	return nil
}

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	return &cache.Metrics{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		KeysAdded: c.keysAdded.Load(),
		Errors:    c.errors.Load(),
	}
}

// Ping reports whether Redis is reachable
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

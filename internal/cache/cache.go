// Package cache provides a Redis read-through cache in front of a
// TaskService.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// generationTTL bounds how long a key's write generation is remembered. It
// must outlast any read that races a write.
const generationTTL = 24 * time.Hour

// Cache stores JSON-encoded values in Redis under a common key prefix.
//
// Every key has a write generation, bumped by Invalidate. A value read from
// the source of truth is stored with SetAt only if the generation it was read
// under is still current, so a slow reader cannot overwrite an invalidation.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  Stats
}

// Stats counts cache operations.
type Stats struct {
	Hits    atomic.Uint64
	Misses  atomic.Uint64
	Sets    atomic.Uint64
	Deletes atomic.Uint64
	Stale   atomic.Uint64
	Errors  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Deletes uint64 `json:"deletes"`
	Stale   uint64 `json:"stale"`
	Errors  uint64 `json:"errors"`
}

// New creates a cache on top of client. Every key is prefixed with prefix
// and entries expire after ttl.
func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get decodes the value stored under key into dest. It reports false on a
// cache miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.stats.Misses.Add(1)
		return false, nil
	}
	if err != nil {
		c.stats.Errors.Add(1)
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.stats.Errors.Add(1)
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}

	c.stats.Hits.Add(1)
	return true, nil
}

func (c *Cache) generationKey(key string) string {
	return c.prefix + "gen:" + key
}

// Generation returns the current write generation of key. A key that was
// never invalidated is at generation zero.
func (c *Cache) Generation(ctx context.Context, key string) (uint64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(key)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		c.stats.Errors.Add(1)
		return 0, fmt.Errorf("cache generation %s: %w", key, err)
	}
	return gen, nil
}

// SetAt stores value under key with the configured TTL, provided key is
// still at generation gen. It reports false when an invalidation got there
// first and the value was dropped.
func (c *Cache) SetAt(ctx context.Context, key string, gen uint64, value any) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		c.stats.Errors.Add(1)
		return false, fmt.Errorf("cache encode %s: %w", key, err)
	}

	genKey := c.generationKey(key)
	stale := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			stale = true
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.prefix+key, data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		stale = true
	case err != nil:
		c.stats.Errors.Add(1)
		return false, fmt.Errorf("cache set %s: %w", key, err)
	}
	if stale {
		c.stats.Stale.Add(1)
		return false, nil
	}

	c.stats.Sets.Add(1)
	return true, nil
}

// Invalidate removes the given keys and bumps their write generations in
// one transaction.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			genKey := c.generationKey(k)
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, max(generationTTL, 2*c.ttl))
			pipe.Del(ctx, c.prefix+k)
		}
		return nil
	})
	if err != nil {
		c.stats.Errors.Add(1)
		return fmt.Errorf("cache invalidate: %w", err)
	}

	c.stats.Deletes.Add(uint64(len(keys)))
	return nil
}

// Stats returns a snapshot of the operation counters.
func (c *Cache) Stats() StatsSnapshot {
	return StatsSnapshot{
		Hits:    c.stats.Hits.Load(),
		Misses:  c.stats.Misses.Load(),
		Sets:    c.stats.Sets.Load(),
		Deletes: c.stats.Deletes.Load(),
		Stale:   c.stats.Stale.Load(),
		Errors:  c.stats.Errors.Load(),
	}
}

// Ping checks that Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Package cache provides a bounded, TTL'd Redis-backed cache for data the
// detectors re-read constantly but that changes rarely: corridor/dark-zone
// bounding boxes and the active scoring-config snapshot (Design Notes:
// "explicit cache objects with clear lifetimes; bounded size"). Grounded
// on jordigilh-kubernaut's redis client wrapping style — a thin struct
// around *redis.Client exposing typed Get/Set rather than raw command
// pass-through.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CorridorCache caches models.Corridor (as JSON) and scoring-config
// snapshots keyed by name, bounded by Redis TTL rather than an in-process
// eviction policy.
type CorridorCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(addr string, ttl time.Duration) *CorridorCache {
	return &CorridorCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (c *CorridorCache) Close() error { return c.client.Close() }

// Set stores value under key, JSON-encoded, with the cache's configured
// TTL.
func (c *CorridorCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshaling %q: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: setting %q: %w", key, err)
	}
	return nil
}

// Get decodes the cached value for key into dest. Returns (false, nil) on
// a cache miss, never an error, so callers can fall through to the
// authoritative source uniformly.
func (c *CorridorCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: getting %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache: unmarshaling %q: %w", key, err)
	}
	return true, nil
}

// Invalidate drops a single key, used when WatchAndReload swaps in a new
// scoring-config bundle and stale cached snapshots must not linger.
func (c *CorridorCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: invalidating %q: %w", key, err)
	}
	return nil
}

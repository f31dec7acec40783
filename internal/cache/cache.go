package cache

import (
	"context"
	"time"
)

// Cache is the key-value collaborator used for ephemeral features, results
// and counters. Writers must be idempotent: concurrent requests may race to
// populate the same key and last-write-wins is acceptable.
type Cache interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPattern removes every key matching a redis-style glob pattern.
	DelPattern(ctx context.Context, pattern string) error
	// IncrWithTTL atomically increments a counter, setting the TTL on
	// first touch, and returns the new value.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

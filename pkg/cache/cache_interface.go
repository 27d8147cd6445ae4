package cache

import (
	"context"
	"time"
)

// Cache is the contract for the cache layer, allowing the Redis
// implementation to be swapped for an in-memory one in tests
type Cache interface {
	// Get reads a key and unmarshals it into dest.
	// found = false means a cache miss; dest is left untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores a value with a TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes keys from the cache
	Delete(ctx context.Context, keys ...string) error

	// Increment atomically increments a counter, creating it at 1.
	// Used for at-least-once delivery dedupe markers.
	Increment(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on an existing key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping verifies the backing store is reachable
	Ping(ctx context.Context) error
}

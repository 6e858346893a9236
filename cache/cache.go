// Package cache memoizes rendered responses for a short time. The memory
// backend is process-local; there is no invalidation across instances.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss   = errors.New("cache: miss")
	ErrCacheClosed = errors.New("cache: closed")
)

const DefaultTTL = 5 * time.Minute

// Cache stores opaque byte values under string keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// PostKey is the cache key of a single post projection.
func PostKey(id string) string {
	return "post:" + id
}

// New returns a Redis cache when redisURL is set and a memory cache otherwise.
func New(redisURL string, ttl time.Duration) (Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if redisURL != "" {
		return NewRedisCache(redisURL, "confique:", ttl)
	}
	return NewMemoryCache(ttl, time.Minute), nil
}

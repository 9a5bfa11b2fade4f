package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching serialized run results so
// dashboard reads avoid repeated repository round trips. Cached entries are
// read-only snapshots; invalidation is per run ID.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetRunResult retrieves a cached run snapshot.
	GetRunResult(ctx context.Context, runID string) (*RunResult, error)

	// SetRunResult caches a run snapshot.
	SetRunResult(ctx context.Context, runID string, result *RunResult, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

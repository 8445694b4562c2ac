package cache

import (
	"context"
	"errors"
	"time"
)

// Cache defines the generic cache interface for all cache implementations
type Cache interface {
	// Get retrieves a value from cache by key
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache by key
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// Close closes the cache connection
	Close() error
}

// CacheConfig holds configuration for cache instances
type CacheConfig struct {
	// Enabled indicates if caching is enabled
	Enabled bool `json:"enabled"`

	// TTL is the default time-to-live for cache entries
	TTL time.Duration `json:"ttl"`

	// Prefix is added to all cache keys
	Prefix string `json:"prefix"`

	// Backend specifies the cache backend (memory, redis)
	Backend CacheType `json:"backend"`

	// MaxMemory is the maximum memory usage for memory cache (in bytes)
	MaxMemory int64 `json:"max_memory"`

	// CleanupInterval for expired item cleanup
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// Redis configuration
	Redis RedisConfig `json:"redis"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Address is the Redis server address
	Address string `json:"address"`

	// Password for Redis authentication
	Password string `json:"password"`

	// Database number
	Database int `json:"database"`

	// PoolSize is the maximum number of connections
	PoolSize int `json:"pool_size"`

	// MinIdleConns is the minimum number of idle connections
	MinIdleConns int `json:"min_idle_conns"`

	// MaxConnAge is the maximum connection age
	MaxConnAge time.Duration `json:"max_conn_age"`
}

// CacheType identifies a cache backend implementation
type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// IsValid reports whether the cache type is a known backend
func (t CacheType) IsValid() bool {
	return t == CacheTypeMemory || t == CacheTypeRedis
}

// Cache errors
var (
	// ErrKeyNotFound is returned when a key is not found in cache
	ErrKeyNotFound = errors.New("key not found")

	// ErrCacheUnavailable is returned when the cache backend is unreachable
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrInvalidCacheType is returned for unknown backend types
	ErrInvalidCacheType = errors.New("invalid cache type")

	// ErrCacheDisabled is returned when cache operations are attempted while disabled
	ErrCacheDisabled = errors.New("cache disabled")

	// ErrDeserializationFailed is returned when cached data cannot be unmarshaled
	ErrDeserializationFailed = errors.New("deserialization failed")
)

// DefaultCacheConfig returns a sane default configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:         true,
		TTL:             1 * time.Hour,
		Prefix:          "issue_attachments:",
		Backend:         CacheTypeMemory,
		MaxMemory:       100 * 1024 * 1024,
		CleanupInterval: 5 * time.Minute,
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 5,
		},
	}
}

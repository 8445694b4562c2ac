package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/pkg/log"
)

// GenericCacheService provides a JSON-marshaling cache service on top of a
// Cache backend. It is the session/state collaborator for the query feature:
// the serialized ad-hoc query shape round-trips through it between requests.
type GenericCacheService struct {
	cache  Cache
	config *CacheConfig
}

// NewGenericCacheService creates a new generic cache service
func NewGenericCacheService(cache Cache, config *CacheConfig) *GenericCacheService {
	if config == nil {
		config = DefaultCacheConfig()
	}

	return &GenericCacheService{
		cache:  cache,
		config: config,
	}
}

// IsEnabled reports whether the service has a usable backend
func (gcs *GenericCacheService) IsEnabled() bool {
	return gcs.config.Enabled && gcs.cache != nil
}

// GetCached retrieves and unmarshals cached data into the target interface
func (gcs *GenericCacheService) GetCached(ctx context.Context, key string, target interface{}) error {
	if !gcs.IsEnabled() {
		return ErrCacheDisabled
	}

	fullKey := gcs.buildKey(key)

	data, err := gcs.cache.Get(ctx, fullKey)
	if err != nil {
		if err != ErrKeyNotFound {
			log.Error("Cache get error for key %s: %v", fullKey, err)
		}
		return err
	}

	if err := json.Unmarshal(data, target); err != nil {
		log.Error("Cache data unmarshal error for key %s: %v", fullKey, err)
		return fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}

	return nil
}

// CacheData marshals and stores data in cache with TTL
func (gcs *GenericCacheService) CacheData(ctx context.Context, key string, data interface{}, ttl ...time.Duration) error {
	if !gcs.IsEnabled() {
		return ErrCacheDisabled
	}

	cacheTTL := gcs.config.TTL
	if len(ttl) > 0 && ttl[0] > 0 {
		cacheTTL = ttl[0]
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cache data marshal: %w", err)
	}

	fullKey := gcs.buildKey(key)
	if err := gcs.cache.Set(ctx, fullKey, payload, cacheTTL); err != nil {
		log.Error("Cache set error for key %s: %v", fullKey, err)
		return err
	}
	return nil
}

// Invalidate removes a cached entry
func (gcs *GenericCacheService) Invalidate(ctx context.Context, key string) error {
	if !gcs.IsEnabled() {
		return ErrCacheDisabled
	}
	return gcs.cache.Delete(ctx, gcs.buildKey(key))
}

// Exists checks whether a cached entry is present
func (gcs *GenericCacheService) Exists(ctx context.Context, key string) (bool, error) {
	if !gcs.IsEnabled() {
		return false, ErrCacheDisabled
	}
	return gcs.cache.Exists(ctx, gcs.buildKey(key))
}

// Close closes the underlying backend
func (gcs *GenericCacheService) Close() error {
	if gcs.cache == nil {
		return nil
	}
	return gcs.cache.Close()
}

// buildKey prepends the configured prefix
func (gcs *GenericCacheService) buildKey(key string) string {
	return gcs.config.Prefix + key
}

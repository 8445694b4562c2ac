package cache

import (
	"fmt"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/pkg/log"
)

// NewCache creates a cache backend based on the configuration
func NewCache(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	if !config.Enabled {
		return nil, ErrCacheDisabled
	}

	switch config.Backend {
	case CacheTypeMemory:
		log.Info("Initializing in-memory cache backend")
		return NewMemoryCache(config), nil
	case CacheTypeRedis:
		log.Info("Initializing Redis cache backend at %s", config.Redis.Address)
		return NewRedisCache(config)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidCacheType, config.Backend)
	}
}

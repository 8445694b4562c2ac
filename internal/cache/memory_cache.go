package cache

import (
	"context"
	"sync"
	"time"
)

// cacheItem represents an item in the memory cache
type cacheItem struct {
	value      []byte
	expiration time.Time
}

// MemoryCache implements Cache interface using in-memory storage
type MemoryCache struct {
	items         map[string]*cacheItem
	mutex         sync.RWMutex
	maxMemory     int64
	currentMemory int64
	cleanupTicker *time.Ticker
	cleanupDone   chan bool
	config        *CacheConfig
	closed        bool
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(config *CacheConfig) *MemoryCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	cache := &MemoryCache{
		items:       make(map[string]*cacheItem),
		maxMemory:   config.MaxMemory,
		cleanupDone: make(chan bool),
		config:      config,
	}

	// Start cleanup goroutine
	go cache.startCleanup()

	return cache
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil, ErrCacheDisabled
	}

	item, exists := c.items[key]
	if !exists {
		return nil, ErrKeyNotFound
	}

	if time.Now().After(item.expiration) {
		delete(c.items, key)
		c.currentMemory -= itemMemoryUsage(key, item)
		return nil, ErrKeyNotFound
	}

	// Return a copy of the value
	result := make([]byte, len(item.value))
	copy(result, item.value)
	return result, nil
}

// Set stores a value in cache with expiration
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return ErrCacheDisabled
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	newItem := &cacheItem{
		value:      valueCopy,
		expiration: time.Now().Add(ttl),
	}

	if oldItem, exists := c.items[key]; exists {
		c.currentMemory -= itemMemoryUsage(key, oldItem)
	}
	c.currentMemory += itemMemoryUsage(key, newItem)
	c.items[key] = newItem

	c.evictIfNeeded()
	return nil
}

// Delete removes a value from cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if item, exists := c.items[key]; exists {
		delete(c.items, key)
		c.currentMemory -= itemMemoryUsage(key, item)
	}
	return nil
}

// Exists checks if a key exists in cache
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.closed {
		return false, ErrCacheDisabled
	}

	item, exists := c.items[key]
	if !exists || time.Now().After(item.expiration) {
		return false, nil
	}
	return true, nil
}

// Close stops the cleanup goroutine and releases stored items
func (c *MemoryCache) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.cleanupTicker != nil {
		c.cleanupTicker.Stop()
	}
	close(c.cleanupDone)

	c.items = make(map[string]*cacheItem)
	c.currentMemory = 0
	return nil
}

// startCleanup periodically removes expired items
func (c *MemoryCache) startCleanup() {
	interval := c.config.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	c.cleanupTicker = time.NewTicker(interval)

	for {
		select {
		case <-c.cleanupTicker.C:
			c.removeExpired()
		case <-c.cleanupDone:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiration) {
			delete(c.items, key)
			c.currentMemory -= itemMemoryUsage(key, item)
		}
	}
}

// evictIfNeeded drops the items closest to expiry until memory usage
// is back under the configured limit. Caller must hold the write lock.
func (c *MemoryCache) evictIfNeeded() {
	if c.maxMemory <= 0 {
		return
	}
	for c.currentMemory > c.maxMemory && len(c.items) > 0 {
		var oldestKey string
		var oldestExpiration time.Time
		for key, item := range c.items {
			if oldestKey == "" || item.expiration.Before(oldestExpiration) {
				oldestKey = key
				oldestExpiration = item.expiration
			}
		}
		item := c.items[oldestKey]
		delete(c.items, oldestKey)
		c.currentMemory -= itemMemoryUsage(oldestKey, item)
	}
}

func itemMemoryUsage(key string, item *cacheItem) int64 {
	return int64(len(key) + len(item.value))
}

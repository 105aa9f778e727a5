package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache stores query results keyed by entity ("cases") or entity and id
// ("cases:42").
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Delete(key string)
	// Invalidate drops the entity key and every entity:id key.
	Invalidate(entity string) int
	Stats() CacheStats
}

type CacheStats struct {
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Invalidations int64     `json:"invalidations"`
	Size          int       `json:"size"`
	LastAccess    time.Time `json:"last_access"`
}

type LRUCache struct {
	cache   *cache.Cache
	mu      sync.RWMutex
	stats   CacheStats
	maxSize int
}

func NewCache(maxSize int, ttl time.Duration) Cache {
	return &LRUCache{
		cache:   cache.New(ttl, ttl*2),
		maxSize: maxSize,
		stats:   CacheStats{},
	}
}

func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()

	if data, found := c.cache.Get(key); found {
		c.stats.Hits++
		return data, true
	}

	c.stats.Misses++
	return nil, false
}

func (c *LRUCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache.Get(key); !exists && c.cache.ItemCount() >= c.maxSize {
		c.removeOldest()
	}

	c.cache.Set(key, value, cache.DefaultExpiration)
}

func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
}

func (c *LRUCache) Invalidate(entity string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := entity + ":"
	removed := 0
	for key := range c.cache.Items() {
		if key == entity || strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
			removed++
		}
	}
	c.stats.Invalidations++
	return removed
}

func (c *LRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Size = c.cache.ItemCount()
	return c.stats
}

// removeOldest evicts the entry closest to expiry, i.e. the one set first.
func (c *LRUCache) removeOldest() {
	var oldestKey string
	var oldest int64

	for key, item := range c.cache.Items() {
		if oldestKey == "" || item.Expiration < oldest {
			oldestKey = key
			oldest = item.Expiration
		}
	}

	if oldestKey != "" {
		c.cache.Delete(oldestKey)
	}
}

// Key builds the cache key for an entity list or, with an id, one row.
func Key(entity string, id ...string) string {
	if len(id) == 0 {
		return entity
	}
	return entity + ":" + strings.Join(id, ":")
}

package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/patrickmn/go-cache"
)

// Cache holds fully loaded judgements for the admin API.
type Cache interface {
	Get(key string) (*database.Judgement, bool)
	Set(key string, value *database.Judgement)
	Delete(key string)
	Clear()
	Stats() CacheStats
}

type CacheStats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Size       int       `json:"size"`
	LastAccess time.Time `json:"last_access"`
}

// BoundedCache is a TTL cache that also caps its size, evicting the entry
// closest to expiry when full.
type BoundedCache struct {
	cache   *cache.Cache
	mu      sync.Mutex
	stats   CacheStats
	maxSize int
}

func NewCache(maxSize int, ttl time.Duration) *BoundedCache {
	return &BoundedCache{
		cache:   cache.New(ttl, ttl*2),
		maxSize: maxSize,
	}
}

func (c *BoundedCache) Get(key string) (*database.Judgement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()

	if data, found := c.cache.Get(key); found {
		if j, ok := data.(*database.Judgement); ok {
			c.stats.Hits++
			return j, true
		}
	}

	c.stats.Misses++
	return nil, false
}

func (c *BoundedCache) Set(key string, value *database.Judgement) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache.Get(key); !exists && c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.evictOne()
	}
	c.cache.Set(key, value, cache.DefaultExpiration)
}

func (c *BoundedCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
}

func (c *BoundedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.stats = CacheStats{}
}

func (c *BoundedCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.cache.ItemCount()
	return stats
}

func (c *BoundedCache) evictOne() {
	var (
		victim string
		soonest int64
	)
	for key, item := range c.cache.Items() {
		if victim == "" || item.Expiration < soonest {
			victim = key
			soonest = item.Expiration
		}
	}
	if victim != "" {
		c.cache.Delete(victim)
	}
}

// JudgementKey is the cache key of one judgement's detail view.
func JudgementKey(id uint) string {
	return "judgement:" + strconv.FormatUint(uint64(id), 10)
}

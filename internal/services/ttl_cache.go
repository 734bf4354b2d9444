package services

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// TTLCache is a generic expiring key/value store with hit/miss counters.
// Entries are evicted lazily on access and proactively by the periodic
// sweep that go-cache's janitor runs every sweepInterval.
type TTLCache struct {
	cache  *cache.Cache
	mu     sync.RWMutex
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// NewTTLCache creates a TTL cache with the given default TTL and sweep interval.
func NewTTLCache(defaultTTL, sweepInterval time.Duration) *TTLCache {
	return &TTLCache{
		cache: cache.New(defaultTTL, sweepInterval),
	}
}

// Get returns the stored value if present and not expired. Expired entries
// count as misses; go-cache drops them on access.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	value, found := c.cache.Get(key)
	c.mu.RUnlock()

	if found {
		c.hits.Add(1)
		return value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set stores a value with the cache's default TTL.
func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(key, value, cache.DefaultExpiration)
}

// SetWithTTL stores a value with an explicit TTL.
func (c *TTLCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(key, value, ttl)
}

// Delete removes a single key.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Delete(key)
}

// DeletePrefix removes every key with the given prefix. Used to invalidate
// derived entries (query results, aggregate snapshots) after a write.
func (c *TTLCache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
			removed++
		}
	}
	return removed
}

// Clear drops all entries and resets the hit/miss counters.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Flush()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns the current counters and entry count.
func (c *TTLCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.cache.ItemCount(),
	}
}

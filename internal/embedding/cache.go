package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const trimRatio = 0.8

// Cache maps (provider, enriched text) to a vector. Entries expire after the
// TTL; when the entry count exceeds capacity a background trim evicts the
// oldest entries down to 80% of capacity.
type Cache struct {
	lru      *expirable.LRU[string, []float64]
	capacity int
	trimming atomic.Bool
	hits     atomic.Int64
	misses   atomic.Int64
	logger   *slog.Logger
}

// CacheStats is a point-in-time view of the cache.
type CacheStats struct {
	Entries  int   `json:"entries"`
	Capacity int   `json:"capacity"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

func NewCache(capacity int, ttl time.Duration, logger *slog.Logger) *Cache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		// size 0: no hard bound, trimming is done by trim()
		lru:      expirable.NewLRU[string, []float64](0, nil, ttl),
		capacity: capacity,
		logger:   logger,
	}
}

func cacheKey(provider, text string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for text under provider.
func (c *Cache) Get(text, provider string) ([]float64, bool) {
	v, ok := c.lru.Get(cacheKey(provider, text))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put stores a vector.
func (c *Cache) Put(text, provider string, vector []float64) {
	if len(vector) == 0 {
		return
	}
	c.lru.Add(cacheKey(provider, text), vector)
	if c.lru.Len() > c.capacity && c.trimming.CompareAndSwap(false, true) {
		go c.trim()
	}
}

func (c *Cache) trim() {
	defer c.trimming.Store(false)
	target := int(float64(c.capacity) * trimRatio)
	evicted := 0
	for c.lru.Len() > target {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
		evicted++
	}
	c.logger.Debug("embedding.cache.trim", "evicted", evicted, "entries", c.lru.Len(), "capacity", c.capacity)
}

// Len is the current number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries:  c.lru.Len(),
		Capacity: c.capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}

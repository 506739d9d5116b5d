package service

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
)

const defaultCacheMaxSize = 10000

// queryCachePrefix distinguishes query-time embeddings from document-time
// embeddings, so the same literal string never aliases between the two.
const queryCachePrefix = "query:"

// EmbeddingCache is a content-addressed cache from text to a previously
// computed embedding. Held only in process memory; bounded by evicting the
// oldest 20% of entries by insertion order when full. That is an approximation
// of LRU, not a recency-ordered LRU: a frequently read old entry is evicted
// just the same.
type EmbeddingCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	order   []string // insertion order of keys
	maxSize int
	hits    int64
	misses  int64
}

// NewEmbeddingCache creates a cache bounded at maxSize entries; a non-positive
// maxSize uses the default.
func NewEmbeddingCache(maxSize int) *EmbeddingCache {
	if maxSize <= 0 {
		maxSize = defaultCacheMaxSize
	}
	return &EmbeddingCache{
		entries: make(map[string][]float32),
		maxSize: maxSize,
	}
}

func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached embedding for text, or nil on a miss.
func (c *EmbeddingCache) Get(text string) []float32 {
	key := cacheKey(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if embedding, ok := c.entries[key]; ok {
		c.hits++
		return embedding
	}
	c.misses++
	return nil
}

// Put stores an embedding, evicting the oldest 20% of entries in one pass when
// the cache is full.
func (c *EmbeddingCache) Put(text string, embedding []float32) {
	key := cacheKey(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = embedding
		return
	}

	if len(c.entries) >= c.maxSize {
		removeCount := c.maxSize / 5
		if removeCount < 1 {
			removeCount = 1
		}
		if removeCount > len(c.order) {
			removeCount = len(c.order)
		}
		for _, old := range c.order[:removeCount] {
			delete(c.entries, old)
		}
		c.order = c.order[removeCount:]
	}

	c.entries[key] = embedding
	c.order = append(c.order, key)
}

// Clear drops every entry and resets the counters.
func (c *EmbeddingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string][]float32)
	c.order = nil
	c.hits = 0
	c.misses = 0
}

// CacheStats reports cache occupancy and effectiveness.
type CacheStats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns current cache statistics. HitRate is a percentage.
func (c *EmbeddingCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return CacheStats{
		Size:    len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

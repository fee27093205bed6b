// Package llmcache memoizes LLM stage outputs keyed by a content
// fingerprint, so re-processing a document (or retrying it after a
// transient failure) costs no tokens for stages that already ran.
package llmcache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a concurrent-safe TTL cache. Expiry is the only eviction rule;
// the goal is saving LLM spend, not bounding memory, so there is no LRU.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	defaultTTL time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

// Stats contains cache performance counters.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// New creates a Cache with the given default TTL.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Cache{
		entries:    make(map[string]*entry),
		defaultTTL: defaultTTL,
	}
}

// Fingerprint returns the cache key for one pipeline stage invocation:
// SHA-256 over stage, model, and a normalized content excerpt. The excerpt
// is capped so the key is stable against trailing OCR noise.
func Fingerprint(stage, model, content string) string {
	excerpt := strings.TrimSpace(content)
	if len(excerpt) > 4096 {
		excerpt = excerpt[:4096]
	}
	h := sha256.Sum256([]byte(stage + "|" + model + "|" + excerpt))
	return fmt.Sprintf("%x", h)
}

// Get retrieves a cached value. The second return is false on miss or
// expiry; expired entries are removed lazily.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if time.Since(e.createdAt) > e.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := c.entries[key]; still && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores a value under key. A zero ttl uses the cache default.
// Concurrent sets on the same key are last-write-wins.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = &entry{value: value, createdAt: time.Now(), ttl: ttl}
	c.mu.Unlock()
}

// EvictExpired removes all expired entries and returns how many were dropped.
func (c *Cache) EvictExpired() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, e := range c.entries {
		if now.Sub(e.createdAt) > e.ttl {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// Stats returns current cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	s := Stats{Entries: entries, Hits: hits, Misses: misses}
	if total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

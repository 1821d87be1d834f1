package keyauth

import (
	"sync"
	"time"
)

// cacheEntry is one cached server response
type cacheEntry struct {
	response *apiResponse
	cachedAt time.Time
}

// ResponseCache maps cache keys to previously received successful server
// responses. Entries older than the TTL are treated as absent. Only
// success responses are cache-eligible; the orchestrator enforces that.
// The key space is small and bounded (one entry per logical operation), so
// TTL expiry is the only eviction.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time

	hits   int64
	misses int64
}

// NewResponseCache creates a response cache with the given TTL
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached response for key, or (nil, false) when the entry
// is absent or older than the TTL.
func (c *ResponseCache) Get(key string) (*apiResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.cachedAt) > c.ttl {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.response, true
}

// Put stores a response under key, overwriting any prior entry
func (c *ResponseCache) Put(key string, resp *apiResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{response: resp, cachedAt: c.now()}
}

// Clear empties the cache. Called on session refresh so entries keyed by
// the old session id never leak into the new session.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of stored entries, expired or not
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit/miss counters for diagnostics
func (c *ResponseCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

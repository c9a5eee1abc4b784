package convergence

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache defaults, overridable via engine configuration.
const (
	// DefaultCacheTTL bounds how long a cached result may be served.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheMaxEntries caps the cache size; the least recently used
	// entry is evicted when the cap is reached.
	DefaultCacheMaxEntries = 100
)

// CacheKey fingerprints one history snapshot. Appending an iteration changes
// both the count and the last timestamp, so stale results can never be
// served for a grown history.
type CacheKey struct {
	// FileID identifies the file.
	FileID string

	// Iterations is the history length at evaluation time.
	Iterations int

	// LastUnixNano is the newest iteration timestamp at evaluation time.
	LastUnixNano int64
}

// NewCacheKey builds the fingerprint for a file and history snapshot.
func NewCacheKey(fileID string, iterations int, last time.Time) CacheKey {
	return CacheKey{
		FileID:       fileID,
		Iterations:   iterations,
		LastUnixNano: last.UnixNano(),
	}
}

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
	createdAt time.Time

	// lastAccessed tracks LRU eviction (internal use only)
	lastAccessed time.Time
}

// Cache provides thread-safe memoization of convergence results with a
// combined TTL + LRU policy.
//
// The policy is deliberately unified: entries expire after the TTL so a
// replayed stale history cannot pin an old decision, and the size cap with
// LRU eviction bounds memory on wide file sets.
type Cache struct {
	mu         sync.RWMutex
	entries    map[CacheKey]*cacheEntry
	ttl        time.Duration
	maxEntries int
	metrics    *Metrics
	hits       uint64
	misses     uint64
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// NewCache creates a cache with the given TTL and entry cap. Non-positive
// arguments fall back to the package defaults.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &Cache{
		entries:    make(map[CacheKey]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// SetMetrics attaches a metrics tracker. Optional; call once after
// construction if cache observability is desired.
func (c *Cache) SetMetrics(m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Set stores a result under its history fingerprint, evicting the least
// recently used entry when the cache is full.
func (c *Cache) Set(key CacheKey, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.evictLRU()
		}
	}

	now := time.Now()
	c.entries[key] = &cacheEntry{
		result:       result,
		expiresAt:    now.Add(c.ttl),
		createdAt:    now,
		lastAccessed: now,
	}
	if c.metrics != nil {
		c.metrics.SetCacheSize(len(c.entries))
	}
}

// Get returns the cached result for a fingerprint, or false when absent or
// expired. Expired entries are removed on access.
func (c *Cache) Get(key CacheKey) (*Result, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	metrics := c.metrics
	c.mu.RUnlock()

	if !exists {
		atomic.AddUint64(&c.misses, 1)
		if metrics != nil {
			metrics.RecordCacheMiss()
		}
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		if c.metrics != nil {
			c.metrics.SetCacheSize(len(c.entries))
		}
		c.mu.Unlock()

		atomic.AddUint64(&c.misses, 1)
		if metrics != nil {
			metrics.RecordCacheMiss()
		}
		return nil, false
	}

	c.mu.Lock()
	entry.lastAccessed = time.Now()
	c.mu.Unlock()

	atomic.AddUint64(&c.hits, 1)
	if metrics != nil {
		metrics.RecordCacheHit()
	}
	return entry.result, true
}

// Stats returns a snapshot of the cache's effectiveness counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	size := len(c.entries)
	capacity := c.maxEntries
	c.mu.RUnlock()

	return CacheStats{
		Hits:     atomic.LoadUint64(&c.hits),
		Misses:   atomic.LoadUint64(&c.misses),
		Size:     size,
		Capacity: capacity,
	}
}

// Invalidate drops every cached result for a file, regardless of
// fingerprint. Called when a file's history is appended to or reset.
func (c *Cache) Invalidate(fileID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if key.FileID == fileID {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 && c.metrics != nil {
		c.metrics.SetCacheSize(len(c.entries))
	}
	return removed
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]*cacheEntry)
	if c.metrics != nil {
		c.metrics.SetCacheSize(0)
	}
}

// Size returns the current number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLRU removes the least recently used entry. Caller must hold the
// write lock.
func (c *Cache) evictLRU() {
	var oldestKey CacheKey
	var oldestTime time.Time

	first := true
	for key, entry := range c.entries {
		if first || entry.lastAccessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessed
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		if c.metrics != nil {
			c.metrics.RecordCacheEviction()
		}
	}
}

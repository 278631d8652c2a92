package graph

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheEntry is a completed task's outcome: either a frame reference or an
// error (spec §3: "value is a frame reference or an error").
type CacheEntry struct {
	Frame FrameRef
	Err   error
}

const (
	minCacheCapacity  = 2
	maxCacheCapacity  = 512
	defaultCapacity   = 16
	hitWindowSize     = 32
	growHitRate       = 0.5
	shrinkAfterMisses = 32 // consecutive misses with zero hits before shrinking
)

// Cache is a per-node LRU cache of completed frames, wrapping
// hashicorp/golang-lru/v2 in an adaptively-resizing shell: growth is
// permitted when the scheduler observes re-hits within a sliding window of
// recent lookups, shrinkage after a period with no hits (spec §4.1 cache
// policy). The cache is force-disabled when every consumer declared
// NoFrameReuse; a sole FrameReuseLastOnly consumer restricts it to one entry.
type Cache struct {
	mu       sync.Mutex
	lru      *lru.Cache[int, CacheEntry]
	capacity int

	disabled bool
	lastOnly bool

	window     [hitWindowSize]bool
	windowLen  int
	windowNext int
	missStreak int
}

// NewCache builds a cache with the given initial capacity (clamped to the
// engine's min/max bounds).
func NewCache(capacity int) *Cache {
	if capacity < minCacheCapacity {
		capacity = minCacheCapacity
	}
	if capacity > maxCacheCapacity {
		capacity = maxCacheCapacity
	}
	l, _ := lru.New[int, CacheEntry](capacity)
	return &Cache{lru: l, capacity: capacity}
}

// applyConsumerModes recomputes this node's cache policy from the full set
// of dependency modes its consumers have declared.
func (c *Cache) applyConsumerModes(modes []DependencyMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	allNoReuse := len(modes) > 0
	for _, m := range modes {
		if m != NoFrameReuse {
			allNoReuse = false
			break
		}
	}
	c.disabled = allNoReuse
	c.lastOnly = len(modes) == 1 && modes[0] == FrameReuseLastOnly
	if c.lastOnly {
		c.resizeLocked(1)
	}
}

// Get looks up frame index n, recording a hit/miss for the adaptive
// resizing window.
func (c *Cache) Get(n int) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return CacheEntry{}, false
	}
	entry, ok := c.lru.Get(n)
	c.recordLocked(ok)
	return entry, ok
}

// Put inserts or replaces the entry for frame index n, honoring the
// disabled/last-only policy.
func (c *Cache) Put(n int, entry CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	if c.lastOnly {
		c.lru.Purge() // evicted entries drop their FrameRef without Release, so the reference scheduler.cloneFrameRef took for the entry is never returned; the buffers are still reclaimed by GC once unreachable
	}
	c.lru.Add(n, entry)
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity reports the cache's current capacity.
func (c *Cache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// recordLocked folds one Get's outcome into the sliding hit-rate window and
// grows/shrinks the underlying LRU when a full window crosses a threshold.
// Must be called with c.mu held.
func (c *Cache) recordLocked(hit bool) {
	if c.lastOnly {
		return // fixed-size policy, not subject to adaptive resizing
	}

	c.window[c.windowNext] = hit
	c.windowNext = (c.windowNext + 1) % hitWindowSize
	if c.windowLen < hitWindowSize {
		c.windowLen++
	}
	if hit {
		c.missStreak = 0
	} else {
		c.missStreak++
	}

	if c.windowLen < hitWindowSize {
		return
	}

	hits := 0
	for _, h := range c.window {
		if h {
			hits++
		}
	}
	rate := float64(hits) / float64(hitWindowSize)

	switch {
	case rate >= growHitRate && c.capacity < maxCacheCapacity:
		c.resizeLocked(c.capacity * 2)
	case c.missStreak >= shrinkAfterMisses && c.capacity > minCacheCapacity:
		c.resizeLocked(c.capacity / 2)
	}
}

// resizeLocked changes the underlying LRU's capacity in place. Must be
// called with c.mu held.
func (c *Cache) resizeLocked(newCapacity int) {
	if newCapacity < minCacheCapacity {
		newCapacity = minCacheCapacity
	}
	if newCapacity > maxCacheCapacity {
		newCapacity = maxCacheCapacity
	}
	if newCapacity == c.capacity {
		return
	}
	c.lru.Resize(newCapacity)
	c.capacity = newCapacity
}

// Disable force-disables the cache (used directly by tests; production
// callers get this from applyConsumerModes).
func (c *Cache) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = true
	c.lru.Purge()
}

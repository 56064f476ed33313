// Package cache holds resolved translations keyed by normalized source
// text and language pair. Bounded, least-recently-used eviction, in-memory
// only; rebuilt empty at process start.
package cache

import (
	"container/list"
	"log/slog"
	"sync"

	"github.com/lenslate/lenslate/internal/block"
)

// DefaultCapacity bounds the cache when no capacity is configured.
const DefaultCapacity = 500

// Key identifies a translation. Text is normalized (trimmed, internal
// whitespace collapsed) and case-sensitive: case can carry meaning in
// addressed text.
type Key struct {
	Text   string
	Source string
	Target string
}

// NewKey builds a key, normalizing the text.
func NewKey(text, source, target string) Key {
	return Key{Text: block.Normalize(text), Source: source, Target: target}
}

type entry struct {
	key   Key
	value string
}

// Cache is a bounded LRU translation cache. Reads that don't touch recency
// (Len, Stats) run concurrently; Get counts as an access and therefore
// serializes with writes, so a reader never observes a partially updated
// entry.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[Key]*list.Element
	order    *list.List // front = most recently used

	hits   uint64
	misses uint64
}

// New creates a cache. Non-positive capacity uses DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[Key]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached translation for key, marking it most recently
// used.
func (c *Cache) Get(key Key) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}
	c.order.MoveToFront(el)
	c.hits++
	return el.Value.(*entry).value, true
}

// Put stores a translation, evicting the least recently used entries when
// over capacity. Storing an existing key updates its value and recency; the
// cache never holds two entries for one key.
func (c *Cache) Put(key Key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}

	// Map and list must account for the same entries under the
	// single-writer discipline. A mismatch means the cache is corrupt:
	// rebuild it empty rather than serve bad lookups.
	if c.order.Len() != len(c.entries) {
		slog.Error("translation cache corrupt, rebuilding",
			"list", c.order.Len(), "map", len(c.entries))
		c.reset()
	}
}

// Clear drops all entries and counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.hits, c.misses = 0, 0
}

func (c *Cache) reset() {
	c.entries = make(map[Key]*list.Element, c.capacity)
	c.order.Init()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats reports hit/miss counters and the current size.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}

// HitRate returns hits / (hits + misses), or 0 before any lookups.
func (c *Cache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Package tilecache memoises detector output per tile content.
//
// Drawing sets repeat themselves: title blocks, legends, typical details and
// blank-ish regions recur from sheet to sheet. The cache keys detector output
// by a digest of the tile pixels, so an identical tile anywhere on any page
// skips inference. Entries are evicted least-recently-used once the capacity
// is reached.
package tilecache

import (
	"container/list"
	"image"
	"sync"

	"github.com/ironsheep/symbol-takeoff/internal/detection"
)

// DefaultCapacity is the number of tiles remembered when no capacity is given.
const DefaultCapacity = 500

type entry struct {
	key  string
	dets []detection.RawDetection
}

// Cache is a bounded LRU map from tile digest to raw detections.
//
// Cache is safe for concurrent use; a single mutex makes lookup-plus-promote
// and insert-plus-evict atomic. A nil *Cache never hits and stores nothing.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List // front = most recently used
	items    map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64
}

// New creates a cache holding at most capacity entries. A capacity below 1
// produces a cache that never stores anything.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns a copy of the detections stored under key and marks the entry
// as most recently used.
func (c *Cache) Get(key string) ([]detection.RawDetection, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return clone(el.Value.(*entry).dets), true
}

// Put stores a copy of dets under key, replacing any previous value, and
// evicts the least recently used entries beyond capacity.
func (c *Cache) Put(key string, dets []detection.RawDetection) {
	if c == nil || c.capacity < 1 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).dets = clone(dets)
		c.ll.MoveToFront(el)
		return
	}

	c.items[key] = c.ll.PushFront(&entry{key: key, dets: clone(dets)})

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
		c.evictions++
	}
}

// Len reports the number of cached tiles.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.hits, c.misses, c.evictions = 0, 0, 0
	c.mu.Unlock()
}

// Stats is a snapshot of cache counters since creation or the last Clear.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hit_rate"`
}

// Stats returns the current counters. HitRate is a fraction in [0, 1].
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.ll.Len(),
		Capacity:  c.capacity,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Key digests a tile's pixels; it satisfies detection.ResultCache.
func (c *Cache) Key(img *image.NRGBA) (string, error) {
	return KeyFor(img)
}

func clone(dets []detection.RawDetection) []detection.RawDetection {
	if dets == nil {
		return nil
	}
	out := make([]detection.RawDetection, len(dets))
	copy(out, dets)
	return out
}

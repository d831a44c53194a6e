// Package cache implements the keyed tile payload store with LRU recency
// tracking and soft count/byte budgets.
package cache

import (
	"container/list"
)

// Entry is a cached tile payload. The cache owns payloads exclusively;
// consumers hold keys and look entries up per use.
type Entry struct {
	Key     string
	Payload any
	Size    int64
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Bytes     int64
	Entries   int
}

// Cache is an LRU keyed store. It is not safe for concurrent use; the LOD
// engine mutates it only from the tick goroutine.
type Cache struct {
	ll    *list.List // front = most recently used
	index map[string]*list.Element
	bytes int64

	hits      int64
	misses    int64
	evictions int64

	// OnEvict, when set, is called with each payload removed by Trim or
	// Remove so the owner can release GPU or pooled resources.
	OnEvict func(Entry)
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		ll:    list.New(),
		index: make(map[string]*list.Element),
	}
}

// Get returns the payload for key and marks it most recently used.
func (c *Cache) Get(key string) (any, bool) {
	el, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return el.Value.(*Entry).Payload, true
}

// Has reports whether key is cached without touching recency or stats.
func (c *Cache) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Put stores a payload under key, replacing any previous entry, and marks
// it most recently used.
func (c *Cache) Put(key string, payload any, size int64) {
	if el, ok := c.index[key]; ok {
		e := el.Value.(*Entry)
		c.bytes += size - e.Size
		e.Payload = payload
		e.Size = size
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&Entry{Key: key, Payload: payload, Size: size})
	c.index[key] = el
	c.bytes += size
}

// Touch marks key most recently used if present.
func (c *Cache) Touch(key string) {
	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
	}
}

// Remove deletes key if present.
func (c *Cache) Remove(key string) {
	if el, ok := c.index[key]; ok {
		c.remove(el)
	}
}

// Trim evicts least-recently-used entries until the cache is within both
// budgets, skipping every key in protected. Protected entries are never
// evicted even if the cache stays over budget: not blanking a tile that is
// on screen outranks strict capacity adherence. A budget <= 0 is unlimited.
func (c *Cache) Trim(maxEntries int, maxBytes int64, protected map[string]struct{}) {
	over := func() bool {
		if maxEntries > 0 && c.ll.Len() > maxEntries {
			return true
		}
		if maxBytes > 0 && c.bytes > maxBytes {
			return true
		}
		return false
	}

	el := c.ll.Back()
	for el != nil && over() {
		prev := el.Prev()
		e := el.Value.(*Entry)
		if _, keep := protected[e.Key]; !keep {
			c.remove(el)
			c.evictions++
		}
		el = prev
	}
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return c.ll.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Bytes:     c.bytes,
		Entries:   c.ll.Len(),
	}
}

func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*Entry)
	c.ll.Remove(el)
	delete(c.index, e.Key)
	c.bytes -= e.Size
	if c.OnEvict != nil {
		c.OnEvict(*e)
	}
}

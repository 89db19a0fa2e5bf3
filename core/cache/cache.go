package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is the value stored in the LRU list.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// LRUCache is a thread-safe fixed-capacity cache with least-recently-used
// eviction and optional per-cache entry TTL. A TTL of zero disables
// time-based expiry and the cache behaves as a plain LRU.
type LRUCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[K]*list.Element
	now      func() time.Time
}

// Option configures an LRUCache.
type Option func(*config)

type config struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL sets a time-to-live applied to every entry on Put.
// Expired entries are treated as absent and removed on access.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// NewLRUCache creates a cache holding at most capacity items.
// Capacity values below 1 are treated as 1.
func NewLRUCache[K comparable, V any](capacity int, opts ...Option) *LRUCache[K, V] {
	if capacity < 1 {
		capacity = 1
	}

	cfg := config{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &LRUCache[K, V]{
		capacity: capacity,
		ttl:      cfg.ttl,
		ll:       list.New(),
		items:    make(map[K]*list.Element, capacity),
		now:      cfg.now,
	}
}

// Get returns the value for key and marks it most recently used.
// Expired entries are removed and reported as missing.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	ent := el.Value.(*entry[K, V])
	if ent.expired(c.now()) {
		c.removeElement(el)
		var zero V
		return zero, false
	}

	c.ll.MoveToFront(el)
	return ent.value, true
}

// Put stores a value, evicting the least recently used entry at capacity.
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[K, V])
		ent.value = value
		ent.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el

	if c.ll.Len() > c.capacity {
		if oldest := c.ll.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Remove deletes a key, returning the removed value if present.
func (c *LRUCache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	ent := el.Value.(*entry[K, V])
	c.removeElement(el)
	return ent.value, true
}

// Purge drops every entry.
func (c *LRUCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	clear(c.items)
}

// Len returns the number of stored entries, including any not yet
// evicted expired ones.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRUCache[K, V]) removeElement(el *list.Element) {
	ent := el.Value.(*entry[K, V])
	c.ll.Remove(el)
	delete(c.items, ent.key)
}

// Package cache provides the in-process label cache that fronts the
// persistent store. Repeated runs against overlapping address sets
// resolve labels without a store round-trip.
package cache

import (
	"sync"
	"time"
)

const defaultCapacity = 1024

// LRU is a fixed-capacity cache with per-entry TTL. Expired entries
// are dropped lazily on access. A ttl of zero or less disables
// expiration.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[K]*node[K, V]

	// head is most recent, tail is eviction candidate.
	head *node[K, V]
	tail *node[K, V]

	nowFn func() time.Time
}

type node[K comparable, V any] struct {
	key        K
	value      V
	expiresAt  time.Time
	prev, next *node[K, V]
}

// NewLRU creates a cache holding at most capacity entries, each valid
// for ttl after its last write. Non-positive capacities fall back to a
// sane default.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*node[K, V], capacity),
		nowFn:    time.Now,
	}
}

// Get returns the cached value for key. Expired entries report a miss
// and are removed.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(n) {
		c.unlink(n)
		delete(c.items, key)
		var zero V
		return zero, false
	}

	c.moveToHead(n)
	return n.value, true
}

// Put inserts or refreshes key. The entry's TTL restarts on every
// write.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[key]; ok {
		n.value = value
		n.expiresAt = c.deadline()
		c.moveToHead(n)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	n := &node[K, V]{key: key, value: value, expiresAt: c.deadline()}
	c.items[key] = n
	c.pushHead(n)
}

// Remove drops key from the cache if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[key]; ok {
		c.unlink(n)
		delete(c.items, key)
	}
}

// Len reports the number of entries held, counting expired entries
// that have not been touched since expiring.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU[K, V]) deadline() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.nowFn().Add(c.ttl)
}

func (c *LRU[K, V]) expired(n *node[K, V]) bool {
	return !n.expiresAt.IsZero() && c.nowFn().After(n.expiresAt)
}

func (c *LRU[K, V]) evictTail() {
	if c.tail == nil {
		return
	}
	victim := c.tail
	c.unlink(victim)
	delete(c.items, victim.key)
}

func (c *LRU[K, V]) pushHead(n *node[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU[K, V]) moveToHead(n *node[K, V]) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.pushHead(n)
}

func (c *LRU[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}

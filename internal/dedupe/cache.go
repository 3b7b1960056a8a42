// ABOUTME: Thread-safe TTL cache for suppressing redelivered channel events
// ABOUTME: Bounded in size, with O(1) eviction and a background sweep for expired entries

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry holds the sighting time and the key's position in insertion order.
type entry struct {
	at      time.Time
	element *list.Element
}

// Cache tracks recently seen keys so redelivered events can be dropped.
// Entries expire after the TTL; when the cache is full the oldest entry is
// evicted. Insertion order lives in a linked list so eviction stays O(1) on
// the event hot path.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // keys in insertion order, oldest at the front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the given TTL and maximum size. A background
// goroutine periodically removes expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// CheckAndMark atomically checks whether key was seen within the TTL and marks
// it if not. Returns true for duplicates, false for new keys.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, ok := c.seen[key]; ok {
		if now.Sub(e.at) < c.ttl {
			return true
		}
		// Expired: refresh in place and move to the back of the order
		e.at = now
		c.order.MoveToBack(e.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.seen[key] = &entry{at: now, element: c.order.PushBack(key)}
	return false
}

// evictOldestLocked removes the front of the insertion order. Must be called
// with mu held.
func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// sweepLoop periodically removes expired entries until Close.
func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.sweepLocked(time.Now())
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// sweepLocked removes expired entries. Must be called with mu held.
func (c *Cache) sweepLocked(now time.Time) {
	for key, e := range c.seen {
		if now.Sub(e.at) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}

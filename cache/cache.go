// ABOUTME: In-memory keyed store with per-entry TTL expiration
// ABOUTME: Backs the session-scoped credential tier; cleanup goroutine stops on Close

package cache

import (
	"log/slog"
	"sync"
	"time"
)

type entry[V any] struct {
	data      V
	expiresAt time.Time
}

// Cache is a thread-safe TTL store. A zero TTL entry never expires.
type Cache[V any] struct {
	store sync.Map
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

// New creates a cache with a default TTL and starts background cleanup
func New[V any](ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go c.startCleanup(time.Minute)
	return c
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.store.Load(key)
	if !ok {
		slog.Debug("Cache miss", "key", key)
		return zero, false
	}

	e := val.(entry[V])
	if e.expired(time.Now()) {
		c.store.Delete(key)
		slog.Debug("Cache expired", "key", key)
		return zero, false
	}

	slog.Debug("Cache hit", "key", key)
	return e.data, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL; ttl <= 0 keeps it until cleared
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	e := entry[V]{data: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.store.Store(key, e)
	slog.Debug("Cache set", "key", key, "ttl", ttl)
}

// Clear removes key; clearing a missing key is a no-op
func (c *Cache[V]) Clear(key string) {
	c.store.Delete(key)
}

// Len counts live entries
func (c *Cache[V]) Len() int {
	n := 0
	now := time.Now()
	c.store.Range(func(_, val any) bool {
		if !val.(entry[V]).expired(now) {
			n++
		}
		return true
	})
	return n
}

// Close stops the cleanup goroutine. The cache stays readable.
func (c *Cache[V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (c *Cache[V]) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.store.Range(func(key, val any) bool {
				if val.(entry[V]).expired(now) {
					c.store.Delete(key)
				}
				return true
			})
		}
	}
}

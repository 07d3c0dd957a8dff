package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process LRU cache with per-entry expiry.
type MemoryStore struct {
	capacity int
	now      func() time.Time
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List
}

type memoryEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// NewMemoryStore creates a store holding at most capacity entries. A non-positive capacity
// means 1024.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryStore{
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns a copy of the value for key if present and not expired.
func (c *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	entry := elem.Value.(*memoryEntry)
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		c.lru.Remove(elem)
		delete(c.entries, key)
		return nil, ErrMiss
	}
	c.lru.MoveToFront(elem)
	return append([]byte(nil), entry.value...), nil
}

// Set stores value for key, evicting the least recently used entry when at capacity.
func (c *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	value = append([]byte(nil), value...)

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expires = expires
		return nil
	}

	c.entries[key] = c.lru.PushFront(&memoryEntry{key: key, value: value, expires: expires})
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*memoryEntry).key)
		}
	}
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *MemoryStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close is a no-op.
func (c *MemoryStore) Close() error {
	return nil
}

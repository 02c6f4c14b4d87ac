// Package cache provides a small generic in-process LRU with TTL expiry.
// The safety package keeps compiled JSON Schemas in it so a schema sent
// with every request is compiled once.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Memory is a thread-safe LRU cache. A zero ttl means entries never expire.
type Memory[V any] struct {
	mu        sync.Mutex
	capacity  int
	ttl       time.Duration
	items     map[string]*list.Element
	evictList *list.List
	now       func() time.Time

	hits, misses uint64
}

// NewMemory creates a cache holding at most capacity entries (minimum 1).
func NewMemory[V any](capacity int, ttl time.Duration) *Memory[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory[V]{
		capacity:  capacity,
		ttl:       ttl,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		now:       time.Now,
	}
}

// Get returns the value for key, or false if missing or expired.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	elem, ok := m.items[key]
	if !ok {
		m.misses++
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if m.expired(e) {
		m.removeElement(elem)
		m.misses++
		return zero, false
	}
	m.evictList.MoveToFront(elem)
	m.hits++
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (m *Memory[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if m.ttl > 0 {
		expiresAt = m.now().Add(m.ttl)
	}

	if elem, ok := m.items[key]; ok {
		m.evictList.MoveToFront(elem)
		e := elem.Value.(*entry[V])
		e.value, e.expiresAt = value, expiresAt
		return
	}

	if m.evictList.Len() >= m.capacity {
		if oldest := m.evictList.Back(); oldest != nil {
			m.removeElement(oldest)
		}
	}
	m.items[key] = m.evictList.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
}

// Len returns the number of entries, expired ones included until touched.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictList.Len()
}

// Stats returns the hit and miss counts.
func (m *Memory[V]) Stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

func (m *Memory[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && m.now().After(e.expiresAt)
}

func (m *Memory[V]) removeElement(elem *list.Element) {
	m.evictList.Remove(elem)
	delete(m.items, elem.Value.(*entry[V]).key)
}

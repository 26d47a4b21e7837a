// Package cache is the shared result cache for provider fetches. Entries are
// either positive (a serialized successful result) or negative (a marker that
// the key recently failed and must not be retried until the marker expires).
// Negative entries always carry a shorter TTL than positive ones for the same
// logical key.
package cache

import (
	"sync"
	"time"
)

// Cache is the contract both backends satisfy. A negative hit means "this key
// recently failed; treat it as a fresh failure without a live call".
type Cache interface {
	// Get returns (value, true, false) on a positive hit,
	// (nil, true, true) on a negative hit and (nil, false, false) on a miss.
	// Expired entries read as misses.
	Get(key string) (value []byte, ok bool, negative bool)
	PutPositive(key string, value []byte, ttl time.Duration)
	PutNegative(key string, ttl time.Duration)
	Invalidate(key string)
}

type entry struct {
	value     []byte
	createdAt time.Time
	ttl       time.Duration
	negative  bool
}

func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) >= e.ttl
}

// Memory is an in-process Cache. Eviction is lazy: expired entries are
// removed when read. Safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	items map[string]entry
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]entry)}
}

func (m *Memory) Get(key string) ([]byte, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, false, false
	}
	if e.expired(time.Now()) {
		delete(m.items, key)
		return nil, false, false
	}
	if e.negative {
		return nil, true, true
	}
	return e.value, true, false
}

func (m *Memory) PutPositive(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	m.items[key] = entry{value: value, createdAt: time.Now(), ttl: ttl}
	m.mu.Unlock()
}

func (m *Memory) PutNegative(key string, ttl time.Duration) {
	m.mu.Lock()
	m.items[key] = entry{createdAt: time.Now(), ttl: ttl, negative: true}
	m.mu.Unlock()
}

func (m *Memory) Invalidate(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Len reports live (unexpired) entries. Used by tests and the health probe.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
			continue
		}
		n++
	}
	return n
}

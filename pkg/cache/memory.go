package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	result    bool
	expiresAt time.Time
	hitCount  int64
}

// Memory is a bounded in-process cache guarded by a single mutex.
//
// When full, inserting a new key evicts the entry with the lowest hit count.
// This is a frequency heuristic that approximates LRU; it does not track
// recency, and ties are broken by map iteration order.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*entry
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(capacity int) Option {
	return func(m *Memory) {
		if capacity > 0 {
			m.capacity = capacity
		}
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Memory) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-process cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		entries:    make(map[string]*entry),
		capacity:   DefaultCapacity,
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Get returns the cached result for key. Expired entries are removed and
// reported as a miss.
func (m *Memory) Get(_ context.Context, key string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false, false
	}

	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)

		return false, false
	}

	e.hitCount++

	return e.result, true
}

// Set stores result under key. Existing keys are overwritten in place and
// keep their hit count.
func (m *Memory) Set(_ context.Context, key string, result bool, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[key]; ok {
		existing.result = result
		existing.expiresAt = m.now().Add(ttl)

		return
	}

	if len(m.entries) >= m.capacity {
		m.evictLocked()
	}

	m.entries[key] = &entry{result: result, expiresAt: m.now().Add(ttl)}
}

func (m *Memory) evictLocked() {
	var (
		victim string
		lowest int64 = -1
	)

	for key, e := range m.entries {
		if lowest < 0 || e.hitCount < lowest {
			victim = key
			lowest = e.hitCount
		}
	}

	if lowest >= 0 {
		delete(m.entries, victim)
	}
}

// ClearExpired removes every expired entry and returns how many were removed.
func (m *Memory) ClearExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0

	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)

			removed++
		}
	}

	return removed
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*entry)
}

// Stats reports occupancy and hit counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Size: len(m.entries), Capacity: m.capacity}

	for _, e := range m.entries {
		stats.TotalHits += e.hitCount
	}

	if stats.Size > 0 {
		stats.HitRate = float64(stats.TotalHits) / float64(stats.Size)
	}

	return stats
}

// HitCount returns the hit count of key, or -1 if it is not cached.
func (m *Memory) HitCount(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return -1
	}

	return e.hitCount
}

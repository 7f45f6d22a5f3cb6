package cache

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 256

type memoryEntry struct {
	value      []byte
	expiresAt  time.Time
	lastAccess time.Time
}

// Memory is an in-process Store with TTL expiry and LRU eviction.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemory returns a Memory store holding at most maxEntries values.
// maxEntries <= 0 uses a default of 256.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	e.lastAccess = now
	m.entries[key] = e
	return append([]byte(nil), e.value...), true, nil
}

// Set stores value; ttl <= 0 means no expiry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := m.now()
	e := memoryEntry{
		value:      append([]byte(nil), value...),
		lastAccess: now,
	}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	m.evictExpiredLocked(now)
	m.evictLRULocked()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) evictExpiredLocked(now time.Time) {
	for key, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}

func (m *Memory) evictLRULocked() {
	for len(m.entries) > m.maxEntries {
		var oldestKey string
		var oldest time.Time
		first := true
		for key, e := range m.entries {
			if first || e.lastAccess.Before(oldest) {
				oldestKey = key
				oldest = e.lastAccess
				first = false
			}
		}
		delete(m.entries, oldestKey)
	}
}

package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is the in-process backend: a mutex-guarded map with lazy expiry.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	hits, misses, evictions int64
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

// WithNow swaps the clock. Testing hook.
func (m *Memory) WithNow(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		m.misses++
		m.evictions++
		return nil, false, nil
	}
	m.hits++
	return e.payload, true, nil
}

func (m *Memory) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{payload: payload, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, substring string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.entries {
		if strings.Contains(key, substring) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Close() error { return nil }

// MemoryStats is a point-in-time counter snapshot.
type MemoryStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Stats returns counters for observability endpoints.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryStats{
		Entries:   len(m.entries),
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
	}
}

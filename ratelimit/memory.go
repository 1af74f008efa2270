package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is how many increments pass between removals of elapsed windows.
const sweepEvery = 1024

// MemoryStore is a process-local [Store]. Quotas are not shared across
// instances, so it suits single-process deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*Record
	ops     int
	nowFunc func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{windows: make(map[string]*Record), nowFunc: now}
}

// Increment implements [Store]. It never fails.
func (m *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	m.ops++
	if m.ops%sweepEvery == 0 {
		m.sweepLocked(now)
	}

	rec, ok := m.windows[key]
	if !ok || !now.Before(rec.ResetAt) {
		rec = &Record{WindowStart: now, ResetAt: now.Add(window)}
		m.windows[key] = rec
	}
	rec.Count++
	return *rec, nil
}

// Len reports how many windows are tracked, elapsed ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *MemoryStore) sweepLocked(now time.Time) {
	for k, rec := range m.windows {
		if !now.Before(rec.ResetAt) {
			delete(m.windows, k)
		}
	}
}

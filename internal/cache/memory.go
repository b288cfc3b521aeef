package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryStore is a process-local Store used by tests and the
// `cache.backend: memory` development mode.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewMemory returns an in-memory Store with per-key expiry.
func NewMemory() Store {
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.nowFunc().After(e.expiresAt) {
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: v, expiresAt: m.nowFunc().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	delete(m.entries, key)
	m.mu.Unlock()
	return ok && !m.nowFunc().After(e.expiresAt), nil
}

func (m *memoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	remaining := e.expiresAt.Sub(m.nowFunc())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (m *memoryStore) Close() error { return nil }

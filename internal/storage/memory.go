package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend is an in-process, unbounded map-backed cache. It is the
// default backend a cachemgr.Manager uses when no other backend is
// configured.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]map[string]any
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]map[string]any)}
}

func (m *MemoryBackend) Retrieve(_ context.Context, key string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[key], nil
}

func (m *MemoryBackend) RetrieveAll(_ context.Context) (map[string]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]any, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryBackend) RetrieveKeys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Update(_ context.Context, key string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = data
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MemoryBackend) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]map[string]any)
	return nil
}

func (m *MemoryBackend) Verify(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[key]
	return ok, nil
}

func (m *MemoryBackend) IsAvailable(_ context.Context) bool {
	return true
}

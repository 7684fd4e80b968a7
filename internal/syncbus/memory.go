package syncbus

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Both displays share one when they
// run inside the same process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	watch  watchers
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	v := append([]byte(nil), value...)
	m.mu.Lock()
	m.values[key] = v
	m.mu.Unlock()

	m.watch.notify(key, v)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Watch(key string) (<-chan []byte, func()) {
	return m.watch.add(key)
}

func (m *MemoryStore) Close() error {
	m.watch.closeAll()
	return nil
}

package cache

import (
	"context"
	"sync"
)

// MemoryBackend keeps entries in process memory. It is used by the
// simulator and when no Redis or Postgres is configured.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
	lists  map[string][][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string][]byte),
		lists:  make(map[string][][]byte),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) PushBounded(_ context.Context, key string, value []byte, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.lists[key], append([]byte(nil), value...))
	if limit > 0 && len(list) > limit {
		list = append([][]byte(nil), list[len(list)-limit:]...)
	}
	m.lists[key] = list
	return nil
}

func (m *MemoryBackend) List(_ context.Context, key string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.lists[key]
	out := make([][]byte, len(list))
	for i, v := range list {
		out[i] = append([]byte(nil), v...)
	}
	return out, nil
}

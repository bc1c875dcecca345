package objectstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryBackend keeps objects in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	puts    int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects: make(map[string][]byte),
	}
}

func (m *MemoryBackend) ListKeys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	m.objects[key] = copied
	m.puts++
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// PutCount returns how many Put calls succeeded.
func (m *MemoryBackend) PutCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

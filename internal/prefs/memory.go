package prefs

import (
	"context"
	"sync"
)

// MemoryBackend keeps preferences in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	data    map[string]string
	invalid bool
	// Err, when set, is returned by every operation.
	Err error
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

func (m *MemoryBackend) Get(_ context.Context, keys []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryBackend) Set(_ context.Context, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for k, v := range kv {
		m.data[k] = v
	}
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryBackend) Valid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.invalid
}

// Invalidate makes the backend unusable, as when the extension is reloaded
// under a running page.
func (m *MemoryBackend) Invalidate() {
	m.mu.Lock()
	m.invalid = true
	m.mu.Unlock()
}

// Package local implements the guest backend: notes persisted on this device
// only, as a single JSON blob under a fixed namespace key.
package local

import (
	"context"
	"sync"

	"github.com/aretw0/synote/pkg/core"
)

// Storage is a string-keyed blob store (the browser localStorage contract).
type Storage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Watchable is implemented by storages that can report changes made by other
// processes. fn receives the key that changed.
type Watchable interface {
	Watch(ctx context.Context, pattern string, fn func(key string)) (core.Unsubscribe, error)
}

// MemoryStorage is an in-process Storage, mainly for tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

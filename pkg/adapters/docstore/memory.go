package docstore

import (
	"maps"
	"sync"
)

type memoryEngine struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any
}

// NewMemory returns a Store that keeps documents in memory.
func NewMemory(opts ...Option) *DB {
	return newDB(&memoryEngine{data: make(map[string]map[string]map[string]any)}, opts...)
}

func (m *memoryEngine) name() string { return "memory" }

func (m *memoryEngine) list(collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.data[collection]))
	for id, data := range m.data[collection] {
		docs = append(docs, Document{ID: id, Path: Join(collection, id), Data: maps.Clone(data)})
	}
	return docs, nil
}

func (m *memoryEngine) get(collection, id string) (Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[collection][id]
	if !ok {
		return Document{}, false, nil
	}
	return Document{ID: id, Path: Join(collection, id), Data: maps.Clone(data)}, true, nil
}

func (m *memoryEngine) apply(ops []op) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate everything first so a failing op leaves no partial write.
	staged := make([]map[string]any, len(ops))
	for i, o := range ops {
		if o.delete {
			continue
		}
		current, exists := m.data[o.collection][o.id]
		next, err := mergeData(current, exists, o)
		if err != nil {
			return err
		}
		staged[i] = next
	}

	for i, o := range ops {
		if o.delete {
			delete(m.data[o.collection], o.id)
			continue
		}
		if m.data[o.collection] == nil {
			m.data[o.collection] = make(map[string]map[string]any)
		}
		m.data[o.collection][o.id] = staged[i]
	}
	return nil
}

func (m *memoryEngine) close() error { return nil }

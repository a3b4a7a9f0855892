package local

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/synote/pkg/core"
)

// DefaultNamespace is the storage key holding the guest note list.
const DefaultNamespace = "synote-guest-notes"

// Store is the Local Guest Store: the whole note list is read, modified and
// written back as one serialized blob on every mutation.
// Insertion order is most-recently-added first.
type Store struct {
	storage Storage
	key     string
	logger  *slog.Logger

	mu sync.Mutex
}

// NewStore binds a guest store to one namespace key of storage.
func NewStore(storage Storage, namespace string, logger *slog.Logger) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{storage: storage, key: namespace, logger: logger}
}

// Namespace returns the storage key this store owns.
func (s *Store) Namespace() string { return s.key }

// load reads the blob. A corrupt blob is treated as empty so the session can
// keep working; the next mutation overwrites it.
func (s *Store) load() ([]core.Note, error) {
	raw, ok, err := s.storage.GetItem(s.key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var notes []core.Note
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		s.logger.Warn("guest notes blob is corrupt, starting fresh", "key", s.key, "error", err)
		return nil, nil
	}
	return notes, nil
}

func (s *Store) save(notes []core.Note) error {
	if notes == nil {
		notes = []core.Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("failed to encode guest notes: %w", err)
	}
	return s.storage.SetItem(s.key, string(data))
}

// ListAll returns every note in insertion order.
func (s *Store) ListAll() ([]core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the note with id, if present.
func (s *Store) Get(id string) (core.Note, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load()
	if err != nil {
		return core.Note{}, false, err
	}
	for _, n := range notes {
		if n.ID == id {
			return n, true, nil
		}
	}
	return core.Note{}, false, nil
}

// Add prepends n. Ids must be unique within the collection.
func (s *Store) Add(n core.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load()
	if err != nil {
		return err
	}
	if slices.ContainsFunc(notes, func(x core.Note) bool { return x.ID == n.ID }) {
		return fmt.Errorf("guest note %s already exists", n.ID)
	}
	return s.save(append([]core.Note{n}, notes...))
}

// Update merges p into the note with id. Missing ids are a no-op.
func (s *Store) Update(id string, p core.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(notes, func(x core.Note) bool { return x.ID == id })
	if i < 0 {
		return nil
	}
	notes[i] = p.Apply(notes[i])
	return s.save(notes)
}

// Delete removes the note with id if present.
func (s *Store) Delete(id string) error {
	return s.DeleteMany([]string{id})
}

// DeleteMany removes all ids in one write.
func (s *Store) DeleteMany(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.load()
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(notes, func(x core.Note) bool {
		return slices.Contains(ids, x.ID)
	})
	return s.save(kept)
}

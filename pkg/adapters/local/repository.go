package local

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/synote/pkg/core"
	"github.com/aretw0/synote/pkg/feed"
)

// Config holds the configuration for the guest repository.
type Config struct {
	SortField core.SortField
	Logger    *slog.Logger
	Clock     func() time.Time
}

type noteState struct {
	note   core.Note
	exists bool
}

type noteSub struct {
	id  string
	box *feed.Mailbox[noteState]
}

// Repository implements core.NoteRepository over a guest Store. Every mutation
// republishes the full snapshot to live subscribers.
type Repository struct {
	store  *Store
	config Config

	mu          sync.Mutex
	nextSub     uint64
	collections map[uint64]*feed.Mailbox[[]core.Note]
	notes       map[uint64]noteSub
	lastID      int64
	stopWatch   core.Unsubscribe
	publishes   int
}

// NewRepository wraps store.
func NewRepository(store *Store, config Config) *Repository {
	if !config.SortField.Valid() {
		config.SortField = core.SortUpdatedAt
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Repository{
		store:       store,
		config:      config,
		collections: make(map[uint64]*feed.Mailbox[[]core.Note]),
		notes:       make(map[uint64]noteSub),
	}
}

// snapshot lists the store ordered by the canonical field, newest first.
// The sort is stable, so equal timestamps keep insertion order.
func (r *Repository) snapshot() ([]core.Note, error) {
	notes, err := r.store.ListAll()
	if err != nil {
		return nil, err
	}
	field := r.config.SortField
	slices.SortStableFunc(notes, func(a, b core.Note) int {
		return b.SortKey(field).Compare(a.SortKey(field))
	})
	return notes, nil
}

// publish pushes the current state to every subscriber.
// The snapshot is taken under r.mu so a late publish never overwrites a newer
// one with older data.
func (r *Repository) publish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	notes, err := r.snapshot()
	if err != nil {
		r.config.Logger.Error("guest snapshot failed", "error", err)
		return
	}
	r.publishes++

	for _, box := range r.collections {
		box.Put(slices.Clone(notes))
	}
	for _, sub := range r.notes {
		sub.box.Put(lookup(notes, sub.id))
	}
}

func lookup(notes []core.Note, id string) noteState {
	i := slices.IndexFunc(notes, func(n core.Note) bool { return n.ID == id })
	if i < 0 {
		return noteState{}
	}
	return noteState{note: notes[i], exists: true}
}

func (r *Repository) onPanic(err error) {
	r.config.Logger.Error("guest subscriber panic", "error", err)
}

// SubscribeCollection implements core.NoteRepository.
func (r *Repository) SubscribeCollection(ctx context.Context, fn core.SnapshotFunc) (core.Unsubscribe, error) {
	r.mu.Lock()
	notes, err := r.snapshot()
	if err != nil {
		r.mu.Unlock()
		return nil, core.NewRepositoryError("subscribe", "", err)
	}
	box := feed.Start(ctx, func(n []core.Note) { fn(n) }, r.onPanic)
	r.nextSub++
	id := r.nextSub
	r.collections[id] = box
	startWatch := r.stopWatch == nil
	box.Put(notes)
	r.mu.Unlock()

	if startWatch {
		r.watchStorage(ctx)
	}

	r.config.Logger.Debug("guest collection subscribed", "sub", id)
	var once sync.Once
	return func() {
		once.Do(func() {
			box.Stop()
			r.mu.Lock()
			delete(r.collections, id)
			var stop core.Unsubscribe
			if len(r.collections) == 0 {
				stop, r.stopWatch = r.stopWatch, nil
			}
			r.mu.Unlock()
			if stop != nil {
				stop()
			}
		})
	}, nil
}

// watchStorage republishes when another process rewrites the guest blob.
func (r *Repository) watchStorage(ctx context.Context) {
	w, ok := r.store.storage.(Watchable)
	if !ok {
		return
	}
	stop, err := w.Watch(ctx, r.store.Namespace(), func(string) { r.publish() })
	if err != nil {
		r.config.Logger.Warn("guest storage watch unavailable", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopWatch != nil || len(r.collections) == 0 {
		stop()
		return
	}
	r.stopWatch = stop
}

// SubscribeNote implements core.NoteRepository.
func (r *Repository) SubscribeNote(ctx context.Context, id string, fn core.NoteFunc) (core.Unsubscribe, error) {
	r.mu.Lock()
	notes, err := r.snapshot()
	if err != nil {
		r.mu.Unlock()
		return nil, core.NewRepositoryError("subscribe", id, err)
	}
	box := feed.Start(ctx, func(s noteState) { fn(s.note, s.exists) }, r.onPanic)
	r.nextSub++
	subID := r.nextSub
	r.notes[subID] = noteSub{id: id, box: box}
	box.Put(lookup(notes, id))
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			box.Stop()
			r.mu.Lock()
			delete(r.notes, subID)
			r.mu.Unlock()
		})
	}, nil
}

// Get implements core.NoteReader.
func (r *Repository) Get(ctx context.Context, id string) (core.Note, bool, error) {
	n, ok, err := r.store.Get(id)
	if err != nil {
		return core.Note{}, false, core.NewRepositoryError("read", id, err)
	}
	return n, ok, nil
}

// newID derives a unique id from the current millisecond timestamp.
func (r *Repository) newID(now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ms := now.UnixMilli()
	if ms <= r.lastID {
		ms = r.lastID + 1
	}
	r.lastID = ms
	return strconv.FormatInt(ms, 10)
}

// Create implements core.NoteRepository.
func (r *Repository) Create(ctx context.Context, fields core.Patch) (string, error) {
	now := r.config.Clock()
	if fields.CreatedAt == nil {
		fields = fields.WithCreatedAt(now)
	}
	if fields.UpdatedAt == nil {
		fields = fields.WithUpdatedAt(now)
	}

	id := r.newID(now)
	for {
		_, exists, err := r.store.Get(id)
		if err != nil {
			return "", core.NewRepositoryError("create", "", err)
		}
		if !exists {
			break
		}
		id = r.newID(now)
	}

	if err := r.store.Add(fields.Apply(core.Note{ID: id})); err != nil {
		return "", core.NewRepositoryError("create", id, err)
	}
	r.publish()
	return id, nil
}

// Update implements core.NoteRepository.
func (r *Repository) Update(ctx context.Context, id string, fields core.Patch) error {
	if err := r.store.Update(id, fields); err != nil {
		return core.NewRepositoryError("update", id, err)
	}
	r.publish()
	return nil
}

// Delete implements core.NoteRepository.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(id); err != nil {
		return core.NewRepositoryError("delete", id, err)
	}
	r.publish()
	return nil
}

// BatchDelete implements core.NoteRepository. The guest blob is rewritten once,
// so the batch is all or nothing.
func (r *Repository) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.store.DeleteMany(ids); err != nil {
		return core.NewRepositoryError("batch delete", "", err)
	}
	r.publish()
	return nil
}

var (
	_ core.NoteRepository = (*Repository)(nil)
	_ core.NoteReader     = (*Repository)(nil)
)

// Package remote adapts a hosted document store to core.NoteRepository.
//
// Notes of a user live at users/{userId}/notes/{noteId}. The repository is bound
// to one user when it is built; a new one is created on every sign-in.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/synote/pkg/adapters/docstore"
	"github.com/aretw0/synote/pkg/core"
)

// Field names of a stored note document.
const (
	FieldTitle      = "title"
	FieldContent    = "content"
	FieldCompressed = "isCompressed"
	FieldCreatedAt  = "createdAt"
	FieldUpdatedAt  = "updatedAt"
)

// Config holds the configuration for the remote repository.
type Config struct {
	UserID    string
	SortField core.SortField
	// Clock stamps missing timestamps. When nil the store's own clock is used.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Repository implements core.NoteRepository over a docstore.Store.
type Repository struct {
	store      docstore.Store
	config     Config
	collection string
}

// NewRepository binds store to the notes collection of config.UserID.
func NewRepository(store docstore.Store, config Config) (*Repository, error) {
	if config.UserID == "" {
		return nil, &core.ValidationError{Field: "userId", Message: "a signed-in user is required"}
	}
	if !config.SortField.Valid() {
		config.SortField = core.SortUpdatedAt
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{
		store:      store,
		config:     config,
		collection: docstore.Join("users", config.UserID, "notes"),
	}, nil
}

// UserID returns the owner of the collection.
func (r *Repository) UserID() string { return r.config.UserID }

func (r *Repository) path(id string) string {
	return docstore.Join(r.collection, id)
}

func (r *Repository) now() any {
	if r.config.Clock != nil {
		return r.config.Clock().UTC()
	}
	return docstore.ServerTimestamp
}

// SubscribeCollection implements core.NoteRepository.
func (r *Repository) SubscribeCollection(ctx context.Context, fn core.SnapshotFunc) (core.Unsubscribe, error) {
	q := docstore.Query{Collection: r.collection, OrderBy: string(r.config.SortField), Descending: true}
	cancel, err := r.store.Subscribe(ctx, q, func(docs []docstore.Document) {
		notes := make([]core.Note, 0, len(docs))
		for _, d := range docs {
			notes = append(notes, r.toNote(d))
		}
		fn(notes)
	})
	if err != nil {
		return nil, core.NewRepositoryError("subscribe", "", err)
	}
	r.config.Logger.Debug("remote collection subscribed", "user", r.config.UserID)
	return cancel, nil
}

// SubscribeNote implements core.NoteRepository.
func (r *Repository) SubscribeNote(ctx context.Context, id string, fn core.NoteFunc) (core.Unsubscribe, error) {
	cancel, err := r.store.SubscribeDocument(ctx, r.path(id), func(d docstore.Document, exists bool) {
		if !exists {
			fn(core.Note{}, false)
			return
		}
		fn(r.toNote(d), true)
	})
	if err != nil {
		return nil, core.NewRepositoryError("subscribe", id, err)
	}
	return cancel, nil
}

// Create implements core.NoteRepository. Missing timestamps are stamped.
func (r *Repository) Create(ctx context.Context, fields core.Patch) (string, error) {
	data := toData(fields)
	if _, ok := data[FieldTitle]; !ok {
		data[FieldTitle] = ""
	}
	if _, ok := data[FieldContent]; !ok {
		data[FieldContent] = ""
	}
	if fields.CreatedAt == nil {
		data[FieldCreatedAt] = r.now()
	}
	if fields.UpdatedAt == nil {
		data[FieldUpdatedAt] = r.now()
	}

	id, err := r.store.Add(ctx, r.collection, data)
	if err != nil {
		return "", core.NewRepositoryError("create", "", err)
	}
	return id, nil
}

// Update implements core.NoteRepository as a merge write.
func (r *Repository) Update(ctx context.Context, id string, fields core.Patch) error {
	if fields.Empty() {
		return nil
	}
	if err := r.store.Set(ctx, r.path(id), toData(fields), true); err != nil {
		return core.NewRepositoryError("update", id, err)
	}
	return nil
}

// Delete implements core.NoteRepository.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.path(id)); err != nil {
		return core.NewRepositoryError("delete", id, err)
	}
	return nil
}

// BatchDelete implements core.NoteRepository. On failure the outcome is unknown;
// callers re-read the collection snapshot.
func (r *Repository) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	paths := make([]string, len(ids))
	for i, id := range ids {
		paths[i] = r.path(id)
	}
	if err := r.store.BatchDelete(ctx, paths); err != nil {
		return core.NewRepositoryError("batch delete", "", err)
	}
	return nil
}

func toData(p core.Patch) map[string]any {
	data := make(map[string]any, 5)
	if p.Title != nil {
		data[FieldTitle] = *p.Title
	}
	if p.Content != nil {
		data[FieldContent] = *p.Content
	}
	if p.Compressed != nil {
		data[FieldCompressed] = *p.Compressed
	}
	if p.CreatedAt != nil {
		data[FieldCreatedAt] = p.CreatedAt.UTC()
	}
	if p.UpdatedAt != nil {
		data[FieldUpdatedAt] = p.UpdatedAt.UTC()
	}
	return data
}

// toNote reads a stored document leniently: fields of the wrong type are
// treated as absent, so legacy documents still render.
func (r *Repository) toNote(d docstore.Document) core.Note {
	n := core.Note{ID: d.ID}
	n.Title, _ = d.Data[FieldTitle].(string)
	n.Content, _ = d.Data[FieldContent].(string)
	n.Compressed, _ = d.Data[FieldCompressed].(bool)

	var err error
	if n.CreatedAt, err = asTime(d.Data[FieldCreatedAt]); err != nil {
		r.config.Logger.Debug("unreadable timestamp", "id", d.ID, "field", FieldCreatedAt, "error", err)
	}
	if n.UpdatedAt, err = asTime(d.Data[FieldUpdatedAt]); err != nil {
		r.config.Logger.Debug("unreadable timestamp", "id", d.ID, "field", FieldUpdatedAt, "error", err)
	}
	return n
}

var errNotTimestamp = errors.New("not a timestamp")

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	default:
		return time.Time{}, errNotTimestamp
	}
}

var _ core.NoteRepository = (*Repository)(nil)

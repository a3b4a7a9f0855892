// Package docstore is a small hosted-document-store model: documents live at
// slash separated paths ("users/u1/notes/abc"), collections are listed with a
// single-field ordering, and readers subscribe to live snapshots.
//
// Two backends are provided: an in-memory store for tests and guest tooling,
// and a bbolt file that keeps one bucket per collection path.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

var (
	ErrClosed      = errors.New("document store is closed")
	ErrInvalidPath = errors.New("invalid document path")
	ErrExists      = errors.New("document already exists")
)

// Document is one stored record.
type Document struct {
	ID   string
	Path string
	Data map[string]any
}

// Query selects a collection ordered by one field.
// Documents missing the field sort after every document that has it.
type Query struct {
	Collection string
	OrderBy    string
	Descending bool
}

// SnapshotFunc receives the full ordered result of a query.
type SnapshotFunc func([]Document)

// DocumentFunc receives the current state of one document.
type DocumentFunc func(doc Document, exists bool)

// Store is the document store capability the remote note repository needs.
//
// Subscriptions deliver an initial snapshot and then one after every write that
// touches them. Callbacks run on a goroutine owned by the subscription, never on
// the writer's goroutine. Calling the returned cancel function, or cancelling ctx,
// ends delivery.
type Store interface {
	Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (cancel func(), err error)
	SubscribeDocument(ctx context.Context, path string, fn DocumentFunc) (cancel func(), err error)
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Get(ctx context.Context, path string) (Document, bool, error)
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	Delete(ctx context.Context, path string) error
	BatchDelete(ctx context.Context, paths []string) error
	Close() error
}

type serverTimestamp struct{}

// ServerTimestamp is replaced with the store clock when a write is applied.
var ServerTimestamp any = serverTimestamp{}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func segments(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// splitDocument returns the collection path and id of a document path.
func splitDocument(path string) (collection, id string, err error) {
	parts, err := segments(path)
	if err != nil {
		return "", "", err
	}
	if len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

func validCollection(path string) error {
	parts, err := segments(path)
	if err != nil {
		return err
	}
	if len(parts)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return nil
}

// resolve copies data, replacing ServerTimestamp sentinels with now.
func resolve(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if _, ok := v.(serverTimestamp); ok {
			v = now
		}
		out[k] = v
	}
	return out
}

func cloneDocument(d Document) Document {
	d.Data = maps.Clone(d.Data)
	return d
}

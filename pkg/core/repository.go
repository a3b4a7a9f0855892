package core

import "context"

// Unsubscribe releases a live subscription. It is safe to call more than once
// and never blocks on an in-flight callback.
type Unsubscribe func()

// SnapshotFunc receives the full, ordered note collection on every change.
type SnapshotFunc func(notes []Note)

// NoteFunc receives the current state of a single note.
// exists is false once the note has been deleted.
type NoteFunc func(note Note, exists bool)

// NoteRepository defines the contract for storing and observing a user's notes.
// Adhering to this interface keeps the session independent of the backend
// (local guest storage or a hosted document store).
//
// Callbacks are always delivered on a goroutine owned by the repository, never
// on the goroutine that issued a write.
type NoteRepository interface {
	// SubscribeCollection opens a live query ordered by the canonical sort
	// field, descending. fn fires with the initial list and after every change.
	SubscribeCollection(ctx context.Context, fn SnapshotFunc) (Unsubscribe, error)

	// SubscribeNote opens a live single-note feed.
	SubscribeNote(ctx context.Context, id string, fn NoteFunc) (Unsubscribe, error)

	// Create stores a new note and returns its id.
	Create(ctx context.Context, fields Patch) (string, error)

	// Update merges the named fields into an existing note.
	Update(ctx context.Context, id string, fields Patch) error

	// Delete removes a note.
	Delete(ctx context.Context, id string) error

	// BatchDelete removes all ids or none. On failure the outcome is indeterminate
	// and callers must re-derive truth from the next snapshot.
	BatchDelete(ctx context.Context, ids []string) error
}

// NoteReader is implemented by repositories that can answer reads synchronously
// (the local guest store).
type NoteReader interface {
	Get(ctx context.Context, id string) (Note, bool, error)
}

// Package session is the synchronization core of a signed-in client: it keeps
// the note collection cache, the active note and the editor consistent with a
// live note repository while debouncing the user's edits back into it.
//
// A Session is created on sign-in and closed on sign-out. Repository callbacks,
// timers and user calls may arrive on any goroutine; the session serializes
// them behind one mutex, so they interleave as if on one logical thread.
// Presentation receives core.Event hints and reads state back through the
// query methods.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/synote/pkg/calc"
	"github.com/aretw0/synote/pkg/codec"
	"github.com/aretw0/synote/pkg/core"
)

// Config holds the configuration for a Session.
type Config struct {
	User       core.User
	Repository core.NoteRepository
	// Codec compresses content on save. Nil stores plain text.
	Codec         core.Codec
	DebounceDelay time.Duration
	ConfirmWindow time.Duration
	WriteTimeout  time.Duration
	Clock         func() time.Time
	Logger        *slog.Logger
	// Events receives change hints. Sends never block; when the buffer is full
	// the event is dropped.
	Events chan<- core.Event
}

// Session is the per-user session context.
type Session struct {
	config Config
	logger *slog.Logger

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	cache      *Cache
	controller *Controller
	scheduler  *Scheduler
	gate       *Gate
	unsubNotes core.Unsubscribe
	ready      chan struct{}
	snapshots  int
	started    bool
	closed     bool
	dropped    atomic.Int64
}

// New creates a session. Call Start to open the collection subscription.
func New(config Config) (*Session, error) {
	if config.Repository == nil {
		return nil, errors.New("session requires a repository")
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Session{
		config: config,
		logger: config.Logger.With("user", config.User.ID),
		cache:  NewCache(config.Codec),
		ready:  make(chan struct{}),
	}
	s.scheduler = NewScheduler(SchedulerConfig{
		Delay:        config.DebounceDelay,
		WriteTimeout: config.WriteTimeout,
		Write:        s.writeField,
		OnState:      s.onSaveState,
		Logger:       s.logger,
	})
	s.gate = NewGate(config.ConfirmWindow, nil)
	return s, nil
}

// emit never blocks.
func (s *Session) emit(e core.Event) {
	if s.config.Events == nil {
		return
	}
	select {
	case s.config.Events <- e:
	default:
		s.dropped.Add(1)
		s.logger.Warn("event dropped, buffer full", "event", e.String())
	}
}

func (s *Session) notify(level core.NoticeLevel, msg string) {
	s.emit(core.NewNotice(level, msg))
}

// fail reports err as a notice and returns it.
func (s *Session) fail(err error) error {
	s.notify(core.NoticeError, err.Error())
	return err
}

func (s *Session) onSaveState(noteID string, field Field, status FieldStatus) {
	e := core.NewEvent(core.EventSaveState, noteID)
	e.Message = string(field) + " " + status.State.String()
	if status.Err != nil {
		e.Level = core.NoticeError
		e.Message += ": " + status.Err.Error()
	}
	s.emit(e)
}

// writeField is the scheduler's write: a merge write of one field plus the
// canonical timestamp.
func (s *Session) writeField(ctx context.Context, noteID string, field Field, value string) error {
	patch := core.Patch{}.WithUpdatedAt(s.config.Clock())
	switch field {
	case FieldTitle:
		patch = patch.WithTitle(value)
	case FieldContent:
		content, compressed, err := codec.Encode(s.config.Codec, value)
		if err != nil {
			return fmt.Errorf("encode content: %w", err)
		}
		patch = patch.WithContent(content, compressed)
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return s.config.Repository.Update(ctx, noteID, patch)
}

// Start opens the collection subscription. The first snapshot closes Ready.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrClosed
	}
	if s.started {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.controller = NewController(s.ctx, &s.mu, ControllerConfig{
		Repository: s.config.Repository,
		Codec:      s.config.Codec,
		Pending:    s.scheduler.Pending,
		Emit:       s.emit,
		Logger:     s.logger,
	})

	unsub, err := s.config.Repository.SubscribeCollection(s.ctx, s.onSnapshot)
	if err != nil {
		s.cancel()
		return s.fail(err)
	}
	s.unsubNotes = unsub
	s.started = true
	s.emit(core.NewEvent(core.EventAuth, s.config.User.ID))
	s.logger.Info("session started", "anonymous", s.config.User.Anonymous)
	return nil
}

// onSnapshot runs on the repository's delivery goroutine.
func (s *Session) onSnapshot(notes []core.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.cache.Replace(notes)
	s.snapshots++
	s.emit(core.NewEvent(core.EventNotes, ""))
	if err := s.controller.AutoSelect(notes); err != nil {
		s.logger.Warn("auto select failed", "error", err)
		s.notify(core.NoticeError, err.Error())
	}
	if s.snapshots == 1 {
		close(s.ready)
	}
}

// Ready is closed once the first collection snapshot has been applied.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// User returns the identity the session belongs to.
func (s *Session) User() core.User { return s.config.User }

// Guest reports whether the session runs on the local guest store.
func (s *Session) Guest() bool { return s.config.User.Anonymous }

// Notes returns the cached collection in order.
func (s *Session) Notes() []core.Note { return s.cache.All() }

// Search filters the cache by title or content.
func (s *Session) Search(query string) []core.Note { return s.cache.Search(query) }

// Match filters the cache by a glob over titles.
func (s *Session) Match(pattern string) ([]core.Note, error) { return s.cache.Match(pattern) }

// Content returns the decoded content of a cached note.
func (s *Session) Content(id string) (string, bool) {
	n, ok := s.cache.Get(id)
	if !ok {
		return "", false
	}
	return s.cache.Content(n), true
}

// Active returns the active note as cached.
func (s *Session) Active() (core.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller == nil || s.controller.ActiveID() == "" {
		return core.Note{}, false
	}
	return s.cache.Get(s.controller.ActiveID())
}

// Editor returns the editor fields of the active note.
func (s *Session) Editor() Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller == nil {
		return Editor{}
	}
	return s.controller.Editor()
}

// Loaded reports whether the active note's stored fields have reached the
// editor. Edits made before that replace content the user has not seen.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller != nil && s.controller.Loaded()
}

// SaveState returns the aggregated save state of the active note.
func (s *Session) SaveState() FieldStatus {
	s.mu.Lock()
	id := ""
	if s.controller != nil {
		id = s.controller.ActiveID()
	}
	s.mu.Unlock()
	if id == "" {
		return FieldStatus{}
	}
	return s.scheduler.NoteStatus(id)
}

// Gate exposes the confirmation gate, e.g. for sign-out.
func (s *Session) Gate() *Gate { return s.gate }

// lockStarted locks the session and checks it is usable. On success the
// caller owns s.mu.
func (s *Session) lockStarted() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrClosed
	}
	if !s.started {
		s.mu.Unlock()
		return errors.New("session not started")
	}
	return nil
}

// Select makes id the active note. Unknown ids are rejected.
func (s *Session) Select(id string) error {
	if err := s.lockStarted(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if !s.cache.Has(id) {
		return core.ErrNotFound
	}
	if s.controller.ActiveID() == id {
		return nil
	}
	if err := s.controller.Select(id); err != nil {
		return s.fail(err)
	}
	return nil
}

// Deselect clears the active note.
func (s *Session) Deselect() error {
	if err := s.lockStarted(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.controller.Deselect()
	return nil
}

// NewNote creates an empty note and selects it as soon as the collection
// snapshot contains it.
func (s *Session) NewNote(ctx context.Context) (string, error) {
	if err := s.lockStarted(); err != nil {
		return "", err
	}
	s.mu.Unlock()

	now := s.config.Clock()
	id, err := s.config.Repository.Create(ctx, core.Patch{}.
		WithTitle(core.DefaultTitle).
		WithContent("", false).
		WithCreatedAt(now).
		WithUpdatedAt(now))
	if err != nil {
		return "", s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return id, nil
	}
	switch {
	case s.controller.ActiveID() == id:
		// Already picked up by a snapshot that arrived first.
	case s.cache.Has(id):
		if err := s.controller.Select(id); err != nil {
			return id, s.fail(err)
		}
	default:
		s.controller.Expect(id)
	}
	s.logger.Debug("note created", "id", id)
	return id, nil
}

// Rename writes a new title right away. Titles are trimmed and must not be empty.
func (s *Session) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return s.fail(&core.ValidationError{Field: "title", Message: "Title cannot be empty."})
	}
	if err := s.lockStarted(); err != nil {
		return err
	}
	if !s.cache.Has(id) {
		s.mu.Unlock()
		return core.ErrNotFound
	}
	// A debounced title landing after the rename would overwrite it.
	s.scheduler.Cancel(id, FieldTitle)
	if s.controller.ActiveID() == id {
		s.controller.SetTitle(title)
		s.emit(core.NewEvent(core.EventEditor, id))
	}
	s.mu.Unlock()
	if err := s.scheduler.Wait(ctx, id, FieldTitle); err != nil {
		return s.fail(err)
	}

	patch := core.Patch{}.WithTitle(title).WithUpdatedAt(s.config.Clock())
	if err := s.config.Repository.Update(ctx, id, patch); err != nil {
		return s.fail(err)
	}
	s.notify(core.NoticeSuccess, "Note renamed.")
	return nil
}

// activeForEdit must be called with s.mu held.
func (s *Session) activeForEdit() (string, error) {
	id := s.controller.ActiveID()
	if id == "" {
		return "", core.ErrNoActiveNote
	}
	return id, nil
}

// EditTitle records title input for the active note and debounces its save.
func (s *Session) EditTitle(title string) error {
	if err := s.lockStarted(); err != nil {
		return err
	}
	id, err := s.activeForEdit()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.controller.SetTitle(title)
	// Scheduled under the lock so a document push never sees the field idle.
	err = s.scheduler.Schedule(id, FieldTitle, title)
	s.mu.Unlock()
	return err
}

// EditContent records content input for the active note and debounces its save.
// Text ending in "=" after an arithmetic expression gets the result appended;
// the returned string is what the editor now holds.
func (s *Session) EditContent(text string) (string, error) {
	if err := s.lockStarted(); err != nil {
		return text, err
	}
	id, err := s.activeForEdit()
	if err != nil {
		s.mu.Unlock()
		return text, err
	}
	expanded, ok := calc.Expand(text)
	s.controller.SetContent(expanded)
	if ok {
		s.emit(core.NewEvent(core.EventEditor, id))
	}
	err = s.scheduler.Schedule(id, FieldContent, expanded)
	s.mu.Unlock()
	return expanded, err
}

// Append pastes text at the end of the active note and saves immediately.
func (s *Session) Append(text string) error {
	if err := s.lockStarted(); err != nil {
		return err
	}
	id, err := s.activeForEdit()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	content := s.controller.Editor().Content + text
	s.controller.SetContent(content)
	s.emit(core.NewEvent(core.EventEditor, id))
	s.mu.Unlock()

	if err := s.scheduler.SaveNow(id, FieldContent, content); err != nil {
		return s.fail(err)
	}
	return nil
}

// Clear empties the active note's content once confirmed through the gate.
func (s *Session) Clear() (Decision, error) {
	if err := s.lockStarted(); err != nil {
		return Awaiting, err
	}
	id, err := s.activeForEdit()
	if err != nil {
		s.mu.Unlock()
		return Awaiting, err
	}
	if s.gate.Request(TokenClear) == Awaiting {
		s.mu.Unlock()
		s.notify(core.NoticeInfo, "Click again to clear the note.")
		return Awaiting, nil
	}
	s.controller.SetContent("")
	s.emit(core.NewEvent(core.EventEditor, id))
	s.mu.Unlock()

	if err := s.scheduler.SaveNow(id, FieldContent, ""); err != nil {
		return Confirmed, s.fail(err)
	}
	return Confirmed, nil
}

// settle drops unsaved edits of notes about to be deleted and waits for writes
// already in flight. A merge write landing after the delete would recreate the
// document.
func (s *Session) settle(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		s.scheduler.Cancel(id)
	}
	for _, id := range ids {
		if err := s.scheduler.Wait(ctx, id); err != nil {
			return err
		}
		// Input typed while waiting is dropped too.
		s.scheduler.Cancel(id)
	}
	return nil
}

// Delete removes a note once confirmed through the gate. On failure the cache
// is left as is; the next snapshot is the truth.
func (s *Session) Delete(ctx context.Context, id string) (Decision, error) {
	if err := s.lockStarted(); err != nil {
		return Awaiting, err
	}
	if !s.cache.Has(id) {
		s.mu.Unlock()
		return Awaiting, core.ErrNotFound
	}
	if s.gate.Request(DeleteToken(id)) == Awaiting {
		s.mu.Unlock()
		s.notify(core.NoticeInfo, "Click again to delete the note.")
		return Awaiting, nil
	}
	s.mu.Unlock()
	if err := s.settle(ctx, id); err != nil {
		return Confirmed, s.fail(err)
	}

	if err := s.config.Repository.Delete(ctx, id); err != nil {
		return Confirmed, s.fail(err)
	}
	s.notify(core.NoticeSuccess, "Note deleted.")
	return Confirmed, nil
}

// BatchDelete removes several notes at once once confirmed through the gate.
func (s *Session) BatchDelete(ctx context.Context, ids []string) (Decision, error) {
	if len(ids) == 0 {
		return Awaiting, &core.ValidationError{Field: "ids", Message: "No notes selected."}
	}
	if err := s.lockStarted(); err != nil {
		return Awaiting, err
	}
	if s.gate.Request(BatchDeleteToken(ids)) == Awaiting {
		s.mu.Unlock()
		s.notify(core.NoticeInfo, fmt.Sprintf("Click again to delete %d notes.", len(ids)))
		return Awaiting, nil
	}
	s.mu.Unlock()
	if err := s.settle(ctx, ids...); err != nil {
		return Confirmed, s.fail(err)
	}

	if err := s.config.Repository.BatchDelete(ctx, ids); err != nil {
		return Confirmed, s.fail(err)
	}
	s.notify(core.NoticeSuccess, fmt.Sprintf("%d notes deleted.", len(ids)))
	return Confirmed, nil
}

// Flush writes pending edits now and waits for them.
func (s *Session) Flush(ctx context.Context) error {
	return s.scheduler.Flush(ctx)
}

// Close flushes pending edits, then releases every subscription and timer.
// It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	flushErr := s.scheduler.Flush(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.controller != nil {
		s.controller.Close()
	}
	if s.unsubNotes != nil {
		s.unsubNotes()
		s.unsubNotes = nil
	}
	s.gate.Cancel()
	s.scheduler.Close()
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("session closed")
	return flushErr
}

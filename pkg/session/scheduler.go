package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/synote/pkg/core"
)

// Field names an independently debounced editor field.
type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
)

// SaveState is the persistence state of one field (or of a note, aggregated).
type SaveState int

const (
	StateIdle SaveState = iota
	StateSaved
	StateSaving
	StateTyping
	StateError
)

func (s SaveState) String() string {
	switch s {
	case StateTyping:
		return "typing"
	case StateSaving:
		return "saving"
	case StateSaved:
		return "saved"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// FieldStatus is the state of one field and the error of its last failed write.
type FieldStatus struct {
	State SaveState
	Err   error
}

// WriteFunc persists one field value.
type WriteFunc func(ctx context.Context, noteID string, field Field, value string) error

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Delay        time.Duration
	WriteTimeout time.Duration
	Write        WriteFunc
	// OnState is called on every state change. It must not block or call back
	// into the Scheduler.
	OnState func(noteID string, field Field, status FieldStatus)
	Logger  *slog.Logger
}

type slotKey struct {
	noteID string
	field  Field
}

type slot struct {
	timer   *time.Timer
	seq     uint64
	value   string
	pending bool // a value is waiting for its write
	writing bool // a write for this slot is in flight
	dropped bool // cancelled while writing; removed once the write returns
	done    chan struct{} // closed when the in-flight write returns
	status  FieldStatus
}

// Scheduler is the Debounced Persistence Scheduler. Every (note, field) pair has
// its own timer; re-arming cancels the previous one. Writes for the same pair
// never overlap, so the last value typed is the last one written.
type Scheduler struct {
	config SchedulerConfig

	mu     sync.Mutex
	slots  map[slotKey]*slot
	writes int
	idle   chan struct{} // closed when writes drops to zero
	closed bool
}

// NewScheduler creates a scheduler; Write is required.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Delay <= 0 {
		config.Delay = 500 * time.Millisecond
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.OnState == nil {
		config.OnState = func(string, Field, FieldStatus) {}
	}
	return &Scheduler{config: config, slots: make(map[slotKey]*slot)}
}

func (s *Scheduler) slot(key slotKey) *slot {
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{}
		s.slots[key] = sl
	}
	return sl
}

// Schedule records value as the latest input for the field and (re)arms its timer.
func (s *Scheduler) Schedule(noteID string, field Field, value string) error {
	key := slotKey{noteID, field}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrClosed
	}
	sl := s.slot(key)
	if sl.timer != nil {
		sl.timer.Stop()
	}
	sl.seq++
	seq := sl.seq
	sl.value = value
	sl.pending = true
	sl.dropped = false
	sl.status = FieldStatus{State: StateTyping}
	sl.timer = time.AfterFunc(s.config.Delay, func() {
		_ = s.fire(key, seq)
	})
	s.mu.Unlock()

	s.config.OnState(noteID, field, FieldStatus{State: StateTyping})
	return nil
}

// SaveNow writes value immediately, replacing any pending value for the field.
func (s *Scheduler) SaveNow(noteID string, field Field, value string) error {
	key := slotKey{noteID, field}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrClosed
	}
	sl := s.slot(key)
	if sl.timer != nil {
		sl.timer.Stop()
		sl.timer = nil
	}
	sl.seq++
	seq := sl.seq
	sl.value = value
	sl.pending = true
	sl.dropped = false
	s.mu.Unlock()

	return s.fire(key, seq)
}

// fire writes the pending value of key if seq is still current. When a write for
// the slot is already in flight, the value is left pending and picked up by
// that write's loop once it returns.
func (s *Scheduler) fire(key slotKey, seq uint64) error {
	s.mu.Lock()
	sl, ok := s.slots[key]
	if !ok || sl.seq != seq || !sl.pending {
		s.mu.Unlock()
		return nil
	}
	if sl.writing {
		sl.timer = nil
		s.mu.Unlock()
		return nil
	}
	sl.writing = true
	sl.done = make(chan struct{})
	sl.timer = nil
	s.writes++
	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	s.mu.Unlock()

	var lastErr error
	for {
		s.mu.Lock()
		if !sl.pending {
			s.doneWriting(key, sl)
			s.mu.Unlock()
			return lastErr
		}
		value := sl.value
		sl.pending = false
		sl.status = FieldStatus{State: StateSaving}
		s.mu.Unlock()
		s.config.OnState(key.noteID, key.field, FieldStatus{State: StateSaving})

		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		err := s.config.Write(ctx, key.noteID, key.field, value)
		cancel()
		lastErr = err

		s.mu.Lock()
		status := FieldStatus{State: StateSaved}
		if err != nil {
			status = FieldStatus{State: StateError, Err: err}
			s.config.Logger.Warn("save failed", "note", key.noteID, "field", key.field, "error", err)
		}
		switch {
		case sl.pending && sl.timer != nil:
			// Re-armed while saving: the field is still being typed and the
			// timer will write the newer value.
			s.doneWriting(key, sl)
			s.mu.Unlock()
			return err
		case sl.pending:
			// The timer fired during the write; write the newer value now.
			s.mu.Unlock()
			continue
		}
		sl.status = status
		s.mu.Unlock()
		s.config.OnState(key.noteID, key.field, status)
	}
}

// doneWriting must be called with s.mu held.
func (s *Scheduler) doneWriting(key slotKey, sl *slot) {
	sl.writing = false
	close(sl.done)
	sl.done = nil
	if sl.dropped && !sl.pending {
		delete(s.slots, key)
	}
	s.writes--
	if s.writes == 0 && s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
}

// Pending reports whether a value for the field is waiting or being written.
func (s *Scheduler) Pending(noteID string, field Field) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[slotKey{noteID, field}]
	return ok && (sl.pending || sl.writing)
}

// Status returns the state of one field.
func (s *Scheduler) Status(noteID string, field Field) FieldStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[slotKey{noteID, field}]; ok {
		return sl.status
	}
	return FieldStatus{}
}

// NoteStatus aggregates the fields of a note: an error wins, then typing,
// then saving, then saved.
func (s *Scheduler) NoteStatus(noteID string) FieldStatus {
	title := s.Status(noteID, FieldTitle)
	content := s.Status(noteID, FieldContent)
	if content.State > title.State {
		return content
	}
	return title
}

// Cancel drops pending values of a note. Writes already in flight finish;
// use Wait to block on them.
func (s *Scheduler) Cancel(noteID string, fields ...Field) {
	if len(fields) == 0 {
		fields = []Field{FieldTitle, FieldContent}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fields {
		key := slotKey{noteID, f}
		sl, ok := s.slots[key]
		if !ok {
			continue
		}
		if sl.timer != nil {
			sl.timer.Stop()
			sl.timer = nil
		}
		sl.seq++
		sl.pending = false
		if sl.writing {
			sl.dropped = true
		} else {
			delete(s.slots, key)
		}
	}
}

// Wait blocks until no write for the given fields of a note (all fields when
// none are named) is in flight.
func (s *Scheduler) Wait(ctx context.Context, noteID string, fields ...Field) error {
	if len(fields) == 0 {
		fields = []Field{FieldTitle, FieldContent}
	}
	for {
		var done chan struct{}
		s.mu.Lock()
		for _, f := range fields {
			if sl, ok := s.slots[slotKey{noteID, f}]; ok && sl.writing {
				done = sl.done
				break
			}
		}
		s.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Flush writes every pending value now and waits for in-flight writes.
func (s *Scheduler) Flush(ctx context.Context) error {
	type due struct {
		key slotKey
		seq uint64
	}
	s.mu.Lock()
	var work []due
	for key, sl := range s.slots {
		if !sl.pending {
			continue
		}
		if sl.timer != nil {
			sl.timer.Stop()
			sl.timer = nil
		}
		work = append(work, due{key, sl.seq})
	}
	s.mu.Unlock()

	var firstErr error
	for _, d := range work {
		if err := s.fire(d.key, d.seq); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for {
		s.mu.Lock()
		idle := s.idle
		s.mu.Unlock()
		if idle == nil {
			return firstErr
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops every timer. Pending values are dropped; call Flush first to keep them.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, sl := range s.slots {
		if sl.timer != nil {
			sl.timer.Stop()
			sl.timer = nil
		}
		sl.pending = false
	}
}

package session

import (
	"github.com/aretw0/introspection"
)

// State exposes internal state for observability.
type State struct {
	UserID        string `json:"user_id"`
	Guest         bool   `json:"guest"`
	Started       bool   `json:"started"`
	Closed        bool   `json:"closed"`
	Notes         int    `json:"notes"`
	Snapshots     int    `json:"snapshots"`
	ActiveID      string `json:"active_id,omitempty"`
	SaveState     string `json:"save_state"`
	PendingToken  string `json:"pending_confirmation,omitempty"`
	DroppedEvents int64  `json:"dropped_events"`
}

// State implements introspection.Introspectable.
func (s *Session) State() any {
	s.mu.Lock()
	st := State{
		UserID:        s.config.User.ID,
		Guest:         s.config.User.Anonymous,
		Started:       s.started,
		Closed:        s.closed,
		Notes:         s.cache.Len(),
		Snapshots:     s.snapshots,
		DroppedEvents: s.dropped.Load(),
	}
	if s.controller != nil {
		st.ActiveID = s.controller.ActiveID()
	}
	s.mu.Unlock()

	st.SaveState = StateIdle.String()
	if st.ActiveID != "" {
		st.SaveState = s.scheduler.NoteStatus(st.ActiveID).State.String()
	}
	st.PendingToken, _ = s.gate.Pending()
	return st
}

// ComponentType implements introspection.Component.
func (s *Session) ComponentType() string {
	return "session"
}

var _ introspection.Introspectable = (*Session)(nil)
var _ introspection.Component = (*Session)(nil)

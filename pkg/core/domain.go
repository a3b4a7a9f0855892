// Package core holds the domain types and capability interfaces of synote.
package core

import (
	"fmt"
	"time"
)

// EventType represents the kind of change a session reports to presentation.
type EventType string

const (
	EventAuth      EventType = "AUTH"       // signed-in user changed
	EventNotes     EventType = "NOTES"      // collection snapshot replaced
	EventActive    EventType = "ACTIVE"     // a note became active
	EventNoNote    EventType = "NO_NOTE"    // no note is selected
	EventEditor    EventType = "EDITOR"     // editor fields were replaced
	EventSaveState EventType = "SAVE_STATE" // debounced save state changed
	EventNotice    EventType = "NOTICE"     // transient user-visible message
)

// NoticeLevel mirrors the toast styles of the presentation layer.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Event is a change hint. Presentation re-reads state from the session
// instead of trusting the payload.
type Event struct {
	Type      EventType
	NoteID    string
	Level     NoticeLevel
	Message   string
	Timestamp int64 // Unix timestamp
}

// String implements lifecycle.Event.
func (e Event) String() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s[%s] %s", e.Type, e.Level, e.Message)
	case e.NoteID != "":
		return fmt.Sprintf("%s %s", e.Type, e.NoteID)
	default:
		return string(e.Type)
	}
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, noteID string) Event {
	return Event{Type: t, NoteID: noteID, Timestamp: time.Now().Unix()}
}

// NewNotice builds a notice event.
func NewNotice(level NoticeLevel, msg string) Event {
	return Event{Type: EventNotice, Level: level, Message: msg, Timestamp: time.Now().Unix()}
}

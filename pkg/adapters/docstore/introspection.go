package docstore

import (
	"github.com/aretw0/introspection"
)

// DBState exposes internal state for observability.
type DBState struct {
	Backend       string `json:"backend"`
	Subscriptions int    `json:"subscriptions"`
	Writes        int    `json:"writes"`
	Closed        bool   `json:"closed"`
}

// State implements introspection.Introspectable.
func (db *DB) State() any {
	db.mu.Lock()
	defer db.mu.Unlock()
	return DBState{
		Backend:       db.engine.name(),
		Subscriptions: len(db.subs),
		Writes:        db.writes,
		Closed:        db.closed,
	}
}

// ComponentType implements introspection.Component.
func (db *DB) ComponentType() string {
	return "docstore"
}

var _ introspection.Introspectable = (*DB)(nil)
var _ introspection.Component = (*DB)(nil)

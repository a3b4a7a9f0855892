package local

import (
	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Namespace     string `json:"namespace"`
	SortField     string `json:"sort_field"`
	Collections   int    `json:"collection_subscriptions"`
	NoteFeeds     int    `json:"note_subscriptions"`
	WatcherActive bool   `json:"watcher_active"`
	Publishes     int    `json:"publishes"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RepositoryState{
		Namespace:     r.store.Namespace(),
		SortField:     string(r.config.SortField),
		Collections:   len(r.collections),
		NoteFeeds:     len(r.notes),
		WatcherActive: r.stopWatch != nil,
		Publishes:     r.publishes,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "guest-repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)

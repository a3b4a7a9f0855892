package core

import (
	"strings"
	"time"
)

// DefaultTitle is shown for notes whose stored title is empty.
const DefaultTitle = "Untitled Note"

// SortField names the timestamp a deployment orders its collection by.
// Exactly one field is canonical per deployment; ordering is always descending.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
)

// Valid reports whether f is one of the supported sort fields.
func (f SortField) Valid() bool {
	return f == SortCreatedAt || f == SortUpdatedAt
}

// Note is the central entity of the domain.
// Content holds the stored form: a codec payload when Compressed is set,
// plain text otherwise (legacy documents are never compressed).
type Note struct {
	ID         string    `json:"id" yaml:"id"`
	Title      string    `json:"title" yaml:"title"`
	Content    string    `json:"content" yaml:"content"`
	Compressed bool      `json:"isCompressed,omitempty" yaml:"isCompressed,omitempty"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// DisplayTitle returns the title to render, falling back to DefaultTitle.
func (n Note) DisplayTitle() string {
	if strings.TrimSpace(n.Title) == "" {
		return DefaultTitle
	}
	return n.Title
}

// SortKey returns the timestamp used to order n under the given field.
func (n Note) SortKey(field SortField) time.Time {
	if field == SortCreatedAt {
		return n.CreatedAt
	}
	return n.UpdatedAt
}

// Patch is a merge write: only the non-nil fields change.
type Patch struct {
	Title      *string
	Content    *string
	Compressed *bool
	CreatedAt  *time.Time
	UpdatedAt  *time.Time
}

func (p Patch) WithTitle(title string) Patch {
	p.Title = &title
	return p
}

// WithContent sets the stored content and its compression flag together,
// so a plain write always clears a previous compressed flag.
func (p Patch) WithContent(content string, compressed bool) Patch {
	p.Content = &content
	p.Compressed = &compressed
	return p
}

func (p Patch) WithCreatedAt(t time.Time) Patch {
	p.CreatedAt = &t
	return p
}

func (p Patch) WithUpdatedAt(t time.Time) Patch {
	p.UpdatedAt = &t
	return p
}

// Empty reports whether the patch names no fields.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Compressed == nil &&
		p.CreatedAt == nil && p.UpdatedAt == nil
}

// Apply returns a copy of n with the patch merged in.
func (p Patch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Compressed != nil {
		n.Compressed = *p.Compressed
	}
	if p.CreatedAt != nil {
		n.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		n.UpdatedAt = *p.UpdatedAt
	}
	return n
}

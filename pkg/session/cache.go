package session

import (
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/synote/pkg/codec"
	"github.com/aretw0/synote/pkg/core"
)

// Cache is the Note Collection Cache: the latest full snapshot of the
// collection, in repository order.
type Cache struct {
	codec core.Codec

	mu    sync.RWMutex
	notes []core.Note
}

// NewCache creates an empty cache. c decodes compressed content; it may be nil.
func NewCache(c core.Codec) *Cache {
	return &Cache{codec: c}
}

// Replace installs a new snapshot.
func (c *Cache) Replace(notes []core.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = slices.Clone(notes)
}

// All returns the snapshot in order.
func (c *Cache) All() []core.Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.notes)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.notes)
}

// Get looks a note up by id.
func (c *Cache) Get(id string) (core.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := slices.IndexFunc(c.notes, func(n core.Note) bool { return n.ID == id })
	if i < 0 {
		return core.Note{}, false
	}
	return c.notes[i], true
}

func (c *Cache) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Content returns the decoded content of n. Corrupt payloads read as empty.
func (c *Cache) Content(n core.Note) string {
	text, err := codec.Decode(c.codec, n)
	if err != nil {
		return ""
	}
	return text
}

// Search filters the snapshot by a case-insensitive substring of the title or
// the decoded content. An empty query returns everything.
func (c *Cache) Search(query string) []core.Note {
	all := c.All()
	if strings.TrimSpace(query) == "" {
		return all
	}
	query = strings.ToLower(query)
	out := make([]core.Note, 0, len(all))
	for _, n := range all {
		if strings.Contains(strings.ToLower(n.Title), query) ||
			strings.Contains(strings.ToLower(c.Content(n)), query) {
			out = append(out, n)
		}
	}
	return out
}

// Match filters the snapshot by a glob over display titles, case-insensitively
// ("shop*", "{todo,done} *").
func (c *Cache) Match(pattern string) ([]core.Note, error) {
	pattern = strings.ToLower(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, &core.ValidationError{Field: "pattern", Message: "invalid pattern: " + pattern}
	}
	all := c.All()
	out := make([]core.Note, 0, len(all))
	for _, n := range all {
		ok, err := doublestar.Match(pattern, strings.ToLower(n.DisplayTitle()))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

package session

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/aretw0/synote/pkg/codec"
	"github.com/aretw0/synote/pkg/core"
)

// Editor is what the presentation layer displays for the active note.
// Cursor is a rune offset into Content.
type Editor struct {
	NoteID  string `json:"noteId"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Cursor  int    `json:"cursor"`
}

// ControllerConfig wires a Controller to its collaborators.
type ControllerConfig struct {
	Repository core.NoteRepository
	Codec      core.Codec
	// Pending reports fields with unsaved local input; remote values never
	// overwrite them.
	Pending func(noteID string, field Field) bool
	Emit    func(core.Event)
	Logger  *slog.Logger
}

// Controller is the Active Note Controller. It holds at most one document
// subscription lease and always releases it before acquiring the next.
//
// Every method must be called with the lock passed to NewController held; the
// controller takes that same lock when a document callback arrives.
type Controller struct {
	lock   sync.Locker
	config ControllerConfig
	reader core.NoteReader

	ctx      context.Context
	activeID string
	want     string // created note to select once a snapshot contains it
	lease    core.Unsubscribe
	gen      uint64
	editor   Editor
	loaded   bool
}

// NewController creates a controller. Repositories that can read synchronously
// (core.NoteReader) are read directly on select instead of subscribed to.
func NewController(ctx context.Context, lock sync.Locker, config ControllerConfig) *Controller {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Pending == nil {
		config.Pending = func(string, Field) bool { return false }
	}
	if config.Emit == nil {
		config.Emit = func(core.Event) {}
	}
	reader, _ := config.Repository.(core.NoteReader)
	return &Controller{ctx: ctx, lock: lock, config: config, reader: reader}
}

// ActiveID returns the active note id, or "".
func (c *Controller) ActiveID() string { return c.activeID }

// Editor returns the editor state.
func (c *Controller) Editor() Editor { return c.editor }

// Loaded reports whether the active note's content has been delivered.
func (c *Controller) Loaded() bool { return c.loaded }

func (c *Controller) release() {
	if c.lease != nil {
		c.lease()
		c.lease = nil
	}
	c.gen++
}

// Select makes id the active note.
func (c *Controller) Select(id string) error {
	c.release()
	c.activeID = id
	c.editor = Editor{NoteID: id}
	c.loaded = false
	c.config.Emit(core.NewEvent(core.EventActive, id))

	if c.reader != nil {
		n, ok, err := c.reader.Get(c.ctx, id)
		if err != nil {
			c.Deselect()
			return err
		}
		c.onDocument(n, ok)
		return nil
	}

	gen := c.gen
	unsub, err := c.config.Repository.SubscribeNote(c.ctx, id, func(n core.Note, exists bool) {
		c.lock.Lock()
		defer c.lock.Unlock()
		if c.gen != gen {
			return
		}
		c.onDocument(n, exists)
	})
	if err != nil {
		c.Deselect()
		return err
	}
	c.lease = unsub
	return nil
}

// Deselect releases the lease and clears the active note.
func (c *Controller) Deselect() {
	wasActive := c.activeID != ""
	c.release()
	c.activeID = ""
	c.editor = Editor{}
	c.loaded = false
	if wasActive {
		c.config.Emit(core.NewEvent(core.EventNoNote, ""))
	}
}

// Expect arranges for id to be selected as soon as a snapshot contains it.
func (c *Controller) Expect(id string) { c.want = id }

// onDocument handles a delivery for the active note.
// A vanished document means "no note selected", not an error.
func (c *Controller) onDocument(n core.Note, exists bool) {
	if !exists {
		c.config.Logger.Debug("active note disappeared", "id", c.activeID)
		c.Deselect()
		return
	}
	c.reconcile(n)
}

// reconcile merges a stored note into the editor. Fields with unsaved local
// input are kept; other fields are replaced only when they differ, so the
// user's own writes echoing back leave the cursor alone.
func (c *Controller) reconcile(n core.Note) {
	if n.ID != c.activeID {
		return
	}
	content, err := codec.Decode(c.config.Codec, n)
	if err != nil {
		c.config.Logger.Debug("undecodable content", "id", n.ID, "error", err)
		content = ""
	}

	changed := !c.loaded
	c.loaded = true
	if !c.config.Pending(n.ID, FieldTitle) && n.Title != c.editor.Title {
		c.editor.Title = n.Title
		changed = true
	}
	if !c.config.Pending(n.ID, FieldContent) && content != c.editor.Content {
		c.editor.Content = content
		c.editor.Cursor = 0
		changed = true
	}
	if changed {
		c.config.Emit(core.NewEvent(core.EventEditor, n.ID))
	}
}

// AutoSelect runs after every collection snapshot. The cache already holds notes.
func (c *Controller) AutoSelect(notes []core.Note) error {
	has := func(id string) bool {
		return slices.ContainsFunc(notes, func(n core.Note) bool { return n.ID == id })
	}

	if c.want != "" && has(c.want) {
		id := c.want
		c.want = ""
		return c.Select(id)
	}

	if c.activeID != "" {
		if !has(c.activeID) {
			c.Deselect()
			return nil
		}
		if c.reader != nil {
			// No document feed for synchronous stores: the snapshot is the feed.
			i := slices.IndexFunc(notes, func(n core.Note) bool { return n.ID == c.activeID })
			c.reconcile(notes[i])
		}
		return nil
	}

	if c.want != "" {
		return nil
	}
	if len(notes) > 0 {
		return c.Select(notes[0].ID)
	}
	c.config.Emit(core.NewEvent(core.EventNoNote, ""))
	return nil
}

// SetTitle records local title input.
func (c *Controller) SetTitle(title string) {
	c.editor.Title = title
}

// SetContent records local content input and moves the cursor to its end.
func (c *Controller) SetContent(content string) {
	c.editor.Content = content
	c.editor.Cursor = utf8.RuneCountInString(content)
}

// Close releases the lease for good.
func (c *Controller) Close() {
	c.release()
	c.activeID = ""
	c.want = ""
	c.editor = Editor{}
	c.loaded = false
}

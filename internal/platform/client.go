package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/synote/pkg/adapters/local"
	"github.com/aretw0/synote/pkg/adapters/remote"
	"github.com/aretw0/synote/pkg/core"
	"github.com/aretw0/synote/pkg/session"
)

// closeTimeout bounds the final flush of a session replaced by an auth change.
const closeTimeout = 5 * time.Second

// ErrNoStore is reported when a non-anonymous user signs in and no document
// store was configured.
var ErrNoStore = errors.New("cloud storage is not configured")

// Client follows the identity provider: every sign-in opens a session on the
// repository that fits the user, every sign-out closes it.
type Client struct {
	opts   *options
	logger *slog.Logger
	events chan core.Event

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	session   *session.Session
	changed   chan struct{}
	unsubAuth core.Unsubscribe
	signIns   int
	closed    bool
}

func newClient(ctx context.Context, o *options) *Client {
	c := &Client{
		opts:    o,
		logger:  o.logger,
		events:  make(chan core.Event, o.eventBuffer),
		changed: make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	return c
}

// start subscribes to the provider. The provider calls back right away with
// the current user, so a restored session is open when start returns.
func (c *Client) start() {
	unsub := c.opts.auth.OnAuthChange(c.onAuth)
	c.mu.Lock()
	c.unsubAuth = unsub
	c.mu.Unlock()
}

func (c *Client) emit(e core.Event) {
	select {
	case c.events <- e:
	default:
		c.logger.Warn("event dropped, buffer full", "event", e.String())
	}
}

func (c *Client) onAuth(user *core.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if c.session != nil && user != nil && c.session.User() == *user {
		return
	}
	c.closeSession()

	if user == nil {
		c.emit(core.NewEvent(core.EventAuth, ""))
		c.signal()
		return
	}

	s, err := c.openSession(*user)
	if err != nil {
		c.logger.Error("failed to open session", "user", user.ID, "error", err)
		c.emit(core.NewNotice(core.NoticeError, err.Error()))
		c.signal()
		return
	}
	c.session = s
	c.signIns++
	c.signal()
}

// signal wakes everyone waiting in Ready. Caller holds c.mu.
func (c *Client) signal() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// closeSession flushes and drops the current session. Caller holds c.mu.
func (c *Client) closeSession() {
	if c.session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := c.session.Close(ctx); err != nil {
		c.logger.Warn("pending edits lost on session close", "user", c.session.User().ID, "error", err)
	}
	c.session = nil
}

func (c *Client) repositoryFor(user core.User) (core.NoteRepository, error) {
	if user.Anonymous {
		storage := c.opts.guestStorage
		if storage == nil {
			storage = local.NewMemoryStorage()
			c.opts.guestStorage = storage
		}
		store := local.NewStore(storage, c.opts.guestNamespace, c.logger)
		return local.NewRepository(store, local.Config{
			SortField: c.opts.sortField,
			Logger:    c.logger,
		}), nil
	}
	if c.opts.store == nil {
		return nil, ErrNoStore
	}
	return remote.NewRepository(c.opts.store, remote.Config{
		UserID:    user.ID,
		SortField: c.opts.sortField,
		Logger:    c.logger,
	})
}

func (c *Client) openSession(user core.User) (*session.Session, error) {
	repo, err := c.repositoryFor(user)
	if err != nil {
		return nil, err
	}
	var cdc core.Codec
	if c.opts.compress {
		cdc = c.opts.codec
	}
	s, err := session.New(session.Config{
		User:          user,
		Repository:    repo,
		Codec:         cdc,
		DebounceDelay: c.opts.debounce,
		ConfirmWindow: c.opts.confirmWindow,
		Logger:        c.logger,
		Events:        c.events,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Start(c.ctx); err != nil {
		_ = s.Close(context.Background())
		return nil, err
	}
	return s, nil
}

// Events delivers session and auth hints. The channel is shared by every
// session the client opens and is never closed.
func (c *Client) Events() <-chan core.Event { return c.events }

// Session returns the open session, or nil while signed out.
func (c *Client) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Ready waits until a session is open and has applied its first snapshot.
func (c *Client) Ready(ctx context.Context) (*session.Session, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, core.ErrClosed
		}
		s, changed := c.session, c.changed
		c.mu.Unlock()

		if s != nil {
			select {
			case <-s.Ready():
				return s, nil
			case <-changed:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Auth returns the identity provider the client follows.
func (c *Client) Auth() core.Authenticator { return c.opts.auth }

// report turns an auth failure into a notice.
func (c *Client) report(err error) error {
	if err != nil {
		c.emit(core.NewNotice(core.NoticeError, err.Error()))
	}
	return err
}

// SignUp registers and signs in.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	return c.report(c.opts.auth.SignUp(ctx, email, password))
}

// SignIn signs in with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	return c.report(c.opts.auth.SignIn(ctx, email, password))
}

// SignInAnonymously starts a guest session.
func (c *Client) SignInAnonymously(ctx context.Context) error {
	return c.report(c.opts.auth.SignInAnonymously(ctx))
}

// SignInWithOAuthPopup starts the popup sign-in flow.
func (c *Client) SignInWithOAuthPopup(ctx context.Context) error {
	return c.report(c.opts.auth.SignInWithOAuthPopup(ctx))
}

// SendPasswordReset mails a reset link.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	if err := c.opts.auth.SendPasswordReset(ctx, email); err != nil {
		return c.report(err)
	}
	c.emit(core.NewNotice(core.NoticeSuccess, "Password reset email sent."))
	return nil
}

// SignOut asks for confirmation first; the second call within the window
// signs out.
func (c *Client) SignOut(ctx context.Context) (session.Decision, error) {
	s := c.Session()
	if s == nil {
		return session.Confirmed, nil
	}
	if s.Gate().Request(session.TokenSignOut) == session.Awaiting {
		c.emit(core.NewNotice(core.NoticeInfo, "Click again to sign out."))
		return session.Awaiting, nil
	}
	if err := c.opts.auth.SignOut(ctx); err != nil {
		return session.Confirmed, c.report(err)
	}
	return session.Confirmed, nil
}

// Close closes the open session and stops following the provider.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	unsub := c.unsubAuth
	c.unsubAuth = nil
	c.closeSession()
	c.signal()
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	c.cancel()
	return nil
}

// ClientState exposes internal state for observability.
type ClientState struct {
	SignedIn bool           `json:"signed_in"`
	SignIns  int            `json:"sign_ins"`
	Closed   bool           `json:"closed"`
	Pending  int            `json:"pending_events"`
	Session  *session.State `json:"session,omitempty"`
}

// State implements introspection.Introspectable.
func (c *Client) State() any {
	c.mu.Lock()
	st := ClientState{
		SignedIn: c.session != nil,
		SignIns:  c.signIns,
		Closed:   c.closed,
		Pending:  len(c.events),
	}
	s := c.session
	c.mu.Unlock()

	if s != nil {
		if ss, ok := s.State().(session.State); ok {
			st.Session = &ss
		}
	}
	return st
}

// ComponentType implements introspection.Component.
func (c *Client) ComponentType() string {
	return "client"
}

var _ introspection.Introspectable = (*Client)(nil)
var _ introspection.Component = (*Client)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

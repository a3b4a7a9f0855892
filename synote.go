package synote

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/synote/internal/platform"
	"github.com/aretw0/synote/pkg/adapters/docstore"
	"github.com/aretw0/synote/pkg/adapters/local"
	"github.com/aretw0/synote/pkg/config"
	"github.com/aretw0/synote/pkg/core"
	"github.com/aretw0/synote/pkg/session"
)

// --- Types ---

// Client follows an identity provider and owns the session of the signed-in user.
type Client = platform.Client

// ClientState is the introspection snapshot of a Client.
type ClientState = platform.ClientState

// Session is the per-user synchronization context.
type Session = session.Session

// Note is a user document.
type Note = core.Note

// Event is a change hint delivered on Client.Events.
type Event = core.Event

// Decision is the outcome of a gated destructive action.
type Decision = session.Decision

const (
	Awaiting  = session.Awaiting
	Confirmed = session.Confirmed
)

// ErrNoStore is reported when a non-anonymous user signs in without a store.
var ErrNoStore = platform.ErrNoStore

// --- Configuration ---

// Option defines a functional option for configuring a Client.
type Option = platform.Option

// WithConfig applies the tunables of a loaded configuration file.
func WithConfig(cfg config.Config) Option {
	return platform.WithConfig(cfg)
}

// WithLogger sets the logger for the client and its sessions.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAuthenticator sets the identity provider.
func WithAuthenticator(auth core.Authenticator) Option {
	return platform.WithAuthenticator(auth)
}

// WithStore sets the document store of signed-in users.
func WithStore(store docstore.Store) Option {
	return platform.WithStore(store)
}

// WithGuestStorage sets the device-local storage of anonymous users.
func WithGuestStorage(s local.Storage) Option {
	return platform.WithGuestStorage(s)
}

// WithGuestNamespace sets the storage key of the guest note list.
func WithGuestNamespace(ns string) Option {
	return platform.WithGuestNamespace(ns)
}

// WithCodec replaces the content codec.
func WithCodec(c core.Codec) Option {
	return platform.WithCodec(c)
}

// WithCompression enables or disables compression of saved content.
func WithCompression(enabled bool) Option {
	return platform.WithCompression(enabled)
}

// WithSortField selects the canonical ordering field.
func WithSortField(f core.SortField) Option {
	return platform.WithSortField(f)
}

// WithDebounce sets the quiet period before an edit is saved.
func WithDebounce(d time.Duration) Option {
	return platform.WithDebounce(d)
}

// WithConfirmWindow sets how long a destructive action waits for confirmation.
func WithConfirmWindow(d time.Duration) Option {
	return platform.WithConfirmWindow(d)
}

// WithEventBuffer sets the size of the event channel.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// --- Factory ---

// New creates a Client subscribed to the configured authenticator.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	return platform.New(ctx, opts...)
}

// FindDataDir looks upwards from startDir for a .synote directory.
func FindDataDir(startDir string) (string, error) {
	return platform.FindDataDir(startDir)
}

package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/synote/pkg/adapters/docstore"
	"github.com/aretw0/synote/pkg/adapters/local"
	"github.com/aretw0/synote/pkg/config"
	"github.com/aretw0/synote/pkg/core"
)

// options holds the internal configuration for a synote Client.
type options struct {
	logger         *slog.Logger
	auth           core.Authenticator
	store          docstore.Store
	guestStorage   local.Storage
	guestNamespace string
	codec          core.Codec
	compress       bool
	sortField      core.SortField
	debounce       time.Duration
	confirmWindow  time.Duration
	eventBuffer    int
}

// Option defines a functional option for configuring a Client.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		guestNamespace: local.DefaultNamespace,
		compress:       true,
		sortField:      core.SortUpdatedAt,
		debounce:       500 * time.Millisecond,
		confirmWindow:  5 * time.Second,
		eventBuffer:    100,
	}
}

// WithConfig applies every tunable of a loaded configuration.
// Backends (authenticator, store, guest storage) are still passed separately.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.guestNamespace = cfg.GuestNamespace
		o.compress = cfg.Compress
		o.sortField = cfg.SortField
		o.debounce = cfg.DebounceDelay
		o.confirmWindow = cfg.ConfirmWindow
		o.eventBuffer = cfg.EventBuffer
	}
}

// WithLogger sets the logger for the client and its sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAuthenticator sets the identity provider. Required.
func WithAuthenticator(auth core.Authenticator) Option {
	return func(o *options) {
		o.auth = auth
	}
}

// WithStore sets the document store used by signed-in (non-anonymous) users.
// Required unless every user is anonymous.
func WithStore(store docstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithGuestStorage sets the local storage of anonymous users.
// Defaults to in-memory storage, which is lost on exit.
func WithGuestStorage(s local.Storage) Option {
	return func(o *options) {
		o.guestStorage = s
	}
}

// WithGuestNamespace sets the storage key of the guest note list.
func WithGuestNamespace(ns string) Option {
	return func(o *options) {
		o.guestNamespace = ns
	}
}

// WithCodec replaces the content codec (zstd by default).
func WithCodec(c core.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithCompression enables or disables compression of saved content.
// Compressed notes are still read when disabled.
func WithCompression(enabled bool) Option {
	return func(o *options) {
		o.compress = enabled
	}
}

// WithSortField selects the canonical ordering field.
func WithSortField(f core.SortField) Option {
	return func(o *options) {
		o.sortField = f
	}
}

// WithDebounce sets the quiet period before an edit is saved.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithConfirmWindow sets how long a destructive action waits for confirmation.
func WithConfirmWindow(d time.Duration) Option {
	return func(o *options) {
		o.confirmWindow = d
	}
}

// WithEventBuffer sets the size of the event channel.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}

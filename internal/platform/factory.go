package platform

import (
	"context"
	"errors"

	"github.com/aretw0/synote/pkg/codec"
)

// New builds a Client and subscribes it to the authenticator.
//
//	client, err := synote.New(ctx, synote.WithAuthenticator(provider), synote.WithStore(db))
//
// If the authenticator already has a user (a restored token), the session is
// opened before New returns.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.auth == nil {
		return nil, errors.New("an authenticator is required")
	}
	if o.logger == nil {
		o.logger = discardLogger()
	}
	if o.codec == nil {
		o.codec = codec.NewZstd()
	}
	if o.eventBuffer <= 0 {
		o.eventBuffer = 100
	}

	c := newClient(ctx, o)
	c.start()
	return c, nil
}

// Package synote is the composition root of the synote note client.
//
// It connects the session core (collection cache, active note, debounced
// saves and confirmation gate) with an identity provider and the storage
// adapters, following the Hexagonal Architecture of the pkg/core ports.
//
// Philosophy:
//
// A note is saved while you type. Edits are debounced per field and written
// back to whichever repository belongs to the signed-in user: a device-local
// store for guests, a live document store for accounts. Every other client
// watching the same collection sees the change pushed to it.
//
// Features:
//
//   - **Live Collections**: Snapshots replace the whole list, newest first.
//   - **Debounced Saves**: 500ms per field, with Typing/Saving/Saved/Error states.
//   - **Confirmed Deletes**: Destructive actions need a second request within 5s.
//   - **Guest Mode**: Anonymous users keep notes on the device only.
//   - **Compressed Content**: Bodies are stored as zstd frames; plain legacy notes still read.
//   - **Inline Math**: "= 2+3" at the end of a line expands to the result.
//
// Usage:
//
//	provider, _ := identity.NewProvider(identity.Config{Secret: secret})
//	client, err := synote.New(ctx,
//		synote.WithAuthenticator(provider),
//		synote.WithStore(docstore.NewMemory()),
//		synote.WithLogger(logger),
//	)
//
//	_ = client.SignInAnonymously(ctx)
//	s, _ := client.Ready(ctx)
//	id, _ := s.NewNote(ctx)
package synote

// Package feed delivers snapshot values to subscribers on their own goroutine.
//
// A Mailbox holds at most one undelivered value. Putting a new value replaces the
// pending one, so a slow consumer always sees the most recent snapshot and never a
// backlog of stale ones. Values are handed over in the order they were put.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/lifecycle"
)

// Mailbox is a latest-wins, single-consumer delivery slot.
type Mailbox[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool
	stopped bool

	wake   chan struct{}
	cancel context.CancelFunc
}

// Start creates a Mailbox and spawns its delivery loop.
// onPanic may be nil; it receives errors raised by fn.
func Start[T any](ctx context.Context, fn func(T), onPanic func(error)) *Mailbox[T] {
	runCtx, cancel := context.WithCancel(ctx)
	m := &Mailbox[T]{
		wake:   make(chan struct{}, 1),
		cancel: cancel,
	}

	lifecycle.Go(runCtx, func(ctx context.Context) error {
		return m.run(ctx, fn)
	}, lifecycle.WithErrorHandler(func(err error) {
		if onPanic != nil {
			onPanic(fmt.Errorf("feed delivery: %w", err))
		}
	}))

	return m
}

// Put replaces any undelivered value with v.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.value = v
	m.pending = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Stop ends delivery. It does not wait for a callback already running,
// but no new callback starts after Stop returns.
func (m *Mailbox[T]) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.pending = false
	var zero T
	m.value = zero
	m.mu.Unlock()
	m.cancel()
}

// Stopped reports whether Stop was called or the parent context ended.
func (m *Mailbox[T]) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Mailbox[T]) run(ctx context.Context, fn func(T)) error {
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.stopped = true
			m.mu.Unlock()
			return nil
		case <-m.wake:
		}

		m.mu.Lock()
		if m.stopped || !m.pending {
			m.mu.Unlock()
			continue
		}
		v := m.value
		var zero T
		m.value = zero
		m.pending = false
		m.mu.Unlock()

		fn(v)
	}
}

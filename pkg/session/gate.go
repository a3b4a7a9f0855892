package session

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Decision is the outcome of a gate request.
type Decision int

const (
	// Awaiting means the action is armed; the caller must not act yet.
	Awaiting Decision = iota
	// Confirmed means the same action was requested twice within the window.
	Confirmed
)

func (d Decision) String() string {
	if d == Confirmed {
		return "confirmed"
	}
	return "awaiting"
}

// Gate tokens of the destructive actions.
const TokenClear = "clear"
const TokenSignOut = "signout"

// DeleteToken names the confirmation of a single delete.
func DeleteToken(id string) string { return "delete-" + id }

// BatchDeleteToken is independent of the order ids were selected in.
func BatchDeleteToken(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return "batch-delete:" + strings.Join(sorted, ",")
}

// Gate is the two-step confirmation gate: a token must be requested twice within
// the window. At most one token is pending; a different request replaces it.
type Gate struct {
	window   time.Duration
	onChange func(token string, pending bool)

	mu      sync.Mutex
	pending string
	timer   *time.Timer
	gen     uint64
}

// NewGate creates a gate. onChange may be nil; it is called without locks held.
func NewGate(window time.Duration, onChange func(token string, pending bool)) *Gate {
	if window <= 0 {
		window = 5 * time.Second
	}
	if onChange == nil {
		onChange = func(string, bool) {}
	}
	return &Gate{window: window, onChange: onChange}
}

// Request arms token, or confirms it if it is already pending.
func (g *Gate) Request(token string) Decision {
	g.mu.Lock()
	if g.pending == token && token != "" {
		g.clear()
		g.mu.Unlock()
		g.onChange(token, false)
		return Confirmed
	}

	g.clear()
	g.pending = token
	gen := g.gen
	g.timer = time.AfterFunc(g.window, func() { g.expire(gen) })
	g.mu.Unlock()

	g.onChange(token, true)
	return Awaiting
}

// clear must be called with g.mu held.
func (g *Gate) clear() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.pending = ""
	g.gen++
}

func (g *Gate) expire(gen uint64) {
	g.mu.Lock()
	if g.gen != gen {
		g.mu.Unlock()
		return
	}
	token := g.pending
	g.clear()
	g.mu.Unlock()
	g.onChange(token, false)
}

// Pending returns the armed token, if any.
func (g *Gate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.pending != ""
}

// Cancel disarms any pending token.
func (g *Gate) Cancel() {
	g.mu.Lock()
	token := g.pending
	g.clear()
	g.mu.Unlock()
	if token != "" {
		g.onChange(token, false)
	}
}

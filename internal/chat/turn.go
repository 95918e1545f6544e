package chat

import (
	"context"
	"sync"
)

// Turn is the single in-flight slot of one conversation. Beginning a new
// turn cancels the one still running, so at most one generation is live.
type Turn struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Begin cancels any running turn and returns the context for the next one.
// The returned release func must be called when the turn is over; it frees
// the slot unless a newer turn has already taken it.
func (t *Turn) Begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.seq++
	id := t.seq
	t.cancel = cancel
	t.mu.Unlock()

	release := func() {
		t.mu.Lock()
		if t.seq == id {
			t.cancel = nil
		}
		t.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Cancel stops the running turn, if any, and reports whether one was running.
// Cancelling after completion is a no-op.
func (t *Turn) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return false
	}
	t.cancel()
	t.cancel = nil
	return true
}

// Active reports whether a turn is in flight.
func (t *Turn) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

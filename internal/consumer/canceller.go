package consumer

import (
	"context"
	"sync"
)

// Canceller lets a caller stop the active session. Abort is idempotent and
// safe to call after the session has ended.
type Canceller struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	aborted bool
}

// NewCanceller derives a cancellable context from parent.
func NewCanceller(parent context.Context) (*Canceller, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Canceller{cancel: cancel}, ctx
}

// Abort cancels the session context and marks it as stopped by the caller.
func (c *Canceller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		return
	}
	c.aborted = true
	c.cancel()
}

// Aborted reports whether Abort was called.
func (c *Canceller) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// release frees the context without marking the session aborted.
func (c *Canceller) release() {
	c.cancel()
}

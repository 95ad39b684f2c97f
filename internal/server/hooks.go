package server

import (
	"context"
	"sync"
)

// AuthEvent describes a completed authentication attempt. Hooks run
// for every attempt, successful or not, and can veto connection setup
// by returning an error.
type AuthEvent struct {
	// Principal is the name the client authenticated (or tried to
	// authenticate) as.
	Principal string

	// Authenticated is true when the host's own authentication
	// decision was positive.
	Authenticated bool

	// RemoteAddr is the client's address, for diagnostics.
	RemoteAddr string
}

// AuthHook is called after each authentication attempt. Returning a
// non-nil error aborts the connection attempt; the error is reported
// to the client and the connection is closed.
type AuthHook func(ctx context.Context, ev AuthEvent) error

// HookChain is an ordered list of AuthHooks owned by the composing
// application. Hooks run exactly once per event, in registration
// order; the first error stops the chain.
type HookChain struct {
	mu    sync.RWMutex
	hooks []AuthHook
}

// Register appends a hook to the chain.
func (c *HookChain) Register(h AuthHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// Run invokes every registered hook in order. It returns the first
// error and does not run later hooks after a failure.
func (c *HookChain) Run(ctx context.Context, ev AuthEvent) error {
	c.mu.RLock()
	hooks := c.hooks
	c.mu.RUnlock()

	for _, h := range hooks {
		if err := h(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

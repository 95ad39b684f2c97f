// Package tracker maintains per-principal live connection counts. The
// admission checker only queries counts; the server acquires a slot
// after a connection is admitted and releases it when the connection
// ends, so a principal's count never includes the connection currently
// being admitted.
package tracker

import (
	"context"
	"sync"

	"github.com/infodancer/connlimitd/internal/connlimit"
)

// Tracker records and reports live connections per principal.
type Tracker interface {
	connlimit.LiveCounter

	// Acquire records one live connection for the principal.
	Acquire(ctx context.Context, id connlimit.PrincipalID) error

	// Release removes one live connection for the principal.
	Release(ctx context.Context, id connlimit.PrincipalID) error
}

// Memory is an in-process Tracker. Counts are local to this server
// instance, which matches the usual deployment of one limit directory
// per instance.
type Memory struct {
	mu   sync.Mutex
	live map[connlimit.PrincipalID]int64
}

// NewMemory creates an empty in-memory tracker.
func NewMemory() *Memory {
	return &Memory{live: make(map[connlimit.PrincipalID]int64)}
}

// Acquire records one live connection for the principal.
func (m *Memory) Acquire(ctx context.Context, id connlimit.PrincipalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[id]++
	return nil
}

// Release removes one live connection for the principal. Releasing a
// principal with no live connections is a no-op.
func (m *Memory) Release(ctx context.Context, id connlimit.PrincipalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.live[id]
	if !ok {
		return nil
	}
	if n <= 1 {
		delete(m.live, id)
		return nil
	}
	m.live[id] = n - 1
	return nil
}

// Live returns the number of live connections for the principal.
func (m *Memory) Live(ctx context.Context, id connlimit.PrincipalID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[id], nil
}

// Package metrics provides interfaces and implementations for
// collecting connlimitd metrics. This package defines the Collector
// interface for recording metrics and the Server interface for
// exposing them.
package metrics

import "context"

// Collector defines the interface for recording connlimitd metrics.
type Collector interface {
	// Connection metrics
	ConnectionOpened()
	ConnectionClosed()

	// Authentication metrics
	AuthAttempt(success bool)

	// Admission metrics. outcome is the admission-check outcome label
	// (e.g. "under_limit", "over_quota", "feature_disabled").
	AdmissionCheck(outcome string)
	ConnectionRejected(principal string)

	// Command metrics
	CommandProcessed(command string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}

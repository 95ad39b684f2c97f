package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// ConnectionOpened is a no-op.
func (n *NoopCollector) ConnectionOpened() {}

// ConnectionClosed is a no-op.
func (n *NoopCollector) ConnectionClosed() {}

// AuthAttempt is a no-op.
func (n *NoopCollector) AuthAttempt(success bool) {}

// AdmissionCheck is a no-op.
func (n *NoopCollector) AdmissionCheck(outcome string) {}

// ConnectionRejected is a no-op.
func (n *NoopCollector) ConnectionRejected(principal string) {}

// CommandProcessed is a no-op.
func (n *NoopCollector) CommandProcessed(command string) {}

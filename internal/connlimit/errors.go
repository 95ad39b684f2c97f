package connlimit

import (
	"errors"
	"fmt"
)

// ErrTooManyConnections matches any QuotaError via errors.Is, so
// callers can distinguish a quota rejection from other setup failures
// without inspecting the concrete type.
var ErrTooManyConnections = errors.New("too many connections")

// QuotaError reports a rejected admission. It is terminal for the
// connection attempt; the composing application decides how to close
// the connection and what to tell the client.
type QuotaError struct {
	Principal string
	Limit     int64
	Live      int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("too many connections for principal %q (limit %d, live %d)", e.Principal, e.Limit, e.Live)
}

// Is reports true for ErrTooManyConnections.
func (e *QuotaError) Is(target error) bool {
	return target == ErrTooManyConnections
}

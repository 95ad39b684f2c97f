package server

import "errors"

var (
	// ErrServerBusy is returned when the whole-server connection cap is reached.
	ErrServerBusy = errors.New("server connection limit reached")
)

package protocol

import "errors"

// ErrInvalidCommand is returned when a command line cannot be parsed.
var ErrInvalidCommand = errors.New("invalid command")

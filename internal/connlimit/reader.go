package connlimit

import (
	"errors"
	"io"
	"os"
	"syscall"
)

// limitBufSize bounds how much of a limit file is read. Anything that
// does not end within this many bytes is not a limit, no matter what
// its prefix looks like.
const limitBufSize = 64

// readStatus is the tagged result of reading a limit file. An explicit
// status per call replaces errno-style ambient state, so nothing needs
// saving or restoring around the read.
type readStatus int

const (
	readOK readStatus = iota
	readOpenFailed
	readFailed
	readTooLarge
)

// limitFile is the slice of *os.File the reader needs. Tests inject
// implementations that fail at chosen points and count Close calls.
type limitFile interface {
	io.Reader
	io.Closer
}

func openLimitFile(path string) (limitFile, error) {
	return os.Open(path)
}

// readLimit opens path and reads its full content into a fixed-size
// buffer. Transient interruptions (EINTR, EAGAIN) are retried without
// counting as progress or as errors. The file is closed on every
// return path.
func (c *Checker) readLimit(path string) ([]byte, readStatus) {
	f, err := c.open(path)
	if err != nil {
		return nil, readOpenFailed
	}
	defer f.Close()

	buf := make([]byte, 0, limitBufSize)
	for {
		if len(buf) == cap(buf) {
			// Buffer full and no end of file seen yet. The content
			// is unterminated within the bound; a truncated prefix
			// must not be parsed as a limit.
			return nil, readTooLarge
		}

		n, err := f.Read(buf[len(buf):cap(buf)])
		if n > 0 {
			buf = buf[:len(buf)+n]
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return buf, readOK
		}
		if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN) {
			// Try again. Progress is bounded by the buffer size, not
			// by a retry count.
			continue
		}
		return nil, readFailed
	}
}

package server

import (
	"bufio"
	"log/slog"
	"net"
	"sync/atomic"
	"time"
)

// Connection wraps an accepted network connection with buffered I/O,
// per-connection logging, and deadline management.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	logger *slog.Logger

	commandTimeout time.Duration
	closed         atomic.Bool
}

// NewConnection creates a Connection around conn. connectionTimeout
// bounds the whole session; commandTimeout bounds each individual
// command read via SetCommandTimeout.
func NewConnection(conn net.Conn, logger *slog.Logger, connectionTimeout, commandTimeout time.Duration) *Connection {
	if connectionTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(connectionTimeout))
	}
	return &Connection{
		conn:           conn,
		reader:         bufio.NewReader(conn),
		writer:         bufio.NewWriter(conn),
		logger:         logger,
		commandTimeout: commandTimeout,
	}
}

// Reader returns the buffered reader for the connection.
func (c *Connection) Reader() *bufio.Reader {
	return c.reader
}

// Writer returns the buffered writer for the connection.
func (c *Connection) Writer() *bufio.Writer {
	return c.writer
}

// Flush writes any buffered output to the connection.
func (c *Connection) Flush() error {
	return c.writer.Flush()
}

// Logger returns the per-connection logger.
func (c *Connection) Logger() *slog.Logger {
	return c.logger
}

// RemoteAddr returns the client's address as a string.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// SetCommandTimeout sets the read deadline for the next command.
func (c *Connection) SetCommandTimeout() error {
	if c.commandTimeout <= 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.commandTimeout))
}

// Close closes the underlying connection. It is safe to call more
// than once.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	_ = c.writer.Flush()
	return c.conn.Close()
}

// IsClosed reports whether Close has been called.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

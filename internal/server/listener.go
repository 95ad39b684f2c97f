package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/infodancer/connlimitd/internal/logging"
)

// ConnectionHandler processes a single accepted connection. The
// handler owns the connection for its lifetime; the listener closes it
// when the handler returns.
type ConnectionHandler func(ctx context.Context, conn *Connection)

// ListenerConfig holds configuration for creating a new Listener.
type ListenerConfig struct {
	Address           string
	ConnectionTimeout time.Duration
	CommandTimeout    time.Duration
	Logger            *slog.Logger
	Handler           ConnectionHandler

	// Limiter caps concurrent connections across the server. May be nil.
	Limiter *ConnectionLimiter
}

// Listener accepts connections on one address and dispatches them to
// the configured handler, one goroutine per connection.
type Listener struct {
	cfg ListenerConfig

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewListener creates a Listener from the given configuration.
func NewListener(cfg ListenerConfig) *Listener {
	return &Listener{cfg: cfg}
}

// Address returns the configured listen address.
func (l *Listener) Address() string {
	return l.cfg.Address
}

// Start listens and accepts connections until the context is
// cancelled. It returns context.Canceled on a clean shutdown.
func (l *Listener) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.cfg.Address)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	l.cfg.Logger.Info("listening", slog.String("address", l.cfg.Address))

	for {
		conn, err := ln.Accept()
		if err != nil {
			l.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return context.Canceled
			}
			return err
		}

		if l.cfg.Limiter != nil && !l.cfg.Limiter.TryAcquire() {
			l.cfg.Logger.Warn("refusing connection",
				slog.String("remote", conn.RemoteAddr().String()),
				slog.String("error", ErrServerBusy.Error()))
			_, _ = conn.Write([]byte("-ERR server busy, try again later\r\n"))
			_ = conn.Close()
			continue
		}

		l.wg.Add(1)
		go func(nc net.Conn) {
			defer l.wg.Done()
			if l.cfg.Limiter != nil {
				defer l.cfg.Limiter.Release()
			}
			l.handle(ctx, nc)
		}(conn)
	}
}

func (l *Listener) handle(ctx context.Context, nc net.Conn) {
	logger := l.cfg.Logger.With(slog.String("remote", nc.RemoteAddr().String()))
	conn := NewConnection(nc, logger, l.cfg.ConnectionTimeout, l.cfg.CommandTimeout)
	defer conn.Close()

	ctx = logging.WithContext(ctx, logger)
	l.cfg.Handler(ctx, conn)
}

// Close stops the listener.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

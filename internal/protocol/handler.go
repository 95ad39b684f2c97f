package protocol

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/infodancer/connlimitd/internal/connlimit"
	"github.com/infodancer/connlimitd/internal/logging"
	"github.com/infodancer/connlimitd/internal/metrics"
	"github.com/infodancer/connlimitd/internal/server"
	"github.com/infodancer/connlimitd/internal/tracker"
)

// Handler creates a connection handler for the connlimitd line
// protocol. Authentication is checked against auth; after a
// successful authentication the hook chain runs, and only when every
// hook passes is the connection admitted and registered with the
// tracker.
func Handler(hostname string, auth Authenticator, tr tracker.Tracker, hooks *server.HookChain, collector metrics.Collector) server.ConnectionHandler {
	// Register protocol commands with the authenticator and tracker
	RegisterCommands(auth, tr)

	return func(ctx context.Context, conn *server.Connection) {
		handleConnection(ctx, conn, hostname, tr, hooks, collector)
	}
}

// handleConnection manages a single protocol connection.
func handleConnection(ctx context.Context, conn *server.Connection, hostname string, tr tracker.Tracker, hooks *server.HookChain, collector metrics.Collector) {
	logger := logging.FromContext(ctx)

	// Record connection opened
	collector.ConnectionOpened()
	defer collector.ConnectionClosed()

	// Create session
	sess := NewSession(hostname)

	// Release the tracker registration when the connection ends. The
	// release must run even when ctx was canceled by shutdown, or the
	// live count leaks.
	acquired := false
	defer func() {
		if !acquired {
			return
		}
		if err := tr.Release(context.WithoutCancel(ctx), sess.ID()); err != nil {
			logger.Error("failed to release connection",
				"principal", sess.Principal(),
				"error", err.Error(),
			)
		}
	}()

	logger.Info("starting session", "state", sess.State().String())

	// Send greeting
	greeting := fmt.Sprintf("+OK %s connlimitd ready\r\n", hostname)
	if _, err := conn.Writer().WriteString(greeting); err != nil {
		logger.Error("failed to send greeting", "error", err.Error())
		return
	}
	if err := conn.Flush(); err != nil {
		logger.Error("failed to flush greeting", "error", err.Error())
		return
	}

	// Command loop
	for {
		// Check if context is cancelled
		select {
		case <-ctx.Done():
			logger.Info("context cancelled, closing connection")
			return
		default:
		}

		// Check if connection is closed
		if conn.IsClosed() {
			logger.Info("connection closed")
			return
		}

		// Set command timeout
		if err := conn.SetCommandTimeout(); err != nil {
			logger.Error("failed to set command timeout", "error", err.Error())
			return
		}

		// Read command line
		line, err := conn.Reader().ReadString('\n')
		if err != nil {
			if err == io.EOF {
				logger.Info("client closed connection")
				return
			}
			logger.Error("error reading command", "error", err.Error())
			return
		}

		// Trim whitespace
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		logger.Debug("received command", "line", line)

		// Check if SASL exchange is in progress
		if sess.IsSASLInProgress() {
			// Get the AUTH command to process the SASL response
			authCmd, ok := GetCommand("AUTH")
			if !ok {
				logger.Error("AUTH command not registered")
				sess.ClearSASL()
				sendError(conn, "Internal server error")
				continue
			}

			// Type assert to access ProcessSASLResponse
			auth, ok := authCmd.(*authCommand)
			if !ok {
				logger.Error("AUTH command has wrong type")
				sess.ClearSASL()
				sendError(conn, "Internal server error")
				continue
			}

			// Process the SASL response
			resp, err := auth.ProcessSASLResponse(ctx, sess, conn, line)
			if err != nil {
				logger.Error("SASL processing error", "error", err.Error())
				sess.ClearSASL()
				sendError(conn, "Internal server error")
				continue
			}

			// Record auth metrics if authentication completed
			completed := resp.OK || (!resp.OK && !resp.Continuation)
			if completed {
				collector.AuthAttempt(resp.OK)
				collector.CommandProcessed("AUTH")
			}

			// Run admission before reporting success
			closeConn := false
			if completed {
				resp, closeConn = runAdmission(ctx, sess, conn, resp, tr, hooks, &acquired)
			}

			// Send response
			if _, err := conn.Writer().WriteString(resp.String()); err != nil {
				logger.Error("failed to send response", "error", err.Error())
				return
			}
			if err := conn.Flush(); err != nil {
				logger.Error("failed to flush response", "error", err.Error())
				return
			}

			if closeConn {
				return
			}

			continue
		}

		// Parse command
		cmdName, args, err := ParseCommand(line)
		if err != nil {
			sendError(conn, "Invalid command")
			continue
		}

		// Look up command
		cmd, ok := GetCommand(cmdName)
		if !ok {
			sendError(conn, "Unknown command")
			continue
		}

		logger.Debug("executing command",
			"command", cmdName,
			"args_count", len(args),
		)

		// Record command execution
		collector.CommandProcessed(cmdName)

		// Execute command
		resp, err := cmd.Execute(ctx, sess, conn, args)
		if err != nil {
			logger.Error("command execution error",
				"command", cmdName,
				"error", err.Error(),
			)
			sendError(conn, "Internal server error")
			continue
		}

		// Record auth metrics for PASS and AUTH commands. For AUTH,
		// only record when the exchange completed in one step.
		completed := cmdName == "PASS" ||
			(cmdName == "AUTH" && len(args) > 0 && (resp.OK || (!resp.OK && !resp.Continuation)))
		if completed {
			collector.AuthAttempt(resp.OK)
		}

		// Run admission before reporting success
		closeConn := false
		if completed {
			resp, closeConn = runAdmission(ctx, sess, conn, resp, tr, hooks, &acquired)
		}

		// Send response
		if _, err := conn.Writer().WriteString(resp.String()); err != nil {
			logger.Error("failed to send response", "error", err.Error())
			return
		}
		if err := conn.Flush(); err != nil {
			logger.Error("failed to flush response", "error", err.Error())
			return
		}

		logger.Debug("sent response",
			"ok", resp.OK,
			"message", resp.Message,
		)

		if closeConn {
			return
		}

		if cmdName == "QUIT" && resp.OK {
			logger.Info("QUIT command received, closing connection")
			return
		}
	}
}

// runAdmission runs the post-authentication hook chain for a completed
// authentication attempt. Hooks run for failed attempts too, with
// Authenticated false, so they can observe every attempt. When a hook
// vetoes a successful authentication, the success response is replaced
// with an error and the connection is closed after sending it. When
// every hook passes, the connection is registered with the tracker and
// the session transitions to the admitted state.
func runAdmission(ctx context.Context, sess *Session, conn *server.Connection, resp Response, tr tracker.Tracker, hooks *server.HookChain, acquired *bool) (Response, bool) {
	logger := conn.Logger()

	ev := server.AuthEvent{
		Principal:     sess.Principal(),
		Authenticated: resp.OK,
		RemoteAddr:    conn.RemoteAddr(),
	}
	if !resp.OK {
		// The principal is not recorded for failed attempts; report
		// the attempted username instead.
		ev.Principal = sess.Username()
	}

	if err := hooks.Run(ctx, ev); err != nil {
		logger.Info("connection rejected",
			"principal", ev.Principal,
			"remote_addr", ev.RemoteAddr,
			"error", err.Error(),
		)
		return Response{OK: false, Message: err.Error()}, true
	}

	if !resp.OK {
		// Failed authentication; nothing to admit.
		return resp, false
	}

	id := connlimit.PrincipalID(sess.Principal())
	if err := tr.Acquire(ctx, id); err != nil {
		// The connection is still admitted; an unavailable tracker
		// never turns away a valid client.
		logger.Error("failed to register connection",
			"principal", sess.Principal(),
			"error", err.Error(),
		)
	} else {
		*acquired = true
	}

	sess.SetAdmitted(id)

	logger.Info("connection admitted",
		"principal", sess.Principal(),
		"remote_addr", ev.RemoteAddr,
	)

	return resp, false
}

// sendError sends an error response to the client.
func sendError(conn *server.Connection, message string) {
	resp := Response{OK: false, Message: message}
	if _, err := conn.Writer().WriteString(resp.String()); err != nil {
		return
	}
	_ = conn.Flush()
}

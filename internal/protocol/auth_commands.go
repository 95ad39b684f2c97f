package protocol

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"

	"github.com/infodancer/connlimitd/internal/connlimit"
)

// Authenticator is the interface for credential verification.
type Authenticator interface {
	// Verify checks the password for the named principal. A nil
	// return means the credentials are valid.
	Verify(ctx context.Context, name, password string) error
}

// capaCommand implements the CAPA command.
type capaCommand struct{}

func (c *capaCommand) Name() string {
	return "CAPA"
}

func (c *capaCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// CAPA takes no arguments
	if len(args) > 0 {
		return Response{OK: false, Message: "CAPA command takes no arguments"}, nil
	}

	caps := sess.Capabilities()

	return Response{
		OK:      true,
		Message: "Capability list follows",
		Lines:   caps,
	}, nil
}

// userCommand implements the USER command.
type userCommand struct{}

func (u *userCommand) Name() string {
	return "USER"
}

func (u *userCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// USER is only valid in AUTHORIZATION state
	if sess.State() != StateAuthorization {
		return Response{OK: false, Message: "Command not valid in this state"}, nil
	}

	// USER requires exactly one argument
	if len(args) != 1 {
		return Response{OK: false, Message: "USER command requires username argument"}, nil
	}

	username := args[0]
	if username == "" {
		return Response{OK: false, Message: "Username cannot be empty"}, nil
	}

	// Store the username in the session
	sess.SetUsername(username)

	return Response{OK: true, Message: fmt.Sprintf("User %s accepted", username)}, nil
}

// passCommand implements the PASS command.
type passCommand struct {
	auth Authenticator
}

func (p *passCommand) Name() string {
	return "PASS"
}

func (p *passCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// PASS is only valid in AUTHORIZATION state
	if sess.State() != StateAuthorization {
		return Response{OK: false, Message: "Command not valid in this state"}, nil
	}

	// USER must have been called first
	username := sess.Username()
	if username == "" {
		return Response{OK: false, Message: "No username specified"}, nil
	}

	// PASS requires exactly one argument
	if len(args) != 1 {
		return Response{OK: false, Message: "PASS command requires password argument"}, nil
	}

	password := args[0]

	if err := p.auth.Verify(ctx, username, password); err != nil {
		// Return generic error to prevent user enumeration
		conn.Logger().Info("authentication failed",
			"username", username,
			"error", err.Error(),
		)
		return Response{OK: false, Message: "Authentication failed"}, nil
	}

	// Credentials accepted. The handler runs the post-authentication
	// hooks before deciding whether the connection is admitted.
	sess.SetAuthenticated(username)

	conn.Logger().Info("authentication successful", "username", username)

	return Response{OK: true, Message: fmt.Sprintf("Logged in as %s", username)}, nil
}

// authCommand implements the AUTH command (SASL).
type authCommand struct {
	auth Authenticator
}

func (a *authCommand) Name() string {
	return "AUTH"
}

func (a *authCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// AUTH is only valid in AUTHORIZATION state
	if sess.State() != StateAuthorization {
		return Response{OK: false, Message: "Command not valid in this state"}, nil
	}

	// AUTH with no arguments lists supported mechanisms
	if len(args) == 0 {
		return Response{
			OK:      true,
			Message: "Supported mechanisms follow",
			Lines:   SupportedSASLMechanisms(),
		}, nil
	}

	mech := strings.ToUpper(args[0])
	if mech != sasl.Plain {
		return Response{OK: false, Message: "Unsupported authentication mechanism"}, nil
	}

	server := a.newPlainServer(ctx, sess)

	// An initial response may be included with the command
	if len(args) > 1 {
		return a.step(sess, conn, server, args[1])
	}

	// No initial response; ask the client for one
	sess.SetSASLServer(mech, server)
	return Response{Continuation: true, Challenge: ""}, nil
}

// ProcessSASLResponse handles a client response line during an active
// SASL exchange.
func (a *authCommand) ProcessSASLResponse(ctx context.Context, sess *Session, conn ConnectionLogger, line string) (Response, error) {
	server := sess.SASLServer()
	if server == nil {
		return Response{OK: false, Message: "No authentication exchange in progress"}, nil
	}

	// "*" cancels the exchange
	if line == "*" {
		sess.ClearSASL()
		return Response{OK: false, Message: "Authentication aborted"}, nil
	}

	return a.step(sess, conn, server, line)
}

// step feeds one base64-encoded client response into the SASL server
// and translates the result into a protocol response.
func (a *authCommand) step(sess *Session, conn ConnectionLogger, server sasl.Server, encoded string) (Response, error) {
	response, err := DecodeSASLResponse(encoded)
	if err != nil {
		sess.ClearSASL()
		return Response{OK: false, Message: "Invalid base64 encoding"}, nil
	}

	challenge, done, err := server.Next(response)
	if err != nil {
		sess.ClearSASL()
		// Return generic error to prevent user enumeration
		conn.Logger().Info("authentication failed",
			"username", sess.Username(),
			"error", err.Error(),
		)
		return Response{OK: false, Message: "Authentication failed"}, nil
	}

	if !done {
		sess.SetSASLServer(sasl.Plain, server)
		return Response{Continuation: true, Challenge: EncodeSASLChallenge(challenge)}, nil
	}

	sess.ClearSASL()

	conn.Logger().Info("authentication successful", "username", sess.Username())

	return Response{OK: true, Message: fmt.Sprintf("Logged in as %s", sess.Username())}, nil
}

// newPlainServer creates a SASL PLAIN server that verifies credentials
// and records the principal in the session on success.
func (a *authCommand) newPlainServer(ctx context.Context, sess *Session) sasl.Server {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if identity != "" && identity != username {
			return fmt.Errorf("authorization identity not supported")
		}
		if err := a.auth.Verify(ctx, username, password); err != nil {
			return err
		}
		sess.SetUsername(username)
		sess.SetAuthenticated(username)
		return nil
	})
}

// statCommand implements the STAT command, reporting the live
// connection count for the admitted principal.
type statCommand struct {
	counter connlimit.LiveCounter
}

func (s *statCommand) Name() string {
	return "STAT"
}

func (s *statCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// STAT takes no arguments
	if len(args) > 0 {
		return Response{OK: false, Message: "STAT command takes no arguments"}, nil
	}

	// STAT is only valid once admitted
	if !sess.IsAdmitted() {
		return Response{OK: false, Message: "Command not valid in this state"}, nil
	}

	live, err := s.counter.Live(ctx, sess.ID())
	if err != nil {
		conn.Logger().Error("failed to read live count",
			"principal", sess.Principal(),
			"error", err.Error(),
		)
		return Response{OK: false, Message: "Live count unavailable"}, nil
	}

	return Response{OK: true, Message: fmt.Sprintf("%s %d", sess.Principal(), live)}, nil
}

// quitCommand implements the QUIT command.
type quitCommand struct{}

func (q *quitCommand) Name() string {
	return "QUIT"
}

func (q *quitCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	// QUIT takes no arguments
	if len(args) > 0 {
		return Response{OK: false, Message: "QUIT command takes no arguments"}, nil
	}

	return Response{OK: true, Message: "Goodbye"}, nil
}

// RegisterCommands registers all protocol commands.
func RegisterCommands(auth Authenticator, counter connlimit.LiveCounter) {
	RegisterCommand(&capaCommand{})
	RegisterCommand(&userCommand{})
	RegisterCommand(&passCommand{auth: auth})
	RegisterCommand(&authCommand{auth: auth})
	RegisterCommand(&statCommand{counter: counter})
	RegisterCommand(&quitCommand{})
}

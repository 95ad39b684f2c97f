package protocol

import (
	"github.com/emersion/go-sasl"

	"github.com/infodancer/connlimitd/internal/connlimit"
)

// State represents the current state in the protocol state machine.
type State int

const (
	// StateAuthorization is the initial state where authentication is required.
	StateAuthorization State = iota

	// StateAdmitted is the state after successful authentication and
	// admission.
	StateAdmitted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAuthorization:
		return "AUTHORIZATION"
	case StateAdmitted:
		return "ADMITTED"
	default:
		return "UNKNOWN"
	}
}

// Session tracks the per-connection protocol state.
type Session struct {
	state    State
	hostname string

	// Authentication state
	username  string
	principal string
	id        connlimit.PrincipalID

	// SASL state (for multi-step authentication exchanges)
	saslServer sasl.Server // Active SASL server during exchange
	saslMech   string      // Current mechanism name
}

// NewSession creates a new protocol session.
func NewSession(hostname string) *Session {
	return &Session{
		state:    StateAuthorization,
		hostname: hostname,
	}
}

// State returns the current protocol state.
func (s *Session) State() State {
	return s.state
}

// Hostname returns the server hostname for greetings and responses.
func (s *Session) Hostname() string {
	return s.hostname
}

// SetUsername stores the username from the USER command or a SASL
// exchange, before the password has been checked.
func (s *Session) SetUsername(username string) {
	s.username = username
}

// Username returns the stored username.
func (s *Session) Username() string {
	return s.username
}

// SetAuthenticated records a successful authentication for the named
// principal. The session stays in StateAuthorization until admission
// succeeds; SetAdmitted completes the transition.
func (s *Session) SetAuthenticated(principal string) {
	s.principal = principal
}

// Principal returns the authenticated principal name, or "" before
// authentication.
func (s *Session) Principal() string {
	return s.principal
}

// SetAdmitted transitions to StateAdmitted with the given identity
// token.
func (s *Session) SetAdmitted(id connlimit.PrincipalID) {
	s.state = StateAdmitted
	s.id = id
}

// IsAdmitted returns true once the connection has been admitted.
func (s *Session) IsAdmitted() bool {
	return s.state == StateAdmitted
}

// ID returns the identity token recorded at admission, or "" before.
func (s *Session) ID() connlimit.PrincipalID {
	return s.id
}

// SetSASLServer sets the active SASL server for a multi-step exchange.
func (s *Session) SetSASLServer(mech string, server sasl.Server) {
	s.saslMech = mech
	s.saslServer = server
}

// SASLServer returns the active SASL server, or nil if none.
func (s *Session) SASLServer() sasl.Server {
	return s.saslServer
}

// SASLMech returns the current SASL mechanism name.
func (s *Session) SASLMech() string {
	return s.saslMech
}

// ClearSASL clears the SASL state after completion or cancellation.
func (s *Session) ClearSASL() {
	s.saslServer = nil
	s.saslMech = ""
}

// IsSASLInProgress returns true if a SASL exchange is in progress.
func (s *Session) IsSASLInProgress() bool {
	return s.saslServer != nil
}

// Capabilities returns the list of capabilities for this session.
func (s *Session) Capabilities() []string {
	return []string{"USER", "SASL PLAIN", "STAT"}
}

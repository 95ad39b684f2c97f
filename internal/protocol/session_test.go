package protocol

import (
	"testing"

	"github.com/emersion/go-sasl"
)

func TestSessionInitialState(t *testing.T) {
	sess := NewSession("test.example.com")

	if sess.State() != StateAuthorization {
		t.Errorf("State() = %v, want %v", sess.State(), StateAuthorization)
	}
	if sess.Hostname() != "test.example.com" {
		t.Errorf("Hostname() = %q, want %q", sess.Hostname(), "test.example.com")
	}
	if sess.IsAdmitted() {
		t.Error("IsAdmitted() = true for new session")
	}
	if sess.Username() != "" {
		t.Errorf("Username() = %q, want empty", sess.Username())
	}
	if sess.Principal() != "" {
		t.Errorf("Principal() = %q, want empty", sess.Principal())
	}
}

func TestSessionAuthenticationFlow(t *testing.T) {
	sess := NewSession("test.example.com")

	sess.SetUsername("alice")
	if sess.Username() != "alice" {
		t.Errorf("Username() = %q, want %q", sess.Username(), "alice")
	}

	// Authentication alone does not admit the session
	sess.SetAuthenticated("alice")
	if sess.Principal() != "alice" {
		t.Errorf("Principal() = %q, want %q", sess.Principal(), "alice")
	}
	if sess.State() != StateAuthorization {
		t.Errorf("State() = %v after authentication, want %v", sess.State(), StateAuthorization)
	}
	if sess.IsAdmitted() {
		t.Error("IsAdmitted() = true before admission")
	}

	sess.SetAdmitted("alice")
	if !sess.IsAdmitted() {
		t.Error("IsAdmitted() = false after admission")
	}
	if sess.State() != StateAdmitted {
		t.Errorf("State() = %v, want %v", sess.State(), StateAdmitted)
	}
	if sess.ID() != "alice" {
		t.Errorf("ID() = %q, want %q", sess.ID(), "alice")
	}
}

func TestSessionSASLState(t *testing.T) {
	sess := NewSession("test.example.com")

	if sess.IsSASLInProgress() {
		t.Error("IsSASLInProgress() = true for new session")
	}

	server := sasl.NewPlainServer(func(identity, username, password string) error {
		return nil
	})
	sess.SetSASLServer(sasl.Plain, server)

	if !sess.IsSASLInProgress() {
		t.Error("IsSASLInProgress() = false after SetSASLServer")
	}
	if sess.SASLMech() != sasl.Plain {
		t.Errorf("SASLMech() = %q, want %q", sess.SASLMech(), sasl.Plain)
	}
	if sess.SASLServer() == nil {
		t.Error("SASLServer() = nil after SetSASLServer")
	}

	sess.ClearSASL()
	if sess.IsSASLInProgress() {
		t.Error("IsSASLInProgress() = true after ClearSASL")
	}
	if sess.SASLMech() != "" {
		t.Errorf("SASLMech() = %q after ClearSASL, want empty", sess.SASLMech())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateAuthorization, "AUTHORIZATION"},
		{StateAdmitted, "ADMITTED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

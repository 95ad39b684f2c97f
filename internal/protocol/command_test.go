package protocol

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantCmd  string
		wantArgs []string
		wantErr  bool
	}{
		{
			name:     "Simple command without args",
			line:     "QUIT",
			wantCmd:  "QUIT",
			wantArgs: []string{},
			wantErr:  false,
		},
		{
			name:     "Command with one arg",
			line:     "USER alice",
			wantCmd:  "USER",
			wantArgs: []string{"alice"},
			wantErr:  false,
		},
		{
			name:     "Command with multiple args",
			line:     "AUTH PLAIN AGFsaWNlAHNlY3JldA==",
			wantCmd:  "AUTH",
			wantArgs: []string{"PLAIN", "AGFsaWNlAHNlY3JldA=="},
			wantErr:  false,
		},
		{
			name:     "Command with extra whitespace",
			line:     "  USER   alice  ",
			wantCmd:  "USER",
			wantArgs: []string{"alice"},
			wantErr:  false,
		},
		{
			name:     "Lowercase command",
			line:     "user alice",
			wantCmd:  "USER",
			wantArgs: []string{"alice"},
			wantErr:  false,
		},
		{
			name:     "Mixed case command",
			line:     "QuIt",
			wantCmd:  "QUIT",
			wantArgs: []string{},
			wantErr:  false,
		},
		{
			name:    "Empty line",
			line:    "",
			wantErr: true,
		},
		{
			name:    "Whitespace only",
			line:    "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := ParseCommand(tt.line)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if cmd != tt.wantCmd {
				t.Errorf("ParseCommand() cmd = %v, want %v", cmd, tt.wantCmd)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("ParseCommand() args = %v, want %v", args, tt.wantArgs)
			}
			if len(args) > 0 && !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("ParseCommand() args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestResponseString(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{
			name: "OK response with message",
			resp: Response{OK: true, Message: "Goodbye"},
			want: "+OK Goodbye\r\n",
		},
		{
			name: "OK response without message",
			resp: Response{OK: true},
			want: "+OK\r\n",
		},
		{
			name: "Error response",
			resp: Response{OK: false, Message: "Unknown command"},
			want: "-ERR Unknown command\r\n",
		},
		{
			name: "Multi-line response",
			resp: Response{OK: true, Message: "Capability list follows", Lines: []string{"USER", "SASL PLAIN"}},
			want: "+OK Capability list follows\r\nUSER\r\nSASL PLAIN\r\n.\r\n",
		},
		{
			name: "Multi-line response with byte stuffing",
			resp: Response{OK: true, Message: "lines", Lines: []string{".hidden"}},
			want: "+OK lines\r\n..hidden\r\n.\r\n",
		},
		{
			name: "SASL continuation without challenge",
			resp: Response{Continuation: true},
			want: "+ \r\n",
		},
		{
			name: "SASL continuation with challenge",
			resp: Response{Continuation: true, Challenge: "dGVzdA=="},
			want: "+ dGVzdA==\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.String(); got != tt.want {
				t.Errorf("Response.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandRegistry(t *testing.T) {
	RegisterCommands(nil, nil)

	for _, name := range []string{"CAPA", "USER", "PASS", "AUTH", "STAT", "QUIT"} {
		if _, ok := GetCommand(name); !ok {
			t.Errorf("GetCommand(%q) not found", name)
		}
	}

	// Lookup is case-insensitive
	if _, ok := GetCommand("quit"); !ok {
		t.Error("GetCommand(\"quit\") not found")
	}

	if _, ok := GetCommand("NOOP"); ok {
		t.Error("GetCommand(\"NOOP\") unexpectedly found")
	}
}

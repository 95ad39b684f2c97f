// Package creds provides the principal credential store. The store is
// a plain text file of "name:bcrypt-hash" lines; a principal is known
// to the daemon iff it has an entry, so the store doubles as the
// principal directory the admission checker consults.
package creds

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/infodancer/connlimitd/internal/connlimit"
)

// ErrAuthFailed is returned for a bad password or an unknown
// principal; callers must not be able to tell the two apart.
var ErrAuthFailed = errors.New("authentication failed")

// Store holds principal credentials loaded from a file.
type Store struct {
	mu    sync.RWMutex
	users map[string]string // name -> bcrypt hash
}

// Load reads a credentials file and returns a Store. Blank lines and
// lines starting with '#' are ignored; every other line must be
// "name:hash".
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials file: %w", err)
	}
	defer f.Close()

	users := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, hash, ok := strings.Cut(line, ":")
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("credentials file line %d: expected name:hash", lineNum)
		}
		users[name] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	return &Store{users: users}, nil
}

// NewStore creates a Store from an in-memory name-to-hash map.
// Intended for tests and embedding.
func NewStore(users map[string]string) *Store {
	m := make(map[string]string, len(users))
	for k, v := range users {
		m[k] = v
	}
	return &Store{users: m}
}

// Reload replaces the store's entries with the content of the file.
// On error the existing entries are kept.
func (s *Store) Reload(path string) error {
	next, err := Load(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users = next.users
	s.mu.Unlock()
	return nil
}

// Lookup reports whether name is a known principal and returns its
// identity token. The token is simply the principal name; live counts
// are tracked by name.
func (s *Store) Lookup(ctx context.Context, name string) (connlimit.PrincipalID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[name]; !ok {
		return "", false
	}
	return connlimit.PrincipalID(name), true
}

// Verify checks a principal's password. It returns ErrAuthFailed for
// both unknown principals and wrong passwords.
func (s *Store) Verify(ctx context.Context, name, password string) error {
	s.mu.RLock()
	hash, ok := s.users[name]
	s.mu.RUnlock()

	if !ok {
		// Burn a comparison anyway so unknown names take as long as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return ErrAuthFailed
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrAuthFailed
	}
	return nil
}

// Len returns the number of known principals.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

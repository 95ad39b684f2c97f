// Package connlimit decides whether a freshly authenticated connection
// may be admitted, based on per-principal limits stored as plain files
// in a limit directory. Each principal's limit lives at
// <directory>/<principal> and contains a base-10 integer:
//
//	$ cat /etc/connlimit-db/alice
//	10
//
// Operators change a limit by rewriting the file; no restart or reload
// is required because every check re-reads the file.
//
// The check fails open: a missing directory setting, an unknown or
// malformed principal name, an unreadable file, or unparseable content
// all admit the connection as if no limit were configured. Only a
// successfully parsed limit can reject.
package connlimit

import (
	"context"
	"log/slog"

	"github.com/infodancer/connlimitd/internal/logging"
)

// PrincipalID is the identity token used to query live connection
// counts for a principal. It is produced by the PrincipalDirectory and
// is opaque to this package.
type PrincipalID string

// PrincipalDirectory resolves principal names to identity tokens.
// Unknown names cause the admission check to admit; no limit can apply
// to an identity that does not exist.
type PrincipalDirectory interface {
	Lookup(ctx context.Context, name string) (PrincipalID, bool)
}

// LiveCounter reports the number of connections currently live for a
// principal, excluding the connection being admitted.
type LiveCounter interface {
	Live(ctx context.Context, id PrincipalID) (int64, error)
}

// Outcome classifies the result of an admission check. Every outcome
// except OutcomeOverQuota admits the connection.
type Outcome int

const (
	// OutcomeFeatureDisabled means no limit directory is configured.
	OutcomeFeatureDisabled Outcome = iota

	// OutcomeUnknownPrincipal means the directory has no entry for the name.
	OutcomeUnknownPrincipal

	// OutcomeInvalidName means the name is empty or not ASCII-alphanumeric
	// and was rejected before any path was built from it.
	OutcomeInvalidName

	// OutcomeSourceUnreadable means the limit file could not be opened or read.
	OutcomeSourceUnreadable

	// OutcomeSourceTooLarge means the file did not end within the read buffer.
	OutcomeSourceTooLarge

	// OutcomeParseFailure means the file content is not an integer.
	OutcomeParseFailure

	// OutcomeCounterUnavailable means the live-count query failed.
	OutcomeCounterUnavailable

	// OutcomeUnderLimit means a limit was found and the principal is below it.
	OutcomeUnderLimit

	// OutcomeOverQuota means a limit was found and the principal is at or
	// above it. This is the only outcome that rejects.
	OutcomeOverQuota
)

// String returns the outcome name for logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeFeatureDisabled:
		return "feature_disabled"
	case OutcomeUnknownPrincipal:
		return "unknown_principal"
	case OutcomeInvalidName:
		return "invalid_name"
	case OutcomeSourceUnreadable:
		return "source_unreadable"
	case OutcomeSourceTooLarge:
		return "source_too_large"
	case OutcomeParseFailure:
		return "parse_failure"
	case OutcomeCounterUnavailable:
		return "counter_unavailable"
	case OutcomeUnderLimit:
		return "under_limit"
	case OutcomeOverQuota:
		return "over_quota"
	default:
		return "unknown"
	}
}

// Decision is the result of a single admission check.
type Decision struct {
	Outcome   Outcome
	Principal string

	// Limit and Live are only meaningful for OutcomeUnderLimit and
	// OutcomeOverQuota.
	Limit int64
	Live  int64
}

// Admitted reports whether the connection may proceed.
func (d Decision) Admitted() bool {
	return d.Outcome != OutcomeOverQuota
}

// Err returns nil for an admitted connection, or a *QuotaError for a
// rejected one, suitable for propagating up the connection-setup chain.
func (d Decision) Err() error {
	if d.Admitted() {
		return nil
	}
	return &QuotaError{Principal: d.Principal, Limit: d.Limit, Live: d.Live}
}

// Checker runs the admission pipeline: validate the principal name,
// resolve it to a limit file, read and parse the file, and compare the
// limit against the principal's live connection count.
type Checker struct {
	directory  func() string
	principals PrincipalDirectory
	counter    LiveCounter
	open       func(path string) (limitFile, error)
}

// Config holds the collaborators for a new Checker.
type Config struct {
	// Directory returns the current limit directory. Called once per
	// check so a hot-reloaded configuration takes effect immediately.
	// An empty return disables the feature for that check.
	Directory func() string

	Principals PrincipalDirectory
	Counter    LiveCounter
}

// New creates a Checker from the given collaborators.
func New(cfg Config) *Checker {
	return &Checker{
		directory:  cfg.Directory,
		principals: cfg.Principals,
		counter:    cfg.Counter,
		open:       openLimitFile,
	}
}

// Check runs one admission check for the named principal. It is called
// after the principal has authenticated successfully; it never blocks
// on anything but the limit file read and the live-count query, and it
// keeps no state between calls.
func (c *Checker) Check(ctx context.Context, name string) Decision {
	logger := logging.FromContext(ctx)
	d := Decision{Principal: name}

	dir := ""
	if c.directory != nil {
		dir = c.directory()
	}
	if dir == "" {
		d.Outcome = OutcomeFeatureDisabled
		return d
	}

	id, ok := c.principals.Lookup(ctx, name)
	if !ok {
		d.Outcome = OutcomeUnknownPrincipal
		return d
	}

	// The name is about to become a path component. Reject anything
	// that is not ASCII-alphanumeric before building the path.
	if !ValidName(name) {
		d.Outcome = OutcomeInvalidName
		logger.Debug("principal name not usable as limit file name", slog.String("principal", name))
		return d
	}

	path := LimitPath(dir, name)

	content, status := c.readLimit(path)
	switch status {
	case readOK:
	case readTooLarge:
		d.Outcome = OutcomeSourceTooLarge
		logger.Debug("limit file too large, not enforcing", slog.String("path", path))
		return d
	default:
		// Missing or unreadable file means no limit for this principal.
		d.Outcome = OutcomeSourceUnreadable
		return d
	}

	limit, ok := ParseLimit(content)
	if !ok {
		d.Outcome = OutcomeParseFailure
		logger.Debug("limit file did not parse as an integer", slog.String("path", path))
		return d
	}
	d.Limit = limit

	live, err := c.counter.Live(ctx, id)
	if err != nil {
		d.Outcome = OutcomeCounterUnavailable
		logger.Warn("live connection count unavailable, not enforcing",
			slog.String("principal", name),
			slog.String("error", err.Error()),
		)
		return d
	}
	d.Live = live

	// The live count excludes the connection being admitted, so at
	// equality this connection would be the limit-th one: use >=.
	if live >= limit {
		d.Outcome = OutcomeOverQuota
		logger.Info("rejecting connection over quota",
			slog.String("principal", name),
			slog.Int64("limit", limit),
			slog.Int64("live", live),
		)
		return d
	}

	d.Outcome = OutcomeUnderLimit
	return d
}

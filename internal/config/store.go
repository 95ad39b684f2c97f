package config

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Store holds the current configuration snapshot and swaps it
// atomically on reload. Readers call Current per use, so a reload is
// visible to the next admission check without restarting anything.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a Store holding the given initial configuration.
func NewStore(cfg Config) *Store {
	s := &Store{}
	s.current.Store(&cfg)
	return s
}

// Current returns the current configuration snapshot. The returned
// value must be treated as read-only.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Replace validates cfg and installs it as the current snapshot.
func (s *Store) Replace(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.current.Store(&cfg)
	return nil
}

// LimitDirectory returns the limit directory from the current
// snapshot. This is the accessor the admission checker is wired to, so
// it always sees the latest reload.
func (s *Store) LimitDirectory() string {
	return s.Current().Connlimit.Directory
}

// WatchSignals reloads the configuration file on SIGHUP until ctx is
// cancelled. A reload that fails to load or validate is logged and
// discarded; the previous snapshot stays in effect.
func (s *Store) WatchSignals(ctx context.Context, path string, flags *Flags, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigChan:
			cfg, err := Load(path)
			if err != nil {
				logger.Error("config reload failed", slog.String("error", err.Error()))
				continue
			}
			if flags != nil {
				cfg = ApplyFlags(cfg, flags)
			}
			if err := s.Replace(cfg); err != nil {
				logger.Error("reloaded config is invalid, keeping previous",
					slog.String("error", err.Error()))
				continue
			}
			logger.Info("configuration reloaded",
				slog.String("path", path),
				slog.String("limit_directory", cfg.Connlimit.Directory))
		}
	}
}

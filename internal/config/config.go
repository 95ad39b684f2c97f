// Package config provides configuration management for the connection
// limit daemon.
package config

import (
	"errors"
	"fmt"
	"time"
)

// FileConfig is the top-level wrapper for the shared configuration
// file. This allows connlimitd to read the same file as the other
// infodancer daemons, taking its own settings from the [connlimitd]
// table.
type FileConfig struct {
	Server     ServerConfig `toml:"server"`
	Connlimitd Config       `toml:"connlimitd"`
}

// ServerConfig holds shared settings used by all services reading the
// common config file.
type ServerConfig struct {
	Hostname string `toml:"hostname"`
}

// Config holds the connlimitd-specific configuration.
type Config struct {
	Hostname  string           `toml:"hostname"`
	LogLevel  string           `toml:"log_level"`
	Listeners []ListenerConfig `toml:"listeners"`
	Connlimit ConnlimitConfig  `toml:"connlimit"`
	Auth      AuthConfig       `toml:"auth"`
	Tracker   TrackerConfig    `toml:"tracker"`
	Timeouts  TimeoutsConfig   `toml:"timeouts"`
	Limits    LimitsConfig     `toml:"limits"`
	Metrics   MetricsConfig    `toml:"metrics"`
}

// ListenerConfig defines settings for a single listener.
type ListenerConfig struct {
	Address string `toml:"address"`
}

// ConnlimitConfig configures the per-principal admission check.
type ConnlimitConfig struct {
	// Directory holds one file per principal, named after the
	// principal, containing that principal's connection limit as a
	// base-10 integer. Empty disables per-principal limits entirely.
	Directory string `toml:"directory"`
}

// AuthConfig configures the principal credential store.
type AuthConfig struct {
	// CredentialsFile is a text file of "name:bcrypt-hash" lines. A
	// principal is known to the daemon iff it has an entry here.
	CredentialsFile string `toml:"credentials_file"`
}

// TrackerBackend names a live-connection tracking backend.
type TrackerBackend string

const (
	// TrackerMemory counts connections in process memory.
	TrackerMemory TrackerBackend = "memory"
	// TrackerRedis counts connections in a shared Redis instance.
	TrackerRedis TrackerBackend = "redis"
)

// TrackerConfig selects and configures the live-connection tracker.
type TrackerConfig struct {
	Backend TrackerBackend `toml:"backend"`
	Redis   RedisConfig    `toml:"redis"`
}

// RedisConfig holds connection settings for the Redis tracker backend.
type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
	PoolSize  int    `toml:"pool_size"`
}

// TimeoutsConfig defines timeout durations.
type TimeoutsConfig struct {
	Connection string `toml:"connection"`
	Command    string `toml:"command"`
}

// LimitsConfig defines whole-server resource limits, independent of
// the per-principal limit directory.
type LimitsConfig struct {
	MaxConnections int `toml:"max_connections"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Default returns a Config with sensible default values. The limit
// directory defaults to empty, i.e. per-principal limits disabled.
func Default() Config {
	return Config{
		Hostname: "localhost",
		LogLevel: "info",
		Listeners: []ListenerConfig{
			{Address: ":7110"},
		},
		Tracker: TrackerConfig{
			Backend: TrackerMemory,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "connlimitd:",
			},
		},
		Timeouts: TimeoutsConfig{
			Connection: "10m",
			Command:    "1m",
		},
		Limits: LimitsConfig{
			MaxConnections: 1000,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9102",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid and returns an error
// if not. The limit directory is deliberately not checked for
// existence: a missing or unreadable directory means limits are not
// enforced, never that the daemon refuses to start.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}

	if len(c.Listeners) == 0 {
		return errors.New("at least one listener is required")
	}

	for i, l := range c.Listeners {
		if l.Address == "" {
			return fmt.Errorf("listener %d: address is required", i)
		}
	}

	if c.Limits.MaxConnections <= 0 {
		return errors.New("max_connections must be positive")
	}

	switch c.Tracker.Backend {
	case TrackerMemory:
	case TrackerRedis:
		if c.Tracker.Redis.Addr == "" {
			return errors.New("tracker redis addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid tracker backend %q (valid: memory, redis)", c.Tracker.Backend)
	}

	if c.Timeouts.Connection != "" {
		if _, err := time.ParseDuration(c.Timeouts.Connection); err != nil {
			return fmt.Errorf("invalid connection timeout: %w", err)
		}
	}

	if c.Timeouts.Command != "" {
		if _, err := time.ParseDuration(c.Timeouts.Command); err != nil {
			return fmt.Errorf("invalid command timeout: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}

// ConnectionTimeout returns the connection timeout as a time.Duration.
// Returns 10 minutes if not configured or invalid.
func (c *TimeoutsConfig) ConnectionTimeout() time.Duration {
	if c.Connection == "" {
		return 10 * time.Minute
	}
	d, err := time.ParseDuration(c.Connection)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// CommandTimeout returns the command timeout as a time.Duration.
// Returns 1 minute if not configured or invalid.
func (c *TimeoutsConfig) CommandTimeout() time.Duration {
	if c.Command == "" {
		return 1 * time.Minute
	}
	d, err := time.ParseDuration(c.Command)
	if err != nil {
		return 1 * time.Minute
	}
	return d
}

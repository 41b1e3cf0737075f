// Package config provides configuration types for docdesk.
//
// Configuration comes from docdesk.yaml, DOCDESK_* environment variables and
// a .env file in the working directory, in increasing order of precedence
// for the last two over the first.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Token store kinds.
const (
	TokenStoreFile   = "file"
	TokenStoreSQLite = "sqlite"
	TokenStoreMemory = "memory"
	TokenStoreNone   = "none"
)

// Config is the top-level docdesk configuration.
type Config struct {
	// Backend configures the document-management backend.
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// TokenStore configures where the bearer token is persisted between runs.
	TokenStore TokenStoreConfig `yaml:"token_store" mapstructure:"token_store"`

	// Console configures the local web console.
	Console ConsoleConfig `yaml:"console" mapstructure:"console"`

	// Tracing configures the OpenTelemetry stdout exporters.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// BackendConfig configures the backend REST API.
type BackendConfig struct {
	// URL is the backend base URL, without the /api prefix.
	URL string `yaml:"url" mapstructure:"url" validate:"required,url"`
	// Timeout is the per-call transport budget (e.g., "10s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"required"`
}

// TimeoutDuration parses Timeout.
func (b BackendConfig) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 0, fmt.Errorf("backend.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("backend.timeout must be positive, got %s", b.Timeout)
	}
	return d, nil
}

// TokenStoreConfig configures token persistence.
type TokenStoreConfig struct {
	// Kind is file, sqlite, memory or none. Default: file.
	Kind string `yaml:"kind" mapstructure:"kind" validate:"oneof=file sqlite memory none"`
	// Path is the token file or SQLite database. Defaults depend on Kind.
	Path string `yaml:"path" mapstructure:"path"`
}

// ConsoleConfig configures the web console served by "docdesk console".
type ConsoleConfig struct {
	// Addr is the listen address. Default: 127.0.0.1:3000 (localhost only).
	Addr string `yaml:"addr" mapstructure:"addr" validate:"hostname_port"`
	// AccessKeyHash is an optional argon2id hash (see "docdesk hash-key").
	// When set, every console request must carry the key as the basic-auth password.
	AccessKeyHash string `yaml:"access_key_hash" mapstructure:"access_key_hash" validate:"omitempty,argon2id_hash"`
	// AllowedOrigins are the CORS origins allowed on /api/*.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	// Enabled writes spans and metric snapshots to stderr. Default: false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// MetricInterval is how often metric snapshots are written (e.g., "60s").
	MetricInterval string `yaml:"metric_interval" mapstructure:"metric_interval"`
}

// DefaultDir returns ~/.docdesk, or .docdesk when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docdesk"
	}
	return filepath.Join(home, ".docdesk")
}

// DefaultTokenPath returns the default token location for kind.
func DefaultTokenPath(kind string) string {
	switch kind {
	case TokenStoreSQLite:
		return filepath.Join(DefaultDir(), "docdesk.db")
	case TokenStoreFile:
		return filepath.Join(DefaultDir(), "token.json")
	default:
		return ""
	}
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.Backend.URL == "" {
		c.Backend.URL = "http://localhost:5000"
	}
	if c.Backend.Timeout == "" {
		c.Backend.Timeout = "10s"
	}

	if c.TokenStore.Kind == "" {
		c.TokenStore.Kind = TokenStoreFile
	}
	if c.TokenStore.Path == "" {
		c.TokenStore.Path = DefaultTokenPath(c.TokenStore.Kind)
	}

	// Localhost only; exposing the console needs an explicit addr.
	if c.Console.Addr == "" {
		c.Console.Addr = "127.0.0.1:3000"
	}

	if c.Tracing.MetricInterval == "" {
		c.Tracing.MetricInterval = "60s"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

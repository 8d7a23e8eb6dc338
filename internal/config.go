package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/graphservice"
	"github.com/starford/notegraph/internal/joplin"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Source kinds.
const (
	SourceSQLite = "sqlite"
	SourceJoplin = "joplin"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Source SourceConfig      `yaml:"source"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Joplin JoplinConfig      `yaml:"joplin"`
	Graph  GraphConfig       `yaml:"graph"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration. Only the sections the selected
// source needs are checked.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	switch c.Source.Kind {
	case SourceSQLite:
		if err := c.Vault.Validate(); err != nil {
			return err
		}
		if err := c.SQLite.Validate(); err != nil {
			return err
		}
	case SourceJoplin:
		if err := c.Joplin.Validate(); err != nil {
			return err
		}
	}
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig selects where notes are read from.
type SourceConfig struct {
	Kind string `yaml:"kind"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(SourceSQLite, SourceJoplin)),
	)
}

// VaultConfig holds the Markdown vault synced into SQLite.
type VaultConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// JoplinConfig holds the Joplin Data API connection.
type JoplinConfig struct {
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token"`
	RateLimit float64       `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Validate validates the Joplin configuration.
func (c *JoplinConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// GraphConfig holds the graph settings applied at startup.
type GraphConfig struct {
	graphservice.Settings `yaml:",inline"`
	// Concurrency caps in-flight note lookups per traversal layer.
	Concurrency int `yaml:"concurrency"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Kind: SourceSQLite,
		},
		Vault: VaultConfig{
			Path:  "./vault",
			Watch: true,
		},
		SQLite: SQLiteConfig{
			Path: "./notegraph.db",
		},
		Joplin: JoplinConfig{
			URL:       joplin.DefaultBaseURL,
			RateLimit: joplin.DefaultRateLimit,
			Timeout:   joplin.DefaultTimeout,
		},
		Graph: GraphConfig{
			Settings:    graphservice.DefaultSettings(),
			Concurrency: 8,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

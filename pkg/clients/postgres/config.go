package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// maxSQLTruncateLen bounds SQL recorded in span attributes. Assertion
// queries can embed seeded values.
const maxSQLTruncateLen = 100

// Default connection settings for a test database next to the API under
// test.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultDatabase = "monitoring"
	DefaultUser     = "postgres"

	// DefaultMaxConns is small: assertions run sequentially per test class.
	DefaultMaxConns int32 = 4
	DefaultMinConns int32 = 0

	DefaultConnectTimeout = 10 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
)

// SSLMode maps to the PostgreSQL sslmode connection parameter.
type SSLMode string

const (
	SSLModeDisable    SSLMode = "disable"
	SSLModeAllow      SSLMode = "allow"
	SSLModePrefer     SSLMode = "prefer"
	SSLModeRequire    SSLMode = "require"
	SSLModeVerifyCA   SSLMode = "verify-ca"
	SSLModeVerifyFull SSLMode = "verify-full"
)

func (m SSLMode) String() string { return string(m) }

// Valid reports whether m is a recognized sslmode.
func (m SSLMode) Valid() bool {
	switch m {
	case SSLModeDisable, SSLModeAllow, SSLModePrefer,
		SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	default:
		return false
	}
}

// Secret is a string that is redacted when formatted or serialized. Use
// [Secret.Value] to read it.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// MarshalText keeps the secret out of JSON and YAML output.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds the connection settings of the database whose state the
// assertions inspect. When URI is set it takes precedence over the
// structured fields.
type Config struct {
	// URI is a postgres:// or postgresql:// connection string.
	URI string `json:"uri,omitempty" yaml:"uri" env:"URI"`

	Host     string `json:"host,omitempty" yaml:"host" env:"HOST"`
	Port     int    `json:"port,omitempty" yaml:"port" env:"PORT"`
	Database string `json:"database" yaml:"database" env:"DATABASE"`
	User     string `json:"user" yaml:"user" env:"USER"`
	Password Secret `json:"-" yaml:"password" env:"PASSWORD"`

	SSLMode SSLMode `json:"ssl_mode,omitempty" yaml:"ssl_mode" env:"SSLMODE"`

	MaxConns       int32         `json:"max_conns,omitempty" yaml:"max_conns" env:"MAX_CONNS"`
	MinConns       int32         `json:"min_conns,omitempty" yaml:"min_conns" env:"MIN_CONNS"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

// DefaultConfig returns a Config for a local, non-TLS test database.
func DefaultConfig() *Config {
	return &Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		Database:       DefaultDatabase,
		User:           DefaultUser,
		SSLMode:        SSLModeDisable,
		MaxConns:       DefaultMaxConns,
		MinConns:       DefaultMinConns,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Validate checks the configuration and applies defaults for zero fields.
// With a URI set only the URI is checked.
func (c *Config) Validate() error {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("postgres: config URI is invalid: %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("postgres: config URI scheme must be postgres:// or postgresql://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("postgres: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		return errors.New("postgres: config database must not be empty")
	}
	if c.User == "" {
		return errors.New("postgres: config user must not be empty")
	}
	if c.SSLMode == "" {
		c.SSLMode = SSLModeDisable
	}
	if !c.SSLMode.Valid() {
		return fmt.Errorf("postgres: config ssl_mode %q is not valid", c.SSLMode)
	}
	if c.MinConns < 0 || c.MaxConns < c.MinConns {
		return fmt.Errorf("postgres: config max_conns (%d) must be >= min_conns (%d)", c.MaxConns, c.MinConns)
	}
	return nil
}

// ConnectionString returns the URI, or builds one from the structured
// fields. The result contains the password in cleartext.
func (c *Config) ConnectionString() string {
	if c.URI != "" {
		return c.URI
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password.Value()),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", string(c.SSLMode))
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLTruncateLen {
		return sql
	}
	return sql[:maxSQLTruncateLen] + "..."
}

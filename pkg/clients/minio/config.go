package minio

import (
	"errors"
	"time"
)

const maxStatementTruncateLen = 100

// Default configuration values.
const (
	DefaultRegion        = "us-east-1"
	DefaultBucket        = "apitest-journal"
	DefaultHealthTimeout = 5 * time.Second

	healthProbeBucket = "health-check-probe"
)

// Secret is a string that is redacted when formatted or serialized.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string               { return redacted }
func (s Secret) GoString() string             { return redacted }
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// Config holds the S3/MinIO settings of the journal archive sink.
type Config struct {
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey Secret `json:"-" yaml:"secret_key" env:"SECRET_KEY"`
	Region    string `json:"region,omitempty" yaml:"region" env:"REGION"`
	UseSSL    bool   `json:"use_ssl,omitempty" yaml:"use_ssl" env:"USE_SSL"`

	// Bucket receives the journal objects. It is created on first use.
	Bucket string `json:"bucket,omitempty" yaml:"bucket" env:"BUCKET"`
}

// Enabled reports whether an endpoint is configured.
func (c *Config) Enabled() bool { return c.Endpoint != "" }

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: config endpoint must not be empty")
	}
	if c.AccessKey == "" {
		return errors.New("minio: config access_key must not be empty")
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	return nil
}

func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}

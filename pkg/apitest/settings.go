package apitest

import (
	"fmt"
	"net/url"
	"time"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/clients/minio"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/clients/redis"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/config"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/dbassert"
)

// EnvPrefix prefixes every settings environment variable.
const EnvPrefix = "APITEST"

// DefaultSettingsFile is read by [LoadSettings] when it exists.
const DefaultSettingsFile = "apitest.yaml"

const redacted = "[REDACTED]"

// Secret is a string that never prints its value.
type Secret string

func (s Secret) String() string               { return redacted }
func (s Secret) GoString() string             { return redacted }
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Value returns the secret in clear text.
func (s Secret) Value() string { return string(s) }

// Settings configure an [Env].
//
//	APITEST_API_URL=http://localhost/api_jsonrpc.php
//	APITEST_API_USERNAME=Admin
//	APITEST_DB_DRIVER=mysql
//	APITEST_DB_DSN=zabbix:zabbix@tcp(localhost:3306)/zabbix
//	APITEST_JOURNAL_REDIS_HOST=localhost
type Settings struct {
	API     APISettings     `json:"api" yaml:"api" env:"API"`
	DB      dbassert.Config `json:"db" yaml:"db" env:"DB"`
	Journal JournalSettings `json:"journal" yaml:"journal" env:"JOURNAL"`
}

// APISettings locate the API under test and the account the suite logs
// in with.
type APISettings struct {
	URL      string        `json:"url" yaml:"url" env:"URL" required:"true"`
	Username string        `json:"username" yaml:"username" env:"USERNAME" envDefault:"Admin"`
	Password Secret        `json:"-" yaml:"password" env:"PASSWORD" envDefault:"zabbix"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT" envDefault:"30s"`
}

// JournalSettings select the call journal sinks. Every sink is optional.
type JournalSettings struct {
	// RunID names the run in journal keys and objects. Generated when empty.
	RunID string `json:"run_id" yaml:"run_id" env:"RUN_ID"`

	// Log writes every call to the logger.
	Log bool `json:"log" yaml:"log" env:"LOG"`

	// TTL of the per-run Redis list.
	TTL time.Duration `json:"ttl" yaml:"ttl" env:"TTL" envDefault:"24h"`

	Redis   redis.Config `json:"redis" yaml:"redis" env:"REDIS"`
	Archive minio.Config `json:"archive" yaml:"archive" env:"ARCHIVE"`
}

// Validate implements config.Validator.
func (s *Settings) Validate() error {
	u, err := url.Parse(s.API.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("apitest: api url must be an absolute http(s) URL, got %q", s.API.URL)
	}
	if s.API.Timeout <= 0 {
		return fmt.Errorf("apitest: api timeout must be positive, got %s", s.API.Timeout)
	}
	if s.DB.Enabled() {
		if err := s.DB.Validate(); err != nil {
			return err
		}
	}
	if s.Journal.Redis.Enabled() {
		if err := s.Journal.Redis.Validate(); err != nil {
			return err
		}
	}
	if s.Journal.Archive.Enabled() {
		if err := s.Journal.Archive.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadSettings reads settings from path (if it exists; "" means
// [DefaultSettingsFile]) and APITEST_* environment variables.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		path = DefaultSettingsFile
	}
	var s Settings
	err := config.New().WithEnvPrefix(EnvPrefix).WithFile(path).Load(&s)
	return s, err
}

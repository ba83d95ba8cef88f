package apitest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-apitest/internal/testutil"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/dbassert"
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

func TestLoadSettings_Env(t *testing.T) {
	t.Setenv("APITEST_API_URL", "http://zabbix.local/api_jsonrpc.php")
	t.Setenv("APITEST_API_PASSWORD", "s3cret")
	t.Setenv("APITEST_DB_DRIVER", "mysql")
	t.Setenv("APITEST_DB_DSN", "zabbix:zabbix@tcp(localhost:3306)/zabbix")
	t.Setenv("APITEST_JOURNAL_REDIS_HOST", "redis.local")

	s, err := LoadSettings(testutil.MissingFile(t, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://zabbix.local/api_jsonrpc.php", s.API.URL)
	assert.Equal(t, "Admin", s.API.Username)
	assert.Equal(t, "s3cret", s.API.Password.Value())
	assert.Equal(t, 30*time.Second, s.API.Timeout)
	assert.Equal(t, dbassert.DriverMySQL, s.DB.Driver)
	assert.True(t, s.DB.Enabled())
	assert.Equal(t, "redis.local", s.Journal.Redis.Host)
	assert.Equal(t, 24*time.Hour, s.Journal.TTL)
	assert.False(t, s.Journal.Archive.Enabled())
}

func TestLoadSettings_File(t *testing.T) {
	path := testutil.TempFile(t, "apitest.yaml", `
api:
  url: https://monitoring.example.com/api_jsonrpc.php
  username: api-runner
  timeout: 10s
db:
  driver: sqlite3
  dsn: file:test.db
journal:
  log: true
  run_id: nightly
`)

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "api-runner", s.API.Username)
	assert.Equal(t, 10*time.Second, s.API.Timeout)
	assert.Equal(t, dbassert.DriverSQLite, s.DB.Driver)
	assert.True(t, s.Journal.Log)
	assert.Equal(t, "nightly", s.Journal.RunID)
}

func TestLoadSettings_MissingURL(t *testing.T) {
	_, err := LoadSettings(testutil.MissingFile(t, "missing.yaml"))
	e := testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
	assert.Contains(t, e.Message, "API.URL")
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Setenv("APITEST_API_URL", "ftp://zabbix.local/")
	_, err := LoadSettings(testutil.MissingFile(t, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, sserr.IsValidation(err))

	t.Setenv("APITEST_API_URL", "http://zabbix.local/")
	t.Setenv("APITEST_DB_DRIVER", "oracle")
	t.Setenv("APITEST_DB_DSN", "x")
	_, err = LoadSettings(testutil.MissingFile(t, "missing.yaml"))
	assert.True(t, sserr.IsValidation(err))
}

func TestSecret_Redacted(t *testing.T) {
	s := Secret("zabbix")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.NotContains(t, fmt.Sprintf("%+v", APISettings{Password: s}), "zabbix")
	assert.NotContains(t, fmt.Sprintf("%#v", s), "zabbix")
	assert.Equal(t, "zabbix", s.Value())
}

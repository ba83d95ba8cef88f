// Package testutil provides shared test helpers for the harness packages.
//
// All helpers accept [testing.TB]. Functions that halt the test on
// failure use [require] from testify; functions that record failures
// without stopping use [assert]. Every helper calls t.Helper().
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// RequireErrorCode halts the test if err is nil, is not an *sserr.Error,
// or does not carry code. It returns the *sserr.Error for further checks.
//
// Example:
//
//	e := testutil.RequireErrorCode(t, err, sserr.CodeReferenceUnresolved)
//	testutil.RequireDetail(t, e, "reference", ":host:web")
func RequireErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) *sserr.Error {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	ssErr, ok := sserr.AsError(err)
	require.True(t, ok, "expected *sserr.Error, got %T: %v", err, err)
	require.Equal(t, code, ssErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		ssErr.Code, code, ssErr.Message)
	return ssErr
}

// AssertErrorCode records a failure (without halting) if err does not
// carry code. Use it in table-driven tests.
func AssertErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	ssErr, ok := sserr.AsError(err)
	if !assert.True(t, ok, "expected *sserr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, ssErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		ssErr.Code, code, ssErr.Message)
}

// RequireDetail halts the test unless e carries want under key.
func RequireDetail(t testing.TB, e *sserr.Error, key string, want any) {
	t.Helper()
	got, ok := e.Detail(key)
	require.True(t, ok, "error %q has no detail %q", e.Code, key)
	require.Equal(t, want, got, "detail %q", key)
}

// TempFile writes content to name inside t.TempDir() with mode 0600 and
// returns the path.
func TempFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err, "failed to write temp file %s", path)
	return path
}

// MissingFile returns a path inside t.TempDir() that does not exist.
// Settings loaders treat it as "no file", leaving only the environment.
func MissingFile(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// Package errors provides the structured error type used across the
// harness. Every failure the harness itself produces (as opposed to the
// API errors it asserts on) carries a machine-readable [Code] so that test
// output and CI reports can tell a fixture bug from a transport outage.
//
// # Categories
//
//   - Validation: malformed harness input (options, catalogs, graphs)
//   - Reference: unknown kinds, unregistered (kind, name) pairs
//   - Conflict: duplicate registrations, illegal builder transitions
//   - RPC: HTTP/JSON-RPC transport and envelope failures
//   - Fixture: graph construction and teardown failures
//   - Assertion: API outcome or database state differs from expectation
//   - Internal / Unavailable / Timeout: infrastructure trouble
//
// # Usage
//
//	err := errors.Newf(errors.CodeReferenceUnresolved, "reference %q is not registered", tok)
//
//	if errors.IsReference(err) {
//	    // fixture author bug, not an API regression
//	}
package errors

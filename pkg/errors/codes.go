package errors

// Code is a machine-readable error code. Codes follow the pattern
// CATEGORY_NNN where CATEGORY is a short identifier (VAL, REF, RPC, ...)
// and NNN is a three-digit number.
//
// Codes are stable once assigned: test reports and CI dashboards group
// harness failures by code.
type Code string

// Error code categories:
//
//	VAL_xxx     - invalid harness input (bad option, malformed catalog)
//	REF_xxx     - symbolic reference grammar or resolution failures
//	CONF_xxx    - conflicts (duplicate registration, illegal state change)
//	NF_xxx      - lookups that found nothing
//	RPC_xxx     - JSON-RPC transport and protocol failures
//	FIX_xxx     - fixture graph build and teardown failures
//	ASSERT_xxx  - expectation mismatches (API outcome, DB state)
//	INT_xxx     - unexpected internal failures
//	UNAVAIL_xxx - a dependency (API, database, journal sink) is unreachable
//	TIMEOUT_xxx - an operation exceeded its deadline
const (
	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required value is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a value has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeReference indicates a general reference failure.
	CodeReference Code = "REF_001"

	// CodeReferenceUnknownKind indicates a reference names a kind the
	// registry does not know.
	CodeReferenceUnknownKind Code = "REF_002"

	// CodeReferenceUnresolved indicates a well-formed reference whose
	// (kind, name) was never registered.
	CodeReferenceUnresolved Code = "REF_003"

	// CodeConflict indicates a general conflict.
	CodeConflict Code = "CONF_001"

	// CodeConflictAlreadyExists indicates a (kind, name) pair is already
	// registered.
	CodeConflictAlreadyExists Code = "CONF_002"

	// CodeConflictState indicates an illegal state transition.
	CodeConflictState Code = "CONF_003"

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeRPC indicates a general JSON-RPC failure.
	CodeRPC Code = "RPC_001"

	// CodeRPCTransport indicates the HTTP exchange itself failed.
	CodeRPCTransport Code = "RPC_002"

	// CodeRPCProtocol indicates a response that violates the JSON-RPC
	// envelope (undecodable body, id mismatch, neither result nor error).
	CodeRPCProtocol Code = "RPC_003"

	// CodeFixture indicates a general fixture failure.
	CodeFixture Code = "FIX_001"

	// CodeFixtureCreate indicates an entity of the graph could not be created.
	CodeFixtureCreate Code = "FIX_002"

	// CodeFixtureCleanup indicates one or more entities could not be deleted.
	CodeFixtureCleanup Code = "FIX_003"

	// CodeAssertion indicates a general expectation mismatch.
	CodeAssertion Code = "ASSERT_001"

	// CodeAssertionOutcome indicates the API outcome (result/error, error
	// text) differs from the expectation.
	CodeAssertionOutcome Code = "ASSERT_002"

	// CodeAssertionState indicates persisted state changed when it must not.
	CodeAssertionState Code = "ASSERT_003"

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// CodeUnavailable indicates a general unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependency is unreachable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// CodeTimeout indicates a general timeout.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a database operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"

	// CodeTimeoutRPC indicates an API call timed out.
	CodeTimeoutRPC Code = "TIMEOUT_003"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the code (e.g., "REF").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}

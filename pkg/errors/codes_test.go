package errors

import "testing"

func TestCode_Category(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodeValidation, "VAL"},
		{CodeReferenceUnresolved, "REF"},
		{CodeConflictAlreadyExists, "CONF"},
		{CodeRPCTransport, "RPC"},
		{CodeFixtureCleanup, "FIX"},
		{CodeAssertionState, "ASSERT"},
		{CodeTimeoutRPC, "TIMEOUT"},
		{Code("NOUNDERSCORE"), "NOUNDERSCORE"},
		{Code(""), ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Category(); got != tt.want {
				t.Errorf("Category() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCode_Unique(t *testing.T) {
	all := []Code{
		CodeValidation, CodeValidationRequired, CodeValidationFormat,
		CodeReference, CodeReferenceUnknownKind, CodeReferenceUnresolved,
		CodeConflict, CodeConflictAlreadyExists, CodeConflictState,
		CodeNotFound,
		CodeRPC, CodeRPCTransport, CodeRPCProtocol,
		CodeFixture, CodeFixtureCreate, CodeFixtureCleanup,
		CodeAssertion, CodeAssertionOutcome, CodeAssertionState,
		CodeInternal, CodeInternalDatabase, CodeInternalConfiguration,
		CodeUnavailable, CodeUnavailableDependency,
		CodeTimeout, CodeTimeoutDatabase, CodeTimeoutRPC,
	}
	seen := make(map[Code]bool, len(all))
	for _, c := range all {
		if seen[c] {
			t.Errorf("duplicate code %q", c)
		}
		seen[c] = true
	}
}

package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := New(CodeReferenceUnresolved, "unknown reference")
	if got, want := err.Error(), "REF_003: unknown reference"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := Wrap(errors.New("dial tcp: refused"), CodeRPCTransport, "call failed")
	if got, want := wrapped.Error(), "RPC_002: call failed: dial tcp: refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, CodeInternal, "outer")
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestError_WithDetail_DoesNotMutate(t *testing.T) {
	base := New(CodeAssertionState, "tables changed")
	withDetail := base.WithDetail("tables", []string{"connector"})

	if len(base.Details) != 0 {
		t.Errorf("original details mutated: %v", base.Details)
	}
	v, ok := withDetail.Detail("tables")
	if !ok {
		t.Fatal("detail missing")
	}
	if got := v.([]string); len(got) != 1 || got[0] != "connector" {
		t.Errorf("detail = %v", got)
	}
}

func TestError_FormatPlus(t *testing.T) {
	err := Wrap(errors.New("cause"), CodeFixtureCreate, "create failed").
		WithDetail("category", "hosts")
	out := fmt.Sprintf("%+v", err)
	for _, want := range []string{`Code: "FIX_002"`, `Message: "create failed"`, "category:hosts", "Cause: cause"} {
		if !strings.Contains(out, want) {
			t.Errorf("%%+v output %q missing %q", out, want)
		}
	}
	if got := fmt.Sprintf("%v", err); got != err.Error() {
		t.Errorf("%%v = %q, want %q", got, err.Error())
	}
	if got := fmt.Sprintf("%q", err); got != fmt.Sprintf("%q", err.Error()) {
		t.Errorf("%%q = %s", got)
	}
}

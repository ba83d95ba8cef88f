package errors

import (
	"errors"
	"testing"
)

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, CodeInternal, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, CodeInternal, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestUnresolved(t *testing.T) {
	err := Unresolved(":user:ghost")
	if err.Code != CodeReferenceUnresolved {
		t.Errorf("code = %q", err.Code)
	}
	if err.Message != `unknown reference ":user:ghost"` {
		t.Errorf("message = %q", err.Message)
	}
	if v, _ := err.Detail("reference"); v != ":user:ghost" {
		t.Errorf("reference detail = %v", v)
	}
}

func TestAssertionf_ForcesAssertCategory(t *testing.T) {
	if got := Assertionf(CodeInternal, "x").Code; got != CodeAssertion {
		t.Errorf("code = %q, want %q", got, CodeAssertion)
	}
	if got := Assertionf(CodeAssertionState, "x").Code; got != CodeAssertionState {
		t.Errorf("code = %q, want %q", got, CodeAssertionState)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Error("FromError(nil) should be nil")
	}
	platform := New(CodeConflict, "dup")
	if FromError(platform) != platform {
		t.Error("FromError should return *Error unchanged")
	}
	std := errors.New("plain")
	got := FromError(std)
	if got.Code != CodeInternal || !errors.Is(got, std) {
		t.Errorf("FromError(std) = %+v", got)
	}
}

package errors

import (
	"errors"
)

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries exactly code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

func hasCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}

// IsValidation reports whether err is a VAL_xxx error.
func IsValidation(err error) bool { return hasCategory(err, "VAL") }

// IsReference reports whether err is a REF_xxx error. Reference errors
// point at the fixture author, never at the API under test.
func IsReference(err error) bool { return hasCategory(err, "REF") }

// IsConflict reports whether err is a CONF_xxx error.
func IsConflict(err error) bool { return hasCategory(err, "CONF") }

// IsNotFound reports whether err is a NF_xxx error.
func IsNotFound(err error) bool { return hasCategory(err, "NF") }

// IsRPC reports whether err is a RPC_xxx error.
func IsRPC(err error) bool { return hasCategory(err, "RPC") }

// IsFixture reports whether err is a FIX_xxx error.
func IsFixture(err error) bool { return hasCategory(err, "FIX") }

// IsAssertion reports whether err is an ASSERT_xxx error.
func IsAssertion(err error) bool { return hasCategory(err, "ASSERT") }

// IsInternal reports whether err is an INT_xxx error.
func IsInternal(err error) bool { return hasCategory(err, "INT") }

// IsUnavailable reports whether err is an UNAVAIL_xxx error.
func IsUnavailable(err error) bool { return hasCategory(err, "UNAVAIL") }

// IsTimeout reports whether err is a TIMEOUT_xxx error.
func IsTimeout(err error) bool { return hasCategory(err, "TIMEOUT") }

// IsRetryable reports whether the failure is infrastructural (timeouts,
// unavailable dependencies). The harness itself never retries; this is
// for callers deciding whether to rerun a suite.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "TIMEOUT", "UNAVAIL":
		return true
	default:
		return false
	}
}

// IsAuthorError reports whether err was caused by the test author
// (validation, reference or conflict errors) rather than by the system
// under test or the infrastructure.
func IsAuthorError(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "VAL", "REF", "CONF":
		return true
	default:
		return false
	}
}

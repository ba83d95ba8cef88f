package errors

import (
	"errors"
	"fmt"
)

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with the given code and formatted message.
//
// Example:
//
//	err := errors.Newf(errors.CodeConflictAlreadyExists, "%s %q is already registered", kind, name)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf wraps err with a code and formatted message. Returns nil if err
// is nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Unresolved creates the error returned when a reference token cannot be
// resolved. The token is kept in the details under "reference".
func Unresolved(token string) *Error {
	return Newf(CodeReferenceUnresolved, "unknown reference %q", token).
		WithDetail("reference", token)
}

// Conflictf creates a conflict error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return Newf(CodeConflict, format, args...)
}

// Assertionf creates an assertion error with a formatted message.
func Assertionf(code Code, format string, args ...any) *Error {
	if code.Category() != "ASSERT" {
		code = CodeAssertion
	}
	return Newf(code, format, args...)
}

// FromError converts err to an *Error. An *Error anywhere in the chain is
// returned as-is; other errors are wrapped as internal errors.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}

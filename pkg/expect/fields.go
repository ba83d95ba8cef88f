package expect

import (
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Fields is the serialized form of an expectation in catalogs:
//
//	expected_error: 'Invalid parameter "/1/name": cannot be empty.'
//	expected_error: true
//	expected_error_contains: 'cannot parse'
//
// Neither key, or expected_error null or false, means success.
type Fields struct {
	ExpectedError         any    `yaml:"expected_error,omitempty" json:"expected_error,omitempty"`
	ExpectedErrorContains string `yaml:"expected_error_contains,omitempty" json:"expected_error_contains,omitempty"`
}

// Expectation converts f. Both keys set, an empty message or a value that
// is neither string nor bool is a VAL_003 error.
func (f Fields) Expectation() (Expectation, error) {
	if f.ExpectedErrorContains != "" {
		if f.ExpectedError != nil && f.ExpectedError != false {
			return Expectation{}, sserr.New(sserr.CodeValidationFormat,
				"expect: expected_error and expected_error_contains are mutually exclusive")
		}
		return ErrorContains(f.ExpectedErrorContains), nil
	}

	switch v := f.ExpectedError.(type) {
	case nil:
		return Success(), nil
	case bool:
		if v {
			return AnyError(), nil
		}
		return Success(), nil
	case string:
		if v == "" {
			return Expectation{}, sserr.New(sserr.CodeValidationFormat,
				"expect: expected_error must not be empty; omit it to expect success")
		}
		return Error(v), nil
	default:
		return Expectation{}, sserr.Newf(sserr.CodeValidationFormat,
			"expect: expected_error must be a string or true, got %T", v)
	}
}

// FieldsOf returns the serialized form of e.
func FieldsOf(e Expectation) Fields {
	switch e.Mode {
	case ModeError:
		return Fields{ExpectedError: e.Message}
	case ModeErrorContains:
		return Fields{ExpectedErrorContains: e.Message}
	case ModeAnyError:
		return Fields{ExpectedError: true}
	default:
		return Fields{}
	}
}

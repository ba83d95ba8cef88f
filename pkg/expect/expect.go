// Package expect describes what a test expects an API call to return and
// checks responses against it.
//
// There are four modes. Success requires a result and no error. Error
// requires an error whose data equals the message exactly. ErrorContains
// is the explicit substring mode, reserved for messages that embed
// parser output. AnyError accepts any error; catalogs write it as
// `expected_error: true`.
package expect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/jsonrpc"
)

// NotFoundMessage is the uniform message of referential errors: the API
// does not distinguish a missing object from a forbidden one.
const NotFoundMessage = "No permissions to referred object or it does not exist!"

// IsNotFoundMessage reports whether an error data string is the
// referential not-found message.
func IsNotFoundMessage(data string) bool {
	return strings.Contains(data, NotFoundMessage)
}

// Mode selects how a response is checked.
type Mode int

const (
	ModeSuccess Mode = iota
	ModeError
	ModeErrorContains
	ModeAnyError
)

func (m Mode) String() string {
	switch m {
	case ModeSuccess:
		return "success"
	case ModeError:
		return "error"
	case ModeErrorContains:
		return "error_contains"
	case ModeAnyError:
		return "any_error"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Expectation is the expected outcome of one call. The zero value expects
// success.
type Expectation struct {
	Mode    Mode
	Message string
}

// Success expects a result.
func Success() Expectation { return Expectation{Mode: ModeSuccess} }

// Error expects error data equal to msg.
func Error(msg string) Expectation { return Expectation{Mode: ModeError, Message: msg} }

// ErrorContains expects error data containing sub.
func ErrorContains(sub string) Expectation {
	return Expectation{Mode: ModeErrorContains, Message: sub}
}

// AnyError expects an error with any data.
func AnyError() Expectation { return Expectation{Mode: ModeAnyError} }

// ExpectsError reports whether the call is expected to fail.
func (e Expectation) ExpectsError() bool { return e.Mode != ModeSuccess }

func (e Expectation) String() string {
	switch e.Mode {
	case ModeError:
		return fmt.Sprintf("error %q", e.Message)
	case ModeErrorContains:
		return fmt.Sprintf("error containing %q", e.Message)
	default:
		return e.Mode.String()
	}
}

// Verify checks resp. Mismatches are ASSERT_002 errors carrying the
// literal expected and actual strings under "expected" and "actual".
func (e Expectation) Verify(resp *jsonrpc.Response) error {
	if resp == nil {
		return sserr.Assertionf(sserr.CodeAssertionOutcome, "expected %s, got no response", e)
	}
	if e.Mode == ModeSuccess {
		if resp.Error != nil {
			return mismatch(fmt.Sprintf("expected success, got error %q", resp.Error.Data), "success", resp.Error.Data)
		}
		if !resp.HasResult() {
			return mismatch("expected a result member, got none", "success", "")
		}
		return nil
	}

	if resp.Error == nil {
		got := truncate(string(resp.Result))
		return mismatch(fmt.Sprintf("expected %s, got result %s", e, got), e.Message, got)
	}
	data := resp.Error.Data
	switch e.Mode {
	case ModeError:
		if data != e.Message {
			return mismatch(fmt.Sprintf("expected error %q, got %q", e.Message, data), e.Message, data)
		}
	case ModeErrorContains:
		if !strings.Contains(data, e.Message) {
			return mismatch(fmt.Sprintf("expected error containing %q, got %q", e.Message, data), e.Message, data)
		}
	case ModeAnyError:
	default:
		return sserr.Newf(sserr.CodeValidation, "expect: unknown mode %d", int(e.Mode))
	}
	return nil
}

func mismatch(msg, expected, actual string) *sserr.Error {
	return sserr.New(sserr.CodeAssertionOutcome, msg).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// MatchResult compares the decoded result of resp with want. want is
// normalized through JSON first, so Go structs and literal maps compare
// equal to the wire form. The error carries a cmp diff.
func MatchResult(resp *jsonrpc.Response, want any) error {
	got, err := resp.Value()
	if err != nil {
		return err
	}
	norm, err := normalize(want)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeValidation, "expect: cannot encode expected result")
	}
	if diff := cmp.Diff(norm, got); diff != "" {
		return sserr.Assertionf(sserr.CodeAssertionOutcome, "result mismatch (-want +got):\n%s", diff).
			WithDetail("diff", diff)
	}
	return nil
}

func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func truncate(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

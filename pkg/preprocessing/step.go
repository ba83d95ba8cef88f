// Package preprocessing models item preprocessing steps and the rules the
// API applies to "check for not supported value" steps: each (type,
// params) combination may appear once per item, and stored steps are
// returned with the not-supported checks first, the match-any check last
// among them.
//
// The fake API enforces these rules and the item catalogs use them to
// compute expected results.
package preprocessing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Type is a preprocessing step type.
type Type int

const (
	TypeMultiplier       Type = 1
	TypeRTrim            Type = 2
	TypeLTrim            Type = 3
	TypeTrim             Type = 4
	TypeRegex            Type = 5
	TypeJSONPath         Type = 12
	TypeDiscardUnchanged Type = 19
	TypeNotSupported     Type = 26
)

// MatchMode selects which errors a not-supported check reacts to. It is
// the first line of the step params.
type MatchMode int

const (
	MatchAny      MatchMode = 0
	MatchRegex    MatchMode = 1
	MatchNotRegex MatchMode = 2
)

// Error handlers.
const (
	ErrorHandlerDefault  = 0
	ErrorHandlerDiscard  = 1
	ErrorHandlerSetValue = 2
	ErrorHandlerSetError = 3
)

// Step is one preprocessing step as sent to and returned by the API.
// Numeric members are encoded as numbers and accepted as numbers or
// numeric strings.
type Step struct {
	Type               Type   `json:"type" yaml:"type"`
	Params             string `json:"params" yaml:"params"`
	ErrorHandler       int    `json:"error_handler" yaml:"error_handler"`
	ErrorHandlerParams string `json:"error_handler_params" yaml:"error_handler_params"`
}

// NotSupported returns a not-supported check with the given mode. The
// pattern is ignored for [MatchAny].
func NotSupported(mode MatchMode, pattern string) Step {
	params := strconv.Itoa(int(mode))
	if mode != MatchAny {
		params += "\n" + pattern
	}
	return Step{Type: TypeNotSupported, Params: params, ErrorHandler: ErrorHandlerDiscard}
}

// Trim returns a trim step removing chars.
func Trim(chars string) Step {
	return Step{Type: TypeTrim, Params: chars}
}

// Mode returns the match mode and pattern of a not-supported check. ok is
// false for other step types and unparsable params.
func (s Step) Mode() (mode MatchMode, pattern string, ok bool) {
	if s.Type != TypeNotSupported {
		return 0, "", false
	}
	head, rest, _ := strings.Cut(s.Params, "\n")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, "", false
	}
	switch m := MatchMode(n); m {
	case MatchAny, MatchRegex, MatchNotRegex:
		return m, rest, true
	default:
		return 0, "", false
	}
}

// UnmarshalJSON accepts the numeric members as numbers or strings, as the
// API returns them as strings.
func (s *Step) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type               json.RawMessage `json:"type"`
		Params             string          `json:"params"`
		ErrorHandler       json.RawMessage `json:"error_handler"`
		ErrorHandlerParams string          `json:"error_handler_params"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	typ, err := flexInt(raw.Type)
	if err != nil {
		return fmt.Errorf("preprocessing: type: %w", err)
	}
	handler, err := flexInt(raw.ErrorHandler)
	if err != nil {
		return fmt.Errorf("preprocessing: error_handler: %w", err)
	}
	*s = Step{
		Type:               Type(typ),
		Params:             raw.Params,
		ErrorHandler:       handler,
		ErrorHandlerParams: raw.ErrorHandlerParams,
	}
	return nil
}

func flexInt(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.Atoi(s)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// DuplicateMessage is the API error for a repeated not-supported check.
// index is the 1-based position of the repeated step.
func DuplicateMessage(index int, s Step) string {
	return fmt.Sprintf(`Invalid parameter "/1/preprocessing/%d": value (type, params)=(%d, %s) already exists.`,
		index, s.Type, s.Params)
}

// Validate rejects a second not-supported check with the same params. Checks
// with different match modes or patterns are independent. The returned
// error is a [sserr.CodeValidationFormat] error whose message is the API's
// error text (see [DuplicateMessage]).
func Validate(steps []Step) error {
	seen := make(map[string]bool)
	for i, s := range steps {
		if s.Type != TypeNotSupported {
			continue
		}
		if seen[s.Params] {
			return sserr.New(sserr.CodeValidationFormat, DuplicateMessage(i+1, s)).
				WithDetail("index", i+1)
		}
		seen[s.Params] = true
	}
	return nil
}

// Sort returns steps in the order the API stores them: not-supported
// checks with a specific mode in their given order, then match-any
// checks, then every other step in its given order. steps is not
// modified.
func Sort(steps []Step) []Step {
	var specific, matchAny, rest []Step
	for _, s := range steps {
		mode, _, ok := s.Mode()
		switch {
		case s.Type != TypeNotSupported:
			rest = append(rest, s)
		case ok && mode == MatchAny:
			matchAny = append(matchAny, s)
		default:
			specific = append(specific, s)
		}
	}
	out := make([]Step, 0, len(steps))
	out = append(out, specific...)
	out = append(out, matchAny...)
	return append(out, rest...)
}

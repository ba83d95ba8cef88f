package preprocessing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

func TestNotSupported_Params(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0", NotSupported(MatchAny, "ignored").Params)
	assert.Equal(t, "1\nabc", NotSupported(MatchRegex, "abc").Params)
	assert.Equal(t, "2\nabc", NotSupported(MatchNotRegex, "abc").Params)
}

func TestStep_Mode(t *testing.T) {
	t.Parallel()
	mode, pattern, ok := NotSupported(MatchNotRegex, "a\nb").Mode()
	require.True(t, ok)
	assert.Equal(t, MatchNotRegex, mode)
	assert.Equal(t, "a\nb", pattern)

	_, _, ok = Trim(" ").Mode()
	assert.False(t, ok)
	_, _, ok = Step{Type: TypeNotSupported, Params: "7\nx"}.Mode()
	assert.False(t, ok)
}

func TestStep_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	var steps []Step
	doc := `[{"type":"26","params":"1\nabc","error_handler":"1","error_handler_params":""},
	         {"type":4,"params":" ","error_handler":0}]`
	require.NoError(t, json.Unmarshal([]byte(doc), &steps))
	assert.Equal(t, []Step{
		{Type: TypeNotSupported, Params: "1\nabc", ErrorHandler: ErrorHandlerDiscard},
		{Type: TypeTrim, Params: " "},
	}, steps)

	var s Step
	assert.Error(t, json.Unmarshal([]byte(`{"type":"x"}`), &s))
}

// ===========================================================================
// Validate Tests
// ===========================================================================

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		steps   []Step
		wantMsg string
	}{
		{
			name:  "regex and not-regex on the same pattern",
			steps: []Step{NotSupported(MatchRegex, "abc"), NotSupported(MatchNotRegex, "abc")},
		},
		{
			name:  "all three modes",
			steps: []Step{NotSupported(MatchAny, ""), NotSupported(MatchRegex, "abc"), NotSupported(MatchNotRegex, "abc"), Trim(" ")},
		},
		{
			name:  "repeated non-check steps",
			steps: []Step{Trim(" "), Trim(" ")},
		},
		{
			name:    "match-any twice",
			steps:   []Step{NotSupported(MatchAny, ""), NotSupported(MatchAny, "")},
			wantMsg: `Invalid parameter "/1/preprocessing/2": value (type, params)=(26, 0) already exists.`,
		},
		{
			name:    "regex twice",
			steps:   []Step{Trim(" "), NotSupported(MatchRegex, "abc"), NotSupported(MatchAny, ""), NotSupported(MatchRegex, "abc")},
			wantMsg: "Invalid parameter \"/1/preprocessing/4\": value (type, params)=(26, 1\nabc) already exists.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.steps)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			se, ok := sserr.AsError(err)
			require.True(t, ok)
			assert.Equal(t, sserr.CodeValidationFormat, se.Code)
			assert.Equal(t, tt.wantMsg, se.Message)
		})
	}
}

// ===========================================================================
// Sort Tests
// ===========================================================================

func TestSort(t *testing.T) {
	t.Parallel()
	in := []Step{
		Trim(" "),
		NotSupported(MatchAny, ""),
		NotSupported(MatchRegex, "abc"),
		NotSupported(MatchNotRegex, "abc"),
	}
	got := Sort(in)
	assert.Equal(t, []Step{
		NotSupported(MatchRegex, "abc"),
		NotSupported(MatchNotRegex, "abc"),
		NotSupported(MatchAny, ""),
		Trim(" "),
	}, got)
	assert.Equal(t, Trim(" "), in[0], "input must not be reordered")
}

func TestSort_KeepsOtherStepsInOrder(t *testing.T) {
	t.Parallel()
	in := []Step{
		{Type: TypeMultiplier, Params: "10"},
		NotSupported(MatchNotRegex, "x"),
		Trim(" "),
		NotSupported(MatchRegex, "y"),
	}
	assert.Equal(t, []Step{in[1], in[3], in[0], in[2]}, Sort(in))
	assert.Empty(t, Sort(nil))
}

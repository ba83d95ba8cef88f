package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Version is the protocol version sent with every request.
const Version = "2.0"

// Request is a JSON-RPC request envelope.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

// Error is the error object of a failed call. Data carries the
// human-readable message that tests pin.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s %s", e.Code, e.Message, e.Data)
}

// UnmarshalJSON accepts a non-string data member and keeps its JSON text.
func (e *Error) UnmarshalJSON(b []byte) error {
	var raw struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Code, e.Message, e.Data = raw.Code, raw.Message, ""
	if len(raw.Data) == 0 || bytes.Equal(raw.Data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Data, &s); err == nil {
		e.Data = s
		return nil
	}
	e.Data = string(raw.Data)
	return nil
}

// Response is a JSON-RPC response envelope. Exactly one of Result and
// Error is set in a well-formed response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// HasResult reports whether the response carries a result member.
func (r *Response) HasResult() bool {
	return len(r.Result) > 0
}

// Failed reports whether the response carries an error member.
func (r *Response) Failed() bool {
	return r.Error != nil
}

// ErrorData returns error.data, or "" for a successful response.
func (r *Response) ErrorData() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Data
}

// Decode unmarshals the result into v.
func (r *Response) Decode(v any) error {
	if !r.HasResult() {
		return sserr.New(sserr.CodeRPCProtocol, "jsonrpc: response has no result")
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return sserr.Wrap(err, sserr.CodeRPCProtocol, "jsonrpc: cannot decode result")
	}
	return nil
}

// Value decodes the result into generic form (maps, slices, json.Number,
// strings, bools, nil).
func (r *Response) Value() (any, error) {
	if !r.HasResult() {
		return nil, sserr.New(sserr.CodeRPCProtocol, "jsonrpc: response has no result")
	}
	dec := json.NewDecoder(bytes.NewReader(r.Result))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeRPCProtocol, "jsonrpc: cannot decode result")
	}
	return v, nil
}

// IDs returns result[field] of a create/update/delete response as strings,
// for example the "hostids" of host.create. Numeric ids are formatted.
func (r *Response) IDs(field string) ([]string, error) {
	var res map[string]json.RawMessage
	if err := r.Decode(&res); err != nil {
		return nil, err
	}
	raw, ok := res[field]
	if !ok {
		return nil, sserr.Newf(sserr.CodeRPCProtocol, "jsonrpc: result has no %q member", field)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeRPCProtocol, "jsonrpc: result %q is not a list", field)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			ids = append(ids, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return nil, sserr.Wrapf(err, sserr.CodeRPCProtocol, "jsonrpc: result %q holds a non-id value", field)
		}
		ids = append(ids, n.String())
	}
	return ids, nil
}

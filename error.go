package jrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
)

// Pre-defined error codes. The codes from and including -32768 to -32000 are reserved.
const (
	ParseError       = -32700 // Parse error. Invalid JSON was received by the server.
	InvalidRequest   = -32600 // Invalid Request. The JSON sent is not a valid Request object.
	MethodNotFound   = -32601 // Method not found. The method does not exist / is not available.
	InvalidParams    = -32602 // Invalid params. Invalid method parameter(s).
	InternalError    = -32603 // Internal error. Internal JSON-RPC error.
	ServerOverloaded = -32000 // Server error. The server refused the call because of its rate limit.
)

var (
	ErrParse          = errors.New("failed to parse JSON-RPC message")
	ErrInvalidRequest = errors.New("invalid JSON-RPC request")
	ErrEmptyRequest   = errors.New("empty JSON-RPC request")
	ErrInternalError  = errors.New("internal error")

	// ErrMalformedResponse is wrapped by every decoding failure of a response document.
	ErrMalformedResponse = errors.New("malformed JSON-RPC response")
	ErrMissingField      = errors.New("missing required field")
	ErrNoData            = errors.New("JSON-RPC error does not carry any data")
)

// Error is a JSON-RPC error object. It is a value: build it with [NewError] or one of the well-known constructors
// and derive variants with [Error.WithData], the receiver is never modified.
//
// Error implements the error interface, so method handlers can return it to choose the code sent to the client.
type Error struct {
	code    int
	message string
	data    json.RawMessage // nil when absent.
}

type errorWire struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewError returns an error object without data. The code is not validated.
func NewError(code int, message string) Error {
	return Error{code: code, message: message}
}

// NewParseError returns the well-known parse error.
func NewParseError() Error {
	return NewError(ParseError, "Parse error")
}

// NewInvalidRequestError returns the well-known invalid request error.
func NewInvalidRequestError() Error {
	return NewError(InvalidRequest, "Invalid Request")
}

// NewMethodNotFoundError returns the well-known method not found error.
func NewMethodNotFoundError() Error {
	return NewError(MethodNotFound, "Method not found")
}

// NewInvalidParamsError returns the well-known invalid params error.
func NewInvalidParamsError() Error {
	return NewError(InvalidParams, "Invalid params")
}

// NewInternalError returns the well-known internal error.
func NewInternalError() Error {
	return NewError(InternalError, "Internal error")
}

// NewServerOverloadedError returns the error sent when a call is rejected by the rate limit.
func NewServerOverloadedError() Error {
	return NewError(ServerOverloaded, "Server overloaded")
}

// WithData returns a copy of e carrying v as data. A nil v, or one that marshals to null, returns e without data.
func (e Error) WithData(v any) (Error, error) {
	if v == nil {
		e.data = nil

		return e, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return e, fmt.Errorf("failed to marshal error data: %w", err)
	}

	return e.WithRawData(raw)
}

// WithRawData is like [Error.WithData] for an already encoded value. raw is copied.
func (e Error) WithRawData(raw json.RawMessage) (Error, error) {
	if len(bytes.TrimSpace(raw)) == 0 || jsonutil.IsNull(raw) {
		e.data = nil

		return e, nil
	}

	if !json.Valid(raw) {
		return e, errors.New("error data is not valid JSON")
	}

	e.data = bytes.Clone(raw)

	return e, nil
}

// Code returns the error code.
func (e Error) Code() int {
	return e.code
}

// Message returns the short description of the error.
func (e Error) Message() string {
	return e.message
}

// Data returns a copy of the encoded data, ok is false if the error has no data.
func (e Error) Data() (raw json.RawMessage, ok bool) {
	if e.data == nil {
		return nil, false
	}

	return bytes.Clone(e.data), true
}

// DecodeData unmarshals the data of e into v. Returns [ErrNoData] if e has no data.
func (e Error) DecodeData(v any) error {
	if e.data == nil {
		return ErrNoData
	}

	return json.Unmarshal(e.data, v)
}

// Equal reports whether e and other have the same code, message and data. Data is compared as a JSON value.
func (e Error) Equal(other Error) bool {
	if e.code != other.code || e.message != other.message {
		return false
	}

	if e.data == nil || other.data == nil {
		return e.data == nil && other.data == nil
	}

	return jsonutil.Equal(e.data, other.data)
}

// Error implements the error interface.
func (e Error) Error() string {
	return fmt.Sprintf("jrpc: code = %d desc = %s", e.code, e.message)
}

// MarshalJSON implements the json.Marshaler interface. The data member is omitted when absent.
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(errorWire{Code: e.code, Message: e.message, Data: e.data})
}

// UnmarshalJSON implements the json.Unmarshaler interface. Fails if code or message is missing, if code is not an
// integer, or if the object has a member other than code, message and data.
func (e *Error) UnmarshalJSON(b []byte) error {
	fields, err := jsonutil.Fields(b, "code", "message", "data")
	if err != nil {
		return fmt.Errorf("error object: %w: %w", ErrMalformedResponse, err)
	}

	var out Error

	rawCode, ok := fields["code"]
	if !ok || jsonutil.IsNull(rawCode) {
		return fmt.Errorf("error object: code: %w: %w", ErrMalformedResponse, ErrMissingField)
	}

	if err := json.Unmarshal(rawCode, &out.code); err != nil {
		return fmt.Errorf("error object: code must be an integer: %w: %w", ErrMalformedResponse, err)
	}

	rawMessage, ok := fields["message"]
	if !ok || jsonutil.IsNull(rawMessage) {
		return fmt.Errorf("error object: message: %w: %w", ErrMalformedResponse, ErrMissingField)
	}

	if err := json.Unmarshal(rawMessage, &out.message); err != nil {
		return fmt.Errorf("error object: message must be a string: %w: %w", ErrMalformedResponse, err)
	}

	if rawData, ok := fields["data"]; ok && !jsonutil.IsNull(rawData) {
		out.data = bytes.Clone(rawData)
	}

	*e = out

	return nil
}

// asError finds the first [Error] in err's tree.
func asError(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}

	return Error{}, false
}

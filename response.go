package jrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
)

// Version is the value of the "jsonrpc" member of every message.
const Version = "2.0"

// Response is a JSON-RPC response object: the version tag, the identifier of the request it answers and the
// [Outcome] of the call, flattened into the same object:
//
//	{"jsonrpc":"2.0","id":7,"result":42}
//	{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}
//
// The constructors always set the identifier, even when it is [NullID], which is sent as null. Only
// [Response.WithoutID] removes the "id" member from the output.
type Response struct {
	id      ID
	hasID   bool
	outcome Outcome
}

// NewResponse returns the response carrying outcome for the request identified by id.
func NewResponse(id ID, outcome Outcome) Response {
	return Response{id: id, hasID: true, outcome: outcome}
}

// InvalidRequestResponse returns an invalid request error response. It is used when the request could not be parsed
// far enough to determine a method or a valid identifier, in which case id should be [NullID].
func InvalidRequestResponse(id ID) Response {
	return NewResponse(id, Failure(NewInvalidRequestError()))
}

// ResponseFromError returns the error response carrying e for the request identified by id.
func ResponseFromError(e Error, id ID) Response {
	return Response{id: id, hasID: true, outcome: Failure(e)}
}

// WithoutID returns a copy of r without identifier. The "id" member is then omitted from the output.
func (r Response) WithoutID() Response {
	r.id = NullID
	r.hasID = false

	return r
}

// ID returns the identifier of r, ok is false if r has no identifier. An identifier set to [NullID] is reported
// with ok true.
func (r Response) ID() (id ID, ok bool) {
	return r.id, r.hasID
}

// Outcome returns the outcome of the call.
func (r Response) Outcome() Outcome {
	return r.outcome
}

// Equal reports whether r and other have the same identifier, or both have none, and equal outcomes.
func (r Response) Equal(other Response) bool {
	return r.hasID == other.hasID && r.id == other.id && r.outcome.Equal(other.outcome)
}

// MarshalJSON implements the json.Marshaler interface. Members are written in the order jsonrpc, id, result|error.
func (r Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`{"jsonrpc":"` + Version + `"`)

	if r.hasID {
		id, err := r.id.MarshalJSON()
		if err != nil {
			return nil, err
		}

		buf.WriteString(`,"id":`)
		buf.Write(id)
	}

	buf.WriteByte(',')

	if err := r.outcome.appendMember(&buf); err != nil {
		return nil, fmt.Errorf("response %v: %w", r.id, err)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface. The document is rejected if it has a member outside
// jsonrpc, id, result and error, if jsonrpc is not "2.0", or if it has both or neither of result and error.
// Errors wrap [ErrMalformedResponse].
func (r *Response) UnmarshalJSON(b []byte) error {
	fields, err := jsonutil.Fields(b, "jsonrpc", "id", "result", "error")
	if err != nil {
		return fmt.Errorf("response: %w: %w", ErrMalformedResponse, err)
	}

	rawVersion, ok := fields["jsonrpc"]
	if !ok {
		return fmt.Errorf("response: jsonrpc: %w: %w", ErrMalformedResponse, ErrMissingField)
	}

	var version string
	if err := json.Unmarshal(rawVersion, &version); err != nil || version != Version {
		return fmt.Errorf("response: jsonrpc must be %q, got %s: %w", Version, rawVersion, ErrMalformedResponse)
	}

	var out Response

	if rawID, ok := fields["id"]; ok {
		if err := json.Unmarshal(rawID, &out.id); err != nil {
			return fmt.Errorf("response: %w: %w", ErrMalformedResponse, err)
		}

		out.hasID = true
	}

	out.outcome, err = outcomeFromFields(fields)
	if err != nil {
		return fmt.Errorf("response %v: %w", out.id, err)
	}

	*r = out

	return nil
}

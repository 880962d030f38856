package jrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
)

// Request represents a JSON-RPC request.
type Request struct {
	JSONRPC string          // Must be "2.0".
	Method  string          // The method to be invoked.
	Params  json.RawMessage // The parameters to use, may be nil, must be an array or object.

	// The request identifier, echoed in the response. If nil the request is a notification and gets no response,
	// a request with "id": null has ID set to NullID.
	ID *ID
}

type requestWire struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *ID             `json:"id,omitempty"`
}

// IsNotification reports whether r expects no response.
func (r Request) IsNotification() bool {
	return r.ID == nil
}

// MarshalJSON implements the json.Marshaler interface. The id member is omitted for notifications.
func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestWire{JSONRPC: r.JSONRPC, Method: r.Method, Params: r.Params, ID: r.ID})
}

// UnmarshalJSON implements the json.Unmarshaler interface. Members outside jsonrpc, method, params and id are
// rejected, as are ids that are not a number, a string or null. Errors wrap [ErrInvalidRequest].
func (r *Request) UnmarshalJSON(b []byte) error {
	fields, err := jsonutil.Fields(b, "jsonrpc", "method", "params", "id")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var out Request

	if raw, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &out.JSONRPC); err != nil {
			return fmt.Errorf("jsonrpc must be a string: %w: %w", ErrInvalidRequest, err)
		}
	}

	if raw, ok := fields["method"]; ok {
		if err := json.Unmarshal(raw, &out.Method); err != nil {
			return fmt.Errorf("method must be a string: %w: %w", ErrInvalidRequest, err)
		}
	}

	if raw, ok := fields["params"]; ok && !jsonutil.IsNull(raw) {
		out.Params = bytes.Clone(raw)
	}

	if raw, ok := fields["id"]; ok {
		out.ID = new(ID)
		if err := json.Unmarshal(raw, out.ID); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	*r = out

	return nil
}

// validateRequest validates a request. Returns an ErrInvalidRequest error if the request is invalid.
// Don't check for the method existence, it's the responsibility of the caller.
// Only allow JSON-RPC 2.0 messages.
func validateRequest(req *Request) error {
	if req.JSONRPC != Version {
		return fmt.Errorf("only JSON-RPC %q is supported, got %q: %w", Version, req.JSONRPC, ErrInvalidRequest)
	}

	if req.Method == "" {
		return fmt.Errorf("method is empty: %w", ErrInvalidRequest)
	}

	if req.Params != nil {
		if c := jsonutil.FirstByte(req.Params); c != '[' && c != '{' {
			return fmt.Errorf("params must be an array or an object: %w", ErrInvalidRequest)
		}
	}

	return nil
}

// recoverID returns the identifier of a request that failed to decode, if it has a usable one. Otherwise it
// returns NullID, which is what invalid requests are answered with. Only the exact "id" member counts, and a
// repeated one is ambiguous.
func recoverID(raw []byte) ID {
	rawID, ok, err := jsonutil.Member(raw, "id")
	if err != nil || !ok {
		return NullID
	}

	var id ID
	if err := json.Unmarshal(rawID, &id); err != nil {
		return NullID
	}

	return id
}

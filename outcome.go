package jrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
)

// ErrEmptyOutcome is returned when marshaling an [Outcome] that is neither a success nor a failure.
var ErrEmptyOutcome = errors.New("outcome is neither a result nor an error")

type outcomeKind uint8

const (
	outcomeUnset outcomeKind = iota
	outcomeSuccess
	outcomeFailure
)

// Outcome is the result of one call: either a success payload or an [Error], never both. Build it with [Success]
// or [Failure]; the zero value is neither and can't be marshaled.
//
// On the wire an outcome is a single member, "result" or "error", flattened into the response object.
type Outcome struct {
	kind   outcomeKind
	result any
	err    Error
}

// Success returns a successful outcome. result may be any JSON-serializable value, including nil which is sent as
// null. result must not be modified after the call.
func Success(result any) Outcome {
	return Outcome{kind: outcomeSuccess, result: result}
}

// Failure returns a failed outcome.
func Failure(e Error) Outcome {
	return Outcome{kind: outcomeFailure, err: e}
}

// IsSuccess reports whether o is a successful outcome.
func (o Outcome) IsSuccess() bool {
	return o.kind == outcomeSuccess
}

// Result returns the success payload, ok is false if o is not a success. Decoded outcomes hold a json.RawMessage,
// which is returned as a copy. Any other payload is the value given to [Success] and is shared with o, callers must
// not modify it.
func (o Outcome) Result() (result any, ok bool) {
	if o.kind != outcomeSuccess {
		return nil, false
	}

	if raw, isRaw := o.result.(json.RawMessage); isRaw {
		return bytes.Clone(raw), true
	}

	return o.result, true
}

// DecodeResult unmarshals the success payload into v. Fails with the outcome's [Error] if o is a failure.
func (o Outcome) DecodeResult(v any) error {
	switch o.kind {
	case outcomeFailure:
		return o.err
	case outcomeUnset:
		return ErrEmptyOutcome
	}

	raw, err := o.encodeResult()
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, v)
}

// Err returns the error of a failed outcome, ok is false if o is not a failure.
func (o Outcome) Err() (e Error, ok bool) {
	if o.kind != outcomeFailure {
		return Error{}, false
	}

	return o.err, true
}

// Equal reports whether o and other are the same variant with equal payloads. A success is never equal to a
// failure. Success payloads are compared as JSON values.
func (o Outcome) Equal(other Outcome) bool {
	if o.kind != other.kind {
		return false
	}

	switch o.kind {
	case outcomeSuccess:
		a, err := o.encodeResult()
		if err != nil {
			return false
		}

		b, err := other.encodeResult()
		if err != nil {
			return false
		}

		return jsonutil.Equal(a, b)
	case outcomeFailure:
		return o.err.Equal(other.err)
	default:
		return true
	}
}

// MarshalJSON implements the json.Marshaler interface. The standalone form is {"result":...} or {"error":...}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	if err := o.appendMember(&buf); err != nil {
		return nil, err
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface. The object must have exactly one of "result" and
// "error" and nothing else.
func (o *Outcome) UnmarshalJSON(b []byte) error {
	fields, err := jsonutil.Fields(b, "result", "error")
	if err != nil {
		return fmt.Errorf("outcome: %w: %w", ErrMalformedResponse, err)
	}

	out, err := outcomeFromFields(fields)
	if err != nil {
		return err
	}

	*o = out

	return nil
}

// appendMember writes the "result" or "error" member of o to buf, without braces or separators.
func (o Outcome) appendMember(buf *bytes.Buffer) error {
	switch o.kind {
	case outcomeSuccess:
		raw, err := o.encodeResult()
		if err != nil {
			return err
		}

		buf.WriteString(`"result":`)
		buf.Write(raw)
	case outcomeFailure:
		raw, err := o.err.MarshalJSON()
		if err != nil {
			return err
		}

		buf.WriteString(`"error":`)
		buf.Write(raw)
	default:
		return ErrEmptyOutcome
	}

	return nil
}

func (o Outcome) encodeResult() ([]byte, error) {
	raw, err := json.Marshal(o.result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return raw, nil
}

// outcomeFromFields builds an outcome from the members of a decoded object. Members other than "result" and
// "error" are ignored, checking them is up to the caller.
func outcomeFromFields(fields map[string]json.RawMessage) (Outcome, error) {
	rawResult, hasResult := fields["result"]
	rawError, hasError := fields["error"]

	switch {
	case hasResult && hasError:
		return Outcome{}, fmt.Errorf("both result and error are present: %w", ErrMalformedResponse)
	case hasResult:
		return Success(json.RawMessage(bytes.Clone(rawResult))), nil
	case hasError:
		var e Error
		if err := json.Unmarshal(rawError, &e); err != nil {
			return Outcome{}, err
		}

		return Failure(e), nil
	default:
		return Outcome{}, fmt.Errorf("neither result nor error is present: %w", ErrMalformedResponse)
	}
}

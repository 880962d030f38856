package jrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
)

var (
	// ErrEmptyBatch is returned when marshaling the zero [Batch].
	ErrEmptyBatch = errors.New("batch has no response")

	// ErrInvalidBatch is returned when a response document is neither an object nor an array.
	ErrInvalidBatch = errors.New("response must be an object or an array")
)

// Batch is what is written back for one incoming message: a single [Response], sent as a JSON object, or an
// ordered sequence of responses, sent as a JSON array. There is no discriminator member, the outer shape is the
// only tag.
//
// A batch of one response is still an array; use [Single] for the object form. The order of the responses is
// never changed.
type Batch struct {
	responses []Response
	batch     bool
}

// Single returns the batch holding only r, marshaled as a JSON object.
func Single(r Response) Batch {
	return Batch{responses: []Response{r}}
}

// NewBatch returns the batch holding responses in the given order, marshaled as a JSON array even when it has one
// element or none. responses is copied.
//
// An empty batch is marshaled as []. Whether to send it is up to the caller: the [Server] never does, it answers
// an empty request batch with a single invalid request error and an all-notification batch with nothing.
func NewBatch(responses []Response) Batch {
	return Batch{responses: slices.Clone(responses), batch: true}
}

// ErrorBatch returns a single response carrying e with a null identifier. It is used when a failure concerns the
// whole message, for example when it is not valid JSON, so no identifier can be recovered.
func ErrorBatch(e Error) Batch {
	return Single(ResponseFromError(e, NullID))
}

// IsBatch reports whether b is marshaled as an array.
func (b Batch) IsBatch() bool {
	return b.batch
}

// Len returns the number of responses in b.
func (b Batch) Len() int {
	return len(b.responses)
}

// Responses returns a copy of the responses of b, in order.
func (b Batch) Responses() []Response {
	return slices.Clone(b.responses)
}

// Equal reports whether b and other have the same shape and equal responses in the same order.
func (b Batch) Equal(other Batch) bool {
	return b.batch == other.batch && slices.EqualFunc(b.responses, other.responses, Response.Equal)
}

// MarshalJSON implements the json.Marshaler interface.
func (b Batch) MarshalJSON() ([]byte, error) {
	if !b.batch {
		if len(b.responses) != 1 {
			return nil, ErrEmptyBatch
		}

		return b.responses[0].MarshalJSON()
	}

	var buf bytes.Buffer

	buf.WriteByte('[')

	for i, r := range b.responses {
		if i > 0 {
			buf.WriteByte(',')
		}

		raw, err := r.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("batch element %d: %w", i, err)
		}

		buf.Write(raw)
	}

	buf.WriteByte(']')

	return buf.Bytes(), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface. An object decodes as a single response, an array as a
// batch; every element must be a valid response.
func (b *Batch) UnmarshalJSON(data []byte) error {
	switch jsonutil.FirstByte(data) {
	case '{':
		var r Response
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}

		*b = Single(r)
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return fmt.Errorf("batch: %w: %w", ErrMalformedResponse, err)
		}

		responses := make([]Response, len(elems))

		for i, elem := range elems {
			if err := json.Unmarshal(elem, &responses[i]); err != nil {
				return fmt.Errorf("batch element %d: %w", i, err)
			}
		}

		*b = Batch{responses: responses, batch: true}
	default:
		return fmt.Errorf("%w: %w", ErrMalformedResponse, ErrInvalidBatch)
	}

	return nil
}

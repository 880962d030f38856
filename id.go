package jrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
)

// ErrInvalidID is returned when a JSON value can't be used as a request identifier.
var ErrInvalidID = errors.New("id must be a number, a string or null")

type idKind uint8

const (
	idNull idKind = iota
	idNumber
	idString
)

// ID is a JSON-RPC correlation identifier: a Number, a String or Null. The zero value is [NullID].
//
// Numbers keep the literal text they were decoded from, so an identifier is echoed back exactly as the client sent
// it. IDs are comparable with ==, NumberID(7) and StringID("7") are different identifiers.
type ID struct {
	kind  idKind
	value string
}

// NullID is the identifier used when the request identifier could not be determined.
var NullID = ID{}

// NumberID returns a numeric identifier.
func NumberID(n int64) ID {
	return ID{kind: idNumber, value: strconv.FormatInt(n, 10)}
}

// StringID returns a string identifier.
func StringID(s string) ID {
	return ID{kind: idString, value: s}
}

// IsNull reports whether id is [NullID].
func (id ID) IsNull() bool {
	return id.kind == idNull
}

// Number returns the numeric literal of id, ok is false if id is not a number.
func (id ID) Number() (n json.Number, ok bool) {
	if id.kind != idNumber {
		return "", false
	}

	return json.Number(id.value), true
}

// Str returns the string value of id, ok is false if id is not a string.
func (id ID) Str() (s string, ok bool) {
	if id.kind != idString {
		return "", false
	}

	return id.value, true
}

// String implements fmt.Stringer, it returns the JSON form of the identifier.
func (id ID) String() string {
	b, _ := id.MarshalJSON() // Never fails.

	return string(b)
}

// MarshalJSON implements the json.Marshaler interface.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idNumber:
		return []byte(id.value), nil
	case idString:
		return json.Marshal(id.value)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface. Booleans, objects and arrays fail with [ErrInvalidID].
func (id *ID) UnmarshalJSON(b []byte) error {
	switch c := jsonutil.FirstByte(b); {
	case c == 'n':
		if !jsonutil.IsNull(b) {
			return fmt.Errorf("invalid literal %s: %w", b, ErrInvalidID)
		}

		*id = NullID
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid string id: %w: %w", ErrInvalidID, err)
		}

		*id = StringID(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid number id: %w: %w", ErrInvalidID, err)
		}

		*id = ID{kind: idNumber, value: n.String()}
	default:
		return fmt.Errorf("got %s: %w", b, ErrInvalidID)
	}

	return nil
}

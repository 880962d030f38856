package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

var (
	ErrNotObject      = errors.New("JSON value is not an object")
	ErrUnknownField   = errors.New("unknown field")
	ErrDuplicateField = errors.New("duplicate field")
)

// Fields decodes the members of the JSON object b, keeping each value raw. Keys are matched exactly, any key not in
// allowed fails with ErrUnknownField and a repeated key fails with ErrDuplicateField.
func Fields(b []byte, allowed ...string) (map[string]json.RawMessage, error) {
	if FirstByte(b) != '{' {
		return nil, ErrNotObject
	}

	dec := json.NewDecoder(bytes.NewReader(b))

	if _, err := dec.Token(); err != nil { // Start object.
		return nil, err
	}

	fields := make(map[string]json.RawMessage, len(allowed))

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, _ := tok.(string) // Object keys are always strings.

		if !slices.Contains(allowed, key) {
			return nil, fmt.Errorf("%q: %w", key, ErrUnknownField)
		}

		if _, ok := fields[key]; ok {
			return nil, fmt.Errorf("%q: %w", key, ErrDuplicateField)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}

		fields[key] = raw
	}

	if _, err := dec.Token(); err != nil { // End object.
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}

	return fields, nil
}

// Member returns the raw value of the member key of the JSON object b, matching the key exactly. ok is false if
// the object has no such member. Other members are skipped, a repeated key fails with ErrDuplicateField.
func Member(b []byte, key string) (raw json.RawMessage, ok bool, err error) {
	if FirstByte(b) != '{' {
		return nil, false, ErrNotObject
	}

	dec := json.NewDecoder(bytes.NewReader(b))

	if _, err := dec.Token(); err != nil { // Start object.
		return nil, false, err
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false, err
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false, fmt.Errorf("field %q: %w", tok, err)
		}

		if name, _ := tok.(string); name != key {
			continue
		}

		if ok {
			return nil, false, fmt.Errorf("%q: %w", key, ErrDuplicateField)
		}

		raw, ok = value, true
	}

	return raw, ok, nil
}

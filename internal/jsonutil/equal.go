package jsonutil

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Equal reports whether a and b hold the same JSON value. Object key order and insignificant whitespace are
// ignored, numbers are compared by their literal text. Invalid JSON is never equal to anything.
func Equal(a, b []byte) bool {
	va, ok := decodeAny(a)
	if !ok {
		return false
	}

	vb, ok := decodeAny(b)
	if !ok {
		return false
	}

	return reflect.DeepEqual(va, vb)
}

func decodeAny(b []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}

	return v, true
}

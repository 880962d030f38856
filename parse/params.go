// Package parse decodes the params member of a request into the args type of a method handler.
//
// Params can be given by position, as an array whose elements fill the exported fields of the struct in order, or
// by name, as an object whose keys match the json names of the fields.
package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
)

// ErrInvalidParams is returned when an error occurs while parsing the params.
var ErrInvalidParams = errors.New("invalid params")

// Params parses the params and returns the value of type T, T must be a struct or a pointer to a struct.
// If the params are an array, the exported fields of T must be in the same order as the elements of the array.
// If the params are an object, the fields of T must have the same name as the keys of the object or have a json tag
// with the same name, unknown keys are rejected.
func Params[T any](params []byte) (T, error) {
	v, err := ParamsType(reflect.TypeFor[T](), params)

	value, _ := v.(T) // Safe to convert, v is always a T.

	return value, err
}

// ParamsType is like [Params] for a type only known at run time. On error it returns the zero value of t.
func ParamsType(t reflect.Type, params []byte) (any, error) {
	structT := t
	if t.Kind() == reflect.Pointer {
		structT = t.Elem()
	}

	if structT.Kind() != reflect.Struct {
		return reflect.Zero(t).Interface(), fmt.Errorf("params must be a struct or a pointer to a struct, got %v: %w", t, ErrInvalidParams)
	}

	out := reflect.New(structT)

	var err error

	switch jsonutil.FirstByte(params) {
	case '[':
		err = decodePositional(params, out.Elem())
	case '{':
		err = decodeNamed(params, out.Interface())
	case 0:
		err = fmt.Errorf("empty params: %w", ErrInvalidParams)
	default:
		err = fmt.Errorf("parameters must be an array or an object: %w", ErrInvalidParams)
	}

	if err != nil {
		return reflect.Zero(t).Interface(), err
	}

	if t.Kind() == reflect.Pointer {
		return out.Interface(), nil
	}

	return out.Elem().Interface(), nil
}

// decodePositional fills the exported fields of the struct v from the elements of the array b.
func decodePositional(b []byte, v reflect.Value) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return fmt.Errorf("error decoding array: %w: %w", ErrInvalidParams, err)
	}

	fields := exportedFields(v.Type())

	if len(elems) < len(fields) {
		return fmt.Errorf("missing parameters in array, want %d got %d: %w", len(fields), len(elems), ErrInvalidParams)
	}

	if len(elems) > len(fields) {
		return fmt.Errorf("extra parameters in array, want %d got %d: %w", len(fields), len(elems), ErrInvalidParams)
	}

	for i, field := range fields {
		if err := json.Unmarshal(elems[i], v.Field(field).Addr().Interface()); err != nil {
			return fmt.Errorf("error decoding field %q: %w: %w", v.Type().Field(field).Name, ErrInvalidParams, err)
		}
	}

	return nil
}

// decodeNamed decodes the object b into ptr, rejecting unknown keys.
func decodeNamed(b []byte, ptr any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	if err := dec.Decode(ptr); err != nil {
		return fmt.Errorf("error decoding object: %w: %w", ErrInvalidParams, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after object: %w", ErrInvalidParams)
	}

	return nil
}

// exportedFields returns the indexes of the exported fields of the struct type t.
func exportedFields(t reflect.Type) []int {
	fields := make([]int, 0, t.NumField())

	for i := range t.NumField() {
		if t.Field(i).IsExported() {
			fields = append(fields, i)
		}
	}

	return fields
}

package parse_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/kytnacode/go-jrpcwire/parse"
)

type args struct {
	Name   string `json:"name"`
	Last   string `json:"last"`
	Age    int    `json:"age"`
	Nested nested `json:"nested"`

	internal int // Not a parameter.
}

type nested struct {
	Email string `json:"email"`
}

const (
	name  = "john"
	last  = "doe"
	age   = 30
	email = "john.doe@example.com"
)

var (
	expectedArgs = args{Name: name, Last: last, Age: age, Nested: nested{Email: email}}

	positional = fmt.Appendf(nil, `["%v", "%v", %v, { "email": "%v" }]`, name, last, age, email)
	named      = fmt.Appendf(nil, `{"name": "%v", "last": "%v", "age": %v, "nested": { "email": "%v" }}`, name, last, age, email)
)

func TestParams_ValidParams(t *testing.T) {
	t.Parallel()

	testData := map[string][]byte{
		"array":              positional,
		"object":             named,
		"leading whitespace": append([]byte("\n\t "), named...),
	}

	for name, params := range testData {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := parse.Params[args](params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != expectedArgs {
				t.Errorf("expected %v, got %v", expectedArgs, got)
			}

			gotPtr, err := parse.Params[*args](params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if *gotPtr != expectedArgs {
				t.Errorf("expected %v, got %v", expectedArgs, *gotPtr)
			}
		})
	}
}

func TestParams_InvalidParams(t *testing.T) {
	t.Parallel()

	testData := map[string][]byte{
		"empty":                   {},
		"string":                  []byte(`"invalid"`),
		"number":                  []byte(`42`),
		"missing parameters":      fmt.Appendf(nil, `["%v", "%v", %v]`, name, last, age),
		"extra parameters array":  fmt.Appendf(nil, `["%v", "%v", %v, { "email": "%v" }, "extra"]`, name, last, age, email),
		"extra parameters object": fmt.Appendf(nil, `{"name": "%v", "age": %v, "extra": "extra"}`, name, age),
		"wrong type":              fmt.Appendf(nil, `["%v", "%v", "%v", { "email": "%v" }]`, name, last, age, email),
		"trailing data":           []byte(`{"name": "john"} {}`),
	}

	for name, params := range testData {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := parse.Params[args](params)
			if !errors.Is(err, parse.ErrInvalidParams) {
				t.Errorf("expected %v, got %v", parse.ErrInvalidParams, err)
			}

			if got != (args{}) {
				t.Errorf("expected zero value on error, got %v", got)
			}
		})
	}
}

func TestParamsType_InvalidType(t *testing.T) {
	t.Parallel()

	testData := map[string]reflect.Type{
		"slice":          reflect.TypeFor[[]any](),
		"channel":        reflect.TypeFor[chan any](),
		"func":           reflect.TypeFor[func() any](),
		"int":            reflect.TypeFor[int](),
		"map":            reflect.TypeFor[map[string]any](),
		"pointer to int": reflect.TypeFor[*int](),
	}

	for name, typ := range testData {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := parse.ParamsType(typ, named); !errors.Is(err, parse.ErrInvalidParams) {
				t.Errorf("expected %v, got %v", parse.ErrInvalidParams, err)
			}
		})
	}
}

func TestParamsType_ReturnsValueOfType(t *testing.T) {
	t.Parallel()

	got, err := parse.ParamsType(reflect.TypeFor[args](), positional)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reflect.TypeOf(got) != reflect.TypeFor[args]() {
		t.Fatalf("expected a value of type args, got %T", got)
	}

	if got != expectedArgs {
		t.Errorf("expected %v, got %v", expectedArgs, got)
	}
}

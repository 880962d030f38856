package jrpc_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/kytnacode/go-jrpcwire"
)

func TestOutcome_MarshalJSON(t *testing.T) {
	t.Parallel()

	type data struct {
		outcome jrpc.Outcome
		want    string
	}

	tests := map[string]data{
		"number":  {outcome: jrpc.Success(42), want: `{"result":42}`},
		"null":    {outcome: jrpc.Success(nil), want: `{"result":null}`},
		"raw":     {outcome: jrpc.Success(json.RawMessage(`["a"]`)), want: `{"result":["a"]}`},
		"failure": {outcome: jrpc.Failure(jrpc.NewInternalError()), want: `{"error":{"code":-32603,"message":"Internal error"}}`},
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := json.Marshal(data.outcome)
			if err != nil {
				t.Fatal(err)
			}

			if string(got) != data.want {
				t.Errorf("Expected %s, got %s", data.want, got)
			}
		})
	}
}

func TestOutcome_MarshalJSONShouldFail(t *testing.T) {
	t.Parallel()

	if _, err := json.Marshal(jrpc.Outcome{}); !errors.Is(err, jrpc.ErrEmptyOutcome) {
		t.Errorf("Expected empty outcome error, got %v", err)
	}

	if _, err := json.Marshal(jrpc.Success(make(chan int))); err == nil {
		t.Error("Expected an unmarshalable result to fail")
	}
}

func TestOutcome_UnmarshalJSONShouldRejectMalformedObjects(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"both":           `{"result":1,"error":{"code":1,"message":"x"}}`,
		"neither":        `{}`,
		"extra-member":   `{"result":1,"id":1}`,
		"invalid-error":  `{"error":{"code":1}}`,
		"error-as-array": `{"error":[1]}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var o jrpc.Outcome
			if err := json.Unmarshal([]byte(input), &o); !errors.Is(err, jrpc.ErrMalformedResponse) {
				t.Errorf("Expected malformed response error, got %v", err)
			}
		})
	}
}

func TestOutcome_ShouldBeExclusive(t *testing.T) {
	t.Parallel()

	success := jrpc.Success(nil)

	if !success.IsSuccess() {
		t.Error("Expected a success")
	}

	if _, ok := success.Err(); ok {
		t.Error("Expected a success to have no error")
	}

	failure := jrpc.Failure(jrpc.NewParseError())

	if failure.IsSuccess() {
		t.Error("Expected a failure")
	}

	if _, ok := failure.Result(); ok {
		t.Error("Expected a failure to have no result")
	}

	var e jrpc.Error
	if err := failure.DecodeResult(new(any)); !errors.As(err, &e) || !e.Equal(jrpc.NewParseError()) {
		t.Errorf("Expected the failure error, got %v", err)
	}

	if success.Equal(failure) || failure.Equal(success) {
		t.Error("Expected a success never to equal a failure")
	}
}

func TestOutcome_ResultOwnership(t *testing.T) {
	t.Parallel()

	var decoded jrpc.Outcome
	if err := json.Unmarshal([]byte(`{"result":[1,2]}`), &decoded); err != nil {
		t.Fatal(err)
	}

	result, _ := decoded.Result()
	raw, ok := result.(json.RawMessage)
	if !ok {
		t.Fatalf("Expected a raw result, got %T", result)
	}

	raw[1] = '9'

	if again, _ := decoded.Result(); string(again.(json.RawMessage)) != `[1,2]` {
		t.Errorf("Expected the decoded result to be unchanged, got %s", again)
	}

	payload := map[string]int{"a": 1}
	shared, _ := jrpc.Success(payload).Result()

	if got, ok := shared.(map[string]int); !ok || got["a"] != 1 {
		t.Errorf("Expected the given payload back, got %v", shared)
	}

	payload["a"] = 2

	if got := shared.(map[string]int); got["a"] != 2 {
		t.Errorf("Expected the payload to be shared, got %v", got)
	}
}

func TestOutcome_EqualShouldCompareJSONValues(t *testing.T) {
	t.Parallel()

	var decoded jrpc.Outcome
	if err := json.Unmarshal([]byte(`{"result": {"b": 2, "a": 1}}`), &decoded); err != nil {
		t.Fatal(err)
	}

	if !decoded.Equal(jrpc.Success(map[string]int{"a": 1, "b": 2})) {
		t.Error("Expected decoded result to equal the original value")
	}

	if decoded.Equal(jrpc.Success(map[string]int{"a": 1})) {
		t.Error("Expected different results not to be equal")
	}

	var n int
	if err := jrpc.Success(42).DecodeResult(&n); err != nil || n != 42 {
		t.Errorf("Expected 42, got %d (%v)", n, err)
	}
}

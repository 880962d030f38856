package jsonutil_test

import (
	"testing"

	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
)

func TestTrimLeftWhitespace(t *testing.T) {
	t.Parallel()

	type data struct {
		input    []byte
		expected []byte
	}

	testData := map[string]data{
		"space": {
			input:    []byte("  32"),
			expected: []byte("32"),
		},
		"tab": {
			input:    []byte("\t\t{ \"hello\": \"world\" }"),
			expected: []byte("{ \"hello\": \"world\" }"),
		},
		"newline": {
			input:    []byte("\n\n[1, 2, 3]"),
			expected: []byte("[1, 2, 3]"),
		},
		"carriage return": {
			input:    []byte("\r\r{ \"hello\": \"world\" }"),
			expected: []byte("{ \"hello\": \"world\" }"),
		},
	}

	for name, data := range testData {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := jsonutil.TrimLeftWhitespace(data.input)

			if string(got) != string(data.expected) {
				t.Errorf("expected %s, got %s", data.expected, got)
			}
		})
	}
}

func TestFirstByte(t *testing.T) {
	t.Parallel()

	type data struct {
		input    []byte
		expected byte
	}

	testData := map[string]data{
		"object":     {input: []byte(" \n{}"), expected: '{'},
		"array":      {input: []byte("\t[1]"), expected: '['},
		"null":       {input: []byte("null"), expected: 'n'},
		"whitespace": {input: []byte(" \r\n "), expected: 0},
		"empty":      {input: nil, expected: 0},
	}

	for name, data := range testData {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := jsonutil.FirstByte(data.input); got != data.expected {
				t.Errorf("expected %q, got %q", data.expected, got)
			}
		})
	}
}

func TestIsNull(t *testing.T) {
	t.Parallel()

	if !jsonutil.IsNull([]byte(" null ")) {
		t.Error("expected null to be detected")
	}

	if jsonutil.IsNull([]byte(`"null"`)) {
		t.Error("expected string \"null\" not to be null")
	}
}

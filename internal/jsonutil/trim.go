// Package jsonutil holds the small JSON helpers shared by the envelope codecs.
package jsonutil

import "bytes"

// TrimLeftWhitespace drops the leading insignificant whitespace of a JSON text.
func TrimLeftWhitespace(b []byte) []byte {
	return bytes.TrimLeft(b, " \t\n\r") // Trim space, tab, newline, and carriage return, see RFC 8259.
}

// FirstByte returns the first significant byte of b, or 0 if b is only whitespace.
// It is enough to tell an object ('{') from an array ('[') or a scalar.
func FirstByte(b []byte) byte {
	trimmed := TrimLeftWhitespace(b)
	if len(trimmed) == 0 {
		return 0
	}

	return trimmed[0]
}

// IsNull reports whether b is the JSON literal null, ignoring surrounding whitespace.
func IsNull(b []byte) bool {
	return string(bytes.TrimSpace(b)) == "null"
}

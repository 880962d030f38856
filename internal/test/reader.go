package test

// NoOpReader is a reader that never has data: Read returns 0 bytes and a nil error, never io.EOF. A connection
// built on it stays open until it is closed.
type NoOpReader struct{}

// Read implements the io.Reader interface.
func (*NoOpReader) Read(_ []byte) (n int, err error) {
	return 0, nil
}

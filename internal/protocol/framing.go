package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineBytes bounds a single message line.
const DefaultMaxLineBytes = 1 << 30

// ErrLineTooLong is returned when a line exceeds the reader's limit. The
// stream cannot be resynchronized after it.
var ErrLineTooLong = errors.New("message line exceeds size limit")

// Reader splits a stream into message lines. A line is only handed out once
// its terminating newline (or EOF) has been read.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader builds a line reader; maxLineBytes <= 0 selects DefaultMaxLineBytes.
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	scanner := bufio.NewScanner(r)
	initial := 64 * 1024
	if initial > maxLineBytes {
		initial = maxLineBytes
	}
	scanner.Buffer(make([]byte, 0, initial), maxLineBytes)
	return &Reader{scanner: scanner}
}

// Next returns the next non-empty line. It returns io.EOF on a clean end of
// stream. The returned slice is only valid until the following call.
func (r *Reader) Next() ([]byte, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 || (len(line) == 1 && line[0] == '\r') {
			continue
		}
		return line, nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, ErrLineTooLong
		}
		return nil, fmt.Errorf("read line: %w", err)
	}
	return nil, io.EOF
}

// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package console reads user input line by line.
package console

import (
	"bufio"
	"io"
	"strings"
)

const maxLineLen = 64 * 1024

// LineReader returns lines of a text stream without line terminators.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader returns a reader of r's lines.
func NewLineReader(r io.Reader) *LineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLen)
	return &LineReader{scanner: scanner}
}

// Next returns the next line. ok is false at the end of input, or if reading failed.
// A trailing '\r' is removed.
func (lr *LineReader) Next() (line string, ok bool) {
	if !lr.scanner.Scan() {
		return "", false
	}
	return strings.TrimRight(lr.scanner.Text(), "\r"), true
}

// Err returns the first non-EOF error, which occurred while reading.
func (lr *LineReader) Err() error {
	return lr.scanner.Err()
}

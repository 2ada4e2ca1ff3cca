package logging

import (
	"bytes"
	"io"
)

// PrefixWriter stamps a prefix onto every line it forwards. Partial
// lines stay buffered until their newline arrives, so a line is never
// split across two prefixed writes.
type PrefixWriter struct {
	prefix  []byte
	writer  io.Writer
	pending bytes.Buffer
}

// NewPrefixWriter wraps w so each forwarded line starts with prefix.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{
		prefix: []byte(prefix),
		writer: w,
	}
}

// Write buffers p and forwards every complete line it now holds.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.pending.Write(p)

	for {
		buffered := pw.pending.Bytes()
		nl := bytes.IndexByte(buffered, '\n')
		if nl < 0 {
			return len(p), nil
		}
		if _, err := pw.writer.Write(pw.prefix); err != nil {
			return 0, err
		}
		if _, err := pw.writer.Write(buffered[:nl+1]); err != nil {
			return 0, err
		}
		pw.pending.Next(nl + 1)
	}
}

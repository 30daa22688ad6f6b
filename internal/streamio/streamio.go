// Package streamio provides the uniform byte-stream primitives the
// ingestion and download paths are built on. Go's io.Reader and
// io.Writer contracts already match the source/sink capabilities
// described by the specification (a source yields up to N bytes per
// call and signals end-of-stream with io.EOF; a writer must accept all
// of a buffer or fail), so this package supplies composing filters
// rather than a parallel interface hierarchy.
package streamio

import (
	"errors"
	"io"
)

// ErrUnexpectedEOF is returned by ReadExactly when fewer than the
// requested number of bytes are available.
var ErrUnexpectedEOF = errors.New("streamio: unexpected end of stream")

// ReadExactly reads exactly n bytes from r, or returns ErrUnexpectedEOF.
func ReadExactly(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// TeeSink fans writes out to multiple io.Writers in order, matching the
// spec's tee sink. It differs from io.MultiWriter only in being a named,
// documented type that callers can hold onto (e.g. to later Close or
// finalize one of the underlying writers, as internal/ingest does with a
// pair of hash sinks).
type TeeSink struct {
	Writers []io.Writer
}

// NewTeeSink returns a TeeSink writing to all of ws, in order.
func NewTeeSink(ws ...io.Writer) *TeeSink {
	return &TeeSink{Writers: ws}
}

// Write implements io.Writer, writing p to every underlying writer in
// order and stopping at the first error.
func (t *TeeSink) Write(p []byte) (int, error) {
	for _, w := range t.Writers {
		n, err := w.Write(p)
		if err != nil {
			return n, err
		}
		if n != len(p) {
			return n, io.ErrShortWrite
		}
	}
	return len(p), nil
}

// Copy streams src to dst until src is exhausted, returning the number
// of bytes copied. It is a thin, named wrapper over io.Copy so call
// sites read as "copy source to sink," matching the spec's vocabulary.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, src)
}

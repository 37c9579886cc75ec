package aoe2rec

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Writer streams a recording to an io.Writer.
//
// Usage:
//
//	w, _ := aoe2rec.Create("out.aoe2record")
//	defer w.Close()
//	_ = w.WriteHeader(rec)
//	_ = w.WriteOperation(&aoe2rec.Sync{TimeIncrement: 100})
//
// Operations are written incrementally; the writer does not retain them.
type Writer struct {
	out      io.Writer
	written  int64
	duration uint32
	closed   bool
	file     *os.File // optional, when using Create()
	digest   *xxhash.Digest
	scratch  []byte
}

// NewWriter creates a Writer onto the provided io.Writer.
func NewWriter(out io.Writer) *Writer {
	d := xxhash.New()
	return &Writer{
		out:    io.MultiWriter(out, d),
		digest: d,
	}
}

// Create opens/creates a file at path and returns a Writer that owns the file descriptor.
// Close() will also close the underlying file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f)
	w.file = f
	return w, nil
}

// WriteHeader writes the envelope of rec, re-compressing Header.Raw.
func (w *Writer) WriteHeader(rec *Recording) error {
	b, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	return w.WriteRaw(b)
}

// WriteRaw writes bytes verbatim.
func (w *Writer) WriteRaw(b []byte) error {
	if w.closed {
		return fmt.Errorf("aoe2rec: writer closed")
	}
	n, err := w.out.Write(b)
	w.written += int64(n)
	return err
}

// WriteOperation encodes and writes a single operation.
func (w *Writer) WriteOperation(op Operation) error {
	b, err := AppendOperation(w.scratch[:0], op)
	if err != nil {
		return err
	}
	w.scratch = b
	return w.WriteRawOperation(op, b)
}

// WriteRawOperation writes the bytes raw that were read for op. op is only
// used to keep the duration.
func (w *Writer) WriteRawOperation(op Operation, raw []byte) error {
	if err := w.WriteRaw(raw); err != nil {
		return err
	}
	if s, ok := op.(*Sync); ok {
		w.duration += s.TimeIncrement
	}
	return nil
}

// Written is the number of bytes written so far.
func (w *Writer) Written() int64 { return w.written }

// Duration is the sum of the sync increments written, in milliseconds.
func (w *Writer) Duration() uint32 { return w.duration }

// Digest returns the xxhash of everything written so far.
func (w *Writer) Digest() uint64 { return w.digest.Sum64() }

// Close finishes the recording. It closes the file when the writer was made with Create.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

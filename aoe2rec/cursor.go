package aoe2rec

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Cursor is a forward-only reader over an in-memory buffer. All parsing in
// this package consumes bytes through a Cursor so that a TeeReader attached
// to it sees every byte.
//
// Slices returned by Bytes share memory with the underlying buffer.
type Cursor struct {
	buf []byte
	off int
	tee *bytes.Buffer
}

// NewCursor returns a Cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Pos returns the absolute offset of the next byte to be read.
func (c *Cursor) Pos() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int { return len(c.buf) }

// Seek moves the cursor forward to an absolute offset. Moving backward is
// not allowed.
func (c *Cursor) Seek(off int) error {
	if off < c.off || off > len(c.buf) {
		return corrupt(c.off, "seek target", "forward offset within file", off)
	}
	c.off = off
	return nil
}

// Bytes consumes n bytes.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, &CorruptFormatError{
			Offset:   c.off,
			What:     "short read",
			Expected: n,
			Actual:   c.Remaining(),
		}
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	if c.tee != nil {
		c.tee.Write(b)
	}
	return b, nil
}

// Skip consumes n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	_, err := c.Bytes(n)
	return err
}

func (c *Cursor) U8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) U16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) U32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

func (c *Cursor) F32() (float32, error) {
	v, err := c.U32()
	return math.Float32frombits(v), err
}

// CString reads bytes up to and including a NUL terminator and returns
// them without the terminator.
func (c *Cursor) CString() (string, error) {
	i := bytes.IndexByte(c.buf[c.off:], 0)
	if i < 0 {
		return "", corrupt(c.off, "NUL-terminated string", "terminator", "end of buffer")
	}
	b, err := c.Bytes(i + 1)
	if err != nil {
		return "", err
	}
	return string(b[:i]), nil
}

// TeeReader collects every byte consumed through a Cursor since the last
// Flush, so the exact bytes behind a parsed structure can be copied to an
// output verbatim.
type TeeReader struct {
	c   *Cursor
	buf bytes.Buffer
}

// NewTeeReader attaches a TeeReader to c. A cursor carries at most one tee.
func NewTeeReader(c *Cursor) *TeeReader {
	t := &TeeReader{c: c}
	c.tee = &t.buf
	return t
}

// Cursor returns the cursor the tee is attached to.
func (t *TeeReader) Cursor() *Cursor { return t.c }

// Flush returns the bytes read since the previous Flush and starts a new
// capture. The returned slice is owned by the caller.
func (t *TeeReader) Flush() []byte {
	out := make([]byte, t.buf.Len())
	copy(out, t.buf.Bytes())
	t.buf.Reset()
	return out
}

// Detach stops capturing.
func (t *TeeReader) Detach() {
	if t.c.tee == &t.buf {
		t.c.tee = nil
	}
}

package aoe2rec

import (
	"bytes"
	"errors"
	"testing"
)

func TestCursorReads(t *testing.T) {
	c := NewCursor([]byte{
		0x01,
		0x02, 0x01,
		0x04, 0x03, 0x02, 0x01,
		0xff, 0xff, 0xff, 0xff,
		0x00, 0x00, 0x80, 0x3f,
		'V', 'E', 'R', 0,
	})
	if v, _ := c.U8(); v != 1 {
		t.Fatalf("U8 = %d", v)
	}
	if v, _ := c.U16(); v != 0x0102 {
		t.Fatalf("U16 = %#x", v)
	}
	if v, _ := c.U32(); v != 0x01020304 {
		t.Fatalf("U32 = %#x", v)
	}
	if v, _ := c.I32(); v != -1 {
		t.Fatalf("I32 = %d", v)
	}
	if v, _ := c.F32(); v != 1.0 {
		t.Fatalf("F32 = %v", v)
	}
	if s, err := c.CString(); err != nil || s != "VER" {
		t.Fatalf("CString = %q, %v", s, err)
	}
	if c.Remaining() != 0 || c.Pos() != c.Len() {
		t.Fatalf("cursor not at end: pos %d len %d", c.Pos(), c.Len())
	}
}

func TestCursorShortRead(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	_ = c.Skip(1)
	_, err := c.U32()
	var ce *CorruptFormatError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CorruptFormatError, got %v", err)
	}
	if ce.Offset != 1 || ce.Expected != 4 || ce.Actual != 2 {
		t.Errorf("got offset %d expected %v actual %v", ce.Offset, ce.Expected, ce.Actual)
	}
	if !errors.Is(err, ErrCorruptFormat) {
		t.Error("short read does not match ErrCorruptFormat")
	}
	if c.Pos() != 1 {
		t.Errorf("failed read moved the cursor to %d", c.Pos())
	}
}

func TestCursorSeek(t *testing.T) {
	c := NewCursor(make([]byte, 10))
	if err := c.Seek(6); err != nil {
		t.Fatal(err)
	}
	if err := c.Seek(3); err == nil {
		t.Error("seeking backward succeeded")
	}
	if err := c.Seek(11); err == nil {
		t.Error("seeking past the end succeeded")
	}
	if c.Pos() != 6 {
		t.Errorf("pos = %d, want 6", c.Pos())
	}
}

func TestCursorCStringUnterminated(t *testing.T) {
	if _, err := NewCursor([]byte("VER 9.4")).CString(); !errors.Is(err, ErrCorruptFormat) {
		t.Fatalf("expected corrupt format error, got %v", err)
	}
}

func TestTeeReader(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	_ = c.Skip(2)
	tee := NewTeeReader(c)

	_, _ = c.U16()
	_, _ = c.U8()
	got := tee.Flush()
	if !bytes.Equal(got, []byte{3, 4, 5}) {
		t.Fatalf("first flush = %v", got)
	}
	if got := tee.Flush(); len(got) != 0 {
		t.Fatalf("second flush = %v, want empty", got)
	}

	_, _ = c.U8()
	tee.Detach()
	_, _ = c.U8()
	if got := tee.Flush(); !bytes.Equal(got, []byte{6}) {
		t.Fatalf("flush after detach = %v", got)
	}
}

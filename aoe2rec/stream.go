package aoe2rec

import (
	"errors"
	"io"
)

// Stream reads the operations of a recording one at a time and keeps the
// match clock. Raw returns the exact bytes of the last operation read.
type Stream struct {
	tee  *TeeReader
	time uint32
	raw  []byte
	ops  int
}

// NewStream starts reading operations at the cursor's position.
func NewStream(c *Cursor) *Stream {
	return &Stream{tee: NewTeeReader(c)}
}

// Open decodes the envelope of data and returns a stream positioned on
// the first operation.
func Open(data []byte) (*Recording, *Stream, error) {
	c := NewCursor(data)
	rec, err := ReadRecording(c)
	if err != nil {
		return nil, nil, err
	}
	return rec, NewStream(c), nil
}

// Next returns the next operation, or io.EOF after the last one.
func (s *Stream) Next() (Operation, error) {
	op, err := ReadOperation(s.tee.Cursor())
	s.raw = s.tee.Flush()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.tee.Detach()
		}
		return nil, err
	}
	s.ops++
	if sync, ok := op.(*Sync); ok {
		s.time += sync.TimeIncrement
	}
	return op, nil
}

// Time is the match time in milliseconds after the last operation read.
func (s *Stream) Time() uint32 { return s.time }

// Raw returns the bytes of the last operation read. The slice is owned by
// the caller.
func (s *Stream) Raw() []byte { return s.raw }

// Count is the number of operations read so far.
func (s *Stream) Count() int { return s.ops }

// Pos is the file offset of the next operation.
func (s *Stream) Pos() int { return s.tee.Cursor().Pos() }

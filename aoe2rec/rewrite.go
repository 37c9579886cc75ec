package aoe2rec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
)

// Rewrite decodes the header of data, lets edit change it and returns the
// recording with the new header. Operations are copied as they are, except
// that seek markers and the chapter pointer are moved by the change in
// header size.
func Rewrite(data []byte, edit func(h *Header) error) ([]byte, error) {
	rec, s, err := Open(data)
	if err != nil {
		return nil, err
	}
	if err := edit(rec.Header); err != nil {
		return nil, err
	}
	out, _, err := copyRecording(rec, s, nil)
	return out, err
}

// copyRecording writes rec followed by the rest of s. When chat is not nil
// it rewrites every chat payload that parses. Seek targets and the chapter
// pointer are recomputed for the output.
func copyRecording(rec *Recording, s *Stream, chat func(*ChatMessage)) ([]byte, *Writer, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteHeader(rec); err != nil {
		return nil, nil, err
	}

	chapter := int64(-1)
	for {
		if rec.NextChapter != 0 && s.Pos() == int(rec.NextChapter) {
			chapter = w.Written()
		}
		op, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		switch op := op.(type) {
		case *Chat:
			if chat == nil {
				break
			}
			msg, err := op.Message()
			if err != nil {
				log.Debug().Err(err).Uint32("time", s.Time()).Msg("chat payload copied verbatim")
				break
			}
			chat(msg)
			c, err := NewChat(msg)
			if err != nil {
				return nil, nil, err
			}
			if err := w.WriteOperation(c); err != nil {
				return nil, nil, err
			}
			continue
		case *Seek:
			// The target moves with everything written before it.
			target := w.Written() + 4 + int64(len(op.Gap))
			if err := w.WriteOperation(&Seek{Offset: uint32(target), Gap: op.Gap}); err != nil {
				return nil, nil, err
			}
			continue
		}
		if err := w.WriteRawOperation(op, s.Raw()); err != nil {
			return nil, nil, err
		}
	}

	out := buf.Bytes()
	if rec.NextChapter != 0 {
		if chapter < 0 {
			return nil, nil, corrupt(4, "next chapter", "an operation boundary", rec.NextChapter)
		}
		binary.LittleEndian.PutUint32(out[4:8], uint32(chapter))
	}
	return out, w, w.Close()
}

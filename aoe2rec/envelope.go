package aoe2rec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog/log"
)

const (
	// maxHeaderLength rejects envelopes whose length field is clearly wrong.
	maxHeaderLength = 1 << 24
	// maxInflatedHeader bounds the inflated header blob.
	maxInflatedHeader = 1 << 26

	metaSize = 32
)

// Meta is the fixed block that follows the compressed header.
type Meta struct {
	LogVersion   uint32
	Unknown1     uint32
	Unknown2     uint32
	Unknown3     uint32
	ForceID      uint32
	Unknown5     uint32
	Unknown6     uint32
	OtherVersion uint32
}

// Recording is a parsed file envelope. The operation stream starts at
// BodyOffset in the buffer the recording was decoded from.
type Recording struct {
	NextChapter uint32
	Header      *Header
	Meta        Meta
	BodyOffset  int
}

// Decode parses the envelope and header of a complete recording.
func Decode(data []byte) (*Recording, error) {
	return ReadRecording(NewCursor(data))
}

// ReadRecording parses the envelope and header at the cursor and leaves the
// cursor on the first operation.
func ReadRecording(c *Cursor) (*Recording, error) {
	at := c.Pos()
	length, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	if length < 8 || length > maxHeaderLength {
		return nil, corrupt(at, "header length", "8 to 16 MiB", length)
	}
	rec := &Recording{}
	if rec.NextChapter, err = c.U32(); err != nil {
		return nil, fmt.Errorf("read next chapter: %w", err)
	}
	compressed, err := c.Bytes(int(length) - 8)
	if err != nil {
		return nil, fmt.Errorf("read compressed header: %w", err)
	}
	blob, err := inflate(compressed)
	if err != nil {
		return nil, err
	}
	if rec.Header, err = DecodeHeader(blob); err != nil {
		return nil, err
	}

	at = c.Pos()
	mb, err := c.Bytes(metaSize)
	if err != nil {
		return nil, fmt.Errorf("read log metadata: %w", err)
	}
	if err := binary.Read(bytes.NewReader(mb), binary.LittleEndian, &rec.Meta); err != nil {
		return nil, err
	}
	if rec.Meta.LogVersion != 5 {
		return nil, corrupt(at, "log version", uint32(5), rec.Meta.LogVersion)
	}
	if rec.Meta.OtherVersion != 0 {
		return nil, corrupt(at+28, "other version", uint32(0), rec.Meta.OtherVersion)
	}
	rec.BodyOffset = c.Pos()

	log.Debug().
		Uint32("next_chapter", rec.NextChapter).
		Uint32("force_id", rec.Meta.ForceID).
		Int("compressed", len(compressed)).
		Int("inflated", len(blob)).
		Msg("decoded envelope")
	return rec, nil
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	blob, err := io.ReadAll(io.LimitReader(r, maxInflatedHeader+1))
	if err != nil {
		return nil, fmt.Errorf("inflate header: %w", err)
	}
	if len(blob) > maxInflatedHeader {
		return nil, fmt.Errorf("inflate header: more than %d bytes", maxInflatedHeader)
	}
	return blob, nil
}

func deflate(blob []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(blob); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode produces the envelope for rec: the length-prefixed compressed
// header built from Header.Raw followed by Meta. Operations are not
// included.
func Encode(rec *Recording) ([]byte, error) {
	compressed, err := deflate(rec.Header.Raw)
	if err != nil {
		return nil, fmt.Errorf("deflate header: %w", err)
	}
	out := make([]byte, 0, 8+len(compressed)+metaSize)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(compressed)+8))
	out = binary.LittleEndian.AppendUint32(out, rec.NextChapter)
	out = append(out, compressed...)
	var meta bytes.Buffer
	if err := binary.Write(&meta, binary.LittleEndian, rec.Meta); err != nil {
		return nil, err
	}
	return append(out, meta.Bytes()...), nil
}

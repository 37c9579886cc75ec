package aoe2rec

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Report summarizes a fully parsed recording.
type Report struct {
	Header      *Header
	Meta        Meta
	NextChapter uint32
	Size        int
	Duration    uint32
	Operations  map[string]int
	Chats       []TimedChat
	Seeks       []TimedSeek
	Postgame    *Postgame
	Warnings    []string
}

// TimedChat is a chat record with the match time it was read at. Message is
// nil when the payload is not valid JSON.
type TimedChat struct {
	Time    uint32
	Message *ChatMessage `json:",omitempty"`
	Raw     string       `json:",omitempty"`
}

type TimedSeek struct {
	Time   uint32
	Offset uint32
}

func (r *Report) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	log.Warn().Msg(msg)
}

// Inspect parses data completely and collects what a reader of the file is
// likely to want: header, chat, seeks and the postgame summary.
func Inspect(data []byte) (*Report, error) {
	rec, s, err := Open(data)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Header:      rec.Header,
		Meta:        rec.Meta,
		NextChapter: rec.NextChapter,
		Size:        len(data),
		Operations:  make(map[string]int),
	}
	for _, w := range rec.Header.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}

	for {
		op, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		r.Operations[op.Kind().String()]++
		switch op := op.(type) {
		case *Chat:
			tc := TimedChat{Time: s.Time()}
			if m, err := op.Message(); err == nil {
				tc.Message = m
			} else {
				tc.Raw = string(op.JSON)
			}
			r.Chats = append(r.Chats, tc)
		case *Seek:
			r.Seeks = append(r.Seeks, TimedSeek{Time: s.Time(), Offset: op.Offset})
		case *Postgame:
			r.Postgame = op
			if op.HasWorldTime && op.WorldTime != s.Time() {
				r.warn("postgame world time %d does not match stream time %d", op.WorldTime, s.Time())
			}
		}
	}
	r.Duration = s.Time()
	return r, nil
}

// ValidateFile parses a recording completely and logs anything unusual.
// It returns the first error that makes the file unreadable.
func ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("recording not found: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("recording is empty (0 bytes)")
	}

	r, err := Inspect(data)
	if err != nil {
		return err
	}

	if r.NextChapter != 0 {
		r.warn("recording has chapters (next chapter at %d)", r.NextChapter)
	}
	if len(r.Operations) == 0 {
		r.warn("recording has no operations")
	}
	if r.Postgame == nil {
		r.warn("recording has no postgame record")
	}
	if r.Header.Trailer == nil {
		r.warn("header trailer could not be decoded")
	}

	log.Info().
		Str("path", path).
		Float64("save_version", r.Header.SaveVersion).
		Int("players", len(r.Header.Players)).
		Uint32("duration_ms", r.Duration).
		Int("bytes", r.Size).
		Msg("validated recording")
	return nil
}

// ValidateFileQuiet is like ValidateFile but suppresses all log output.
// Useful for CLI tools that want to control output formatting.
func ValidateFileQuiet(path string) error {
	old := log.Logger
	log.Logger = zerolog.Nop()
	defer func() { log.Logger = old }()

	return ValidateFile(path)
}

package merge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
)

// ErrChapters is returned for recordings saved with chapters. Their
// chapter data is not copied, so the merged file would end early.
var ErrChapters = errors.New("merge: recordings with chapters are not supported")

// welcomeTime is the match time of the welcome line.
const welcomeTime = 200

// Input is one recording to merge.
type Input struct {
	Name string
	Data []byte
}

type Options struct {
	// Window is the chat merge window in milliseconds; zero means
	// DefaultWindow.
	Window uint32
	// Welcome adds a line at the start of the match saying whose chat the
	// recording contains.
	Welcome bool
	// Censor lists words masked in merged chat.
	Censor []string
}

// DefaultOptions returns the options used by the merge tool when nothing
// is configured.
func DefaultOptions() Options {
	return Options{Window: DefaultWindow, Welcome: true, Censor: []string{"simp"}}
}

// Seat records which player recorded an input.
type Seat struct {
	Input    string
	PlayerID uint32
	ForceID  uint32
	Duration uint32
}

type Result struct {
	Data     []byte
	Backbone string
	Seats    []Seat
	Chats    []ChatEvent
	Duration uint32
	Digest   uint64
	Warnings []string
}

func (r *Result) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	log.Warn().Msg(msg)
}

type source struct {
	Input
	rec    *aoe2rec.Recording
	stream *aoe2rec.Stream
	seat   uint32
	done   bool
}

// Merge combines recordings of one match. The output is a copy of the
// longest input in which every mergeable chat line is replaced by merged
// lines that name all of their recipients.
func Merge(inputs []Input, opts Options) (*Result, error) {
	if len(inputs) == 0 {
		return nil, errors.New("merge: no inputs")
	}
	if opts.Window == 0 {
		opts.Window = DefaultWindow
	}

	srcs := make([]*source, len(inputs))
	for i, in := range inputs {
		rec, s, err := aoe2rec.Open(in.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.Name, err)
		}
		if rec.NextChapter != 0 {
			return nil, fmt.Errorf("%s: %w", in.Name, ErrChapters)
		}
		srcs[i] = &source{Input: in, rec: rec, stream: s}
	}

	res := &Result{}
	header := srcs[0].rec.Header
	if err := assignSeats(srcs, header.Players); err != nil {
		return nil, err
	}
	checkConsistency(res, srcs)

	events, err := collectChats(srcs)
	if err != nil {
		return nil, err
	}
	chats, err := MergeChats(events, opts.Window)
	if err != nil {
		return nil, err
	}

	seated := make(map[uint32]bool)
	for _, s := range srcs {
		seated[s.seat] = true
		res.Seats = append(res.Seats, Seat{
			Input:    s.Name,
			PlayerID: s.seat,
			ForceID:  s.rec.Meta.ForceID,
			Duration: s.stream.Time(),
		})
	}
	if opts.Welcome {
		welcome := ChatEvent{
			Time:    welcomeTime,
			Channel: aoe2rec.ChannelAll,
			Message: welcomeText(header.Players, seated),
		}
		chats = append([]ChatEvent{welcome}, chats...)
	}
	sort.SliceStable(chats, func(i, j int) bool { return chats[i].Time < chats[j].Time })

	censor := NewCensor(opts.Censor)
	for i := range chats {
		Label(&chats[i], header.Players, censor)
	}
	res.Chats = chats

	backbone := srcs[0]
	for _, s := range srcs[1:] {
		if s.stream.Time() > backbone.stream.Time() {
			backbone = s
		}
	}
	res.Backbone = backbone.Name
	log.Info().
		Str("backbone", backbone.Name).
		Uint32("duration", backbone.stream.Time()).
		Int("chats", len(chats)).
		Msg("assembling merged recording")

	if err := assemble(res, backbone.Input, chats); err != nil {
		return nil, fmt.Errorf("%s: %w", backbone.Name, err)
	}
	return res, nil
}

// assignSeats gives each input the first player with the input's force id
// that has no input yet. Co-op partners share a force id, so when several
// of them recorded the match the assignment follows input order.
func assignSeats(srcs []*source, players []aoe2rec.Player) error {
	taken := make(map[uint32]bool)
	for _, s := range srcs {
		force := s.rec.Meta.ForceID
		for _, p := range players {
			if p.ForceID == force && !taken[p.PlayerID] {
				taken[p.PlayerID] = true
				s.seat = p.PlayerID
				break
			}
		}
		if s.seat == 0 {
			return &aoe2rec.InconsistentInputsError{
				Reason: fmt.Sprintf("%s was recorded by force %d, which has no free seat", s.Name, force),
			}
		}
		log.Debug().Str("input", s.Name).Uint32("force_id", force).Uint32("player_id", s.seat).Msg("seat assigned")
	}
	return nil
}

func checkConsistency(res *Result, srcs []*source) {
	first := srcs[0].rec
	want := aoe2rec.RecordingFingerprint(first)
	for _, s := range srcs[1:] {
		if aoe2rec.RecordingFingerprint(s.rec) == want {
			continue
		}
		field, _ := aoe2rec.DiffRecordings(first, s.rec)
		res.warn("%s and %s have inconsistent headers (field %s differs); are they from the same game?",
			srcs[0].Name, s.Name, field)
		return
	}
}

// collectChats advances all inputs one sync at a time and gathers their
// mergeable chat lines, stamped with the common match time.
func collectChats(srcs []*source) ([]ChatEvent, error) {
	var events []ChatEvent
	var now uint32
	for {
		active := false
		var inc uint32
		haveInc := false
		for _, s := range srcs {
		drain:
			for !s.done {
				op, err := s.stream.Next()
				if errors.Is(err, io.EOF) {
					s.done = true
					break
				}
				if err != nil {
					return nil, fmt.Errorf("%s: %w", s.Name, err)
				}
				active = true
				switch op := op.(type) {
				case *aoe2rec.Sync:
					if !haveInc {
						inc, haveInc = op.TimeIncrement, true
					} else if op.TimeIncrement != inc {
						return nil, &aoe2rec.InconsistentInputsError{
							Reason: fmt.Sprintf("%s advances %d ms at %d ms, other inputs %d ms",
								s.Name, op.TimeIncrement, now, inc),
						}
					}
					break drain
				case *aoe2rec.Chat:
					m, err := op.Message()
					if err != nil {
						log.Debug().Err(err).Str("input", s.Name).Uint32("time", now).Msg("skipping unreadable chat")
						continue
					}
					if !Mergeable(m) {
						continue
					}
					events = append(events, ChatEvent{
						Time:       now,
						Player:     uint32(m.Player),
						To:         []uint32{s.seat},
						Channel:    m.Channel,
						Message:    m.Message,
						MessageAGP: m.MessageAGP,
					})
				}
			}
		}
		if !active {
			return events, nil
		}
		now += inc
	}
}

// assemble copies the backbone recording, replacing its mergeable chat with
// chats. Pending chats are written before the first operation read after
// their time is reached. Seek markers keep their gap and are pointed at the
// same operation in the output.
func assemble(res *Result, in Input, chats []ChatEvent) error {
	rec, s, err := aoe2rec.Open(in.Data)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	w := aoe2rec.NewWriter(&buf)

	head := append([]byte(nil), in.Data[:rec.BodyOffset]...)
	copy(head[4:8], []byte{0, 0, 0, 0})
	if err := w.WriteRaw(head); err != nil {
		return err
	}

	pending := chats
	for {
		op, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		for len(pending) > 0 && pending[0].Time <= s.Time() {
			if err := writeChat(w, &pending[0]); err != nil {
				return err
			}
			pending = pending[1:]
		}

		switch op := op.(type) {
		case *aoe2rec.Chat:
			if m, err := op.Message(); err == nil && Mergeable(m) {
				continue
			}
		case *aoe2rec.Seek:
			target := w.Written() + 4 + int64(len(op.Gap))
			if err := w.WriteOperation(&aoe2rec.Seek{Offset: uint32(target), Gap: op.Gap}); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteRawOperation(op, s.Raw()); err != nil {
			return err
		}
	}

	if len(pending) > 0 {
		res.warn("%d merged chats fall after the end of %s and were dropped", len(pending), in.Name)
	}
	res.Duration = w.Duration()
	res.Digest = w.Digest()
	res.Data = buf.Bytes()
	return w.Close()
}

func writeChat(w *aoe2rec.Writer, ev *ChatEvent) error {
	chat, err := aoe2rec.NewChat(&aoe2rec.ChatMessage{
		Player:     int(ev.Player),
		Channel:    ev.Channel,
		Message:    ev.Message,
		MessageAGP: ev.MessageAGP,
	})
	if err != nil {
		return err
	}
	return w.WriteOperation(chat)
}

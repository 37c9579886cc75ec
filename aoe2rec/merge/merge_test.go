package merge

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec/aoe2rectest"
)

func allChat(player int, name, msg string) *aoe2rec.Chat {
	return aoe2rectest.Chat(player, aoe2rec.ChannelAll, msg, fmt.Sprintf("@#%d%s: %s", player, name, msg))
}

// twoViews returns the recordings of players 1 and 2 in a three player
// match. Player 1 messages their team, player 3 messages player 2 and
// player 3 also writes to everyone. Player 2's recording runs longer.
func twoViews(h *aoe2rec.Header) (a, b []byte) {
	a = aoe2rectest.MustBuild(h, 1,
		aoe2rectest.Sync(100),
		aoe2rectest.Private(1, "alpha", "hi"),
		allChat(3, "gamma", "gl"),
		aoe2rectest.Sync(100),
		aoe2rectest.Sync(100),
	)
	b = aoe2rectest.MustBuild(h, 2,
		aoe2rectest.Sync(100),
		aoe2rectest.Private(1, "alpha", "hi"),
		allChat(3, "gamma", "gl"),
		aoe2rectest.Sync(100),
		aoe2rectest.Private(3, "gamma", "gg"),
		aoe2rectest.Sync(100),
		aoe2rectest.Sync(100),
	)
	return a, b
}

func readChats(t *testing.T, data []byte) ([]*aoe2rec.ChatMessage, uint32) {
	t.Helper()
	_, s, err := aoe2rec.Open(data)
	if err != nil {
		t.Fatal(err)
	}
	var msgs []*aoe2rec.ChatMessage
	for {
		op, err := s.Next()
		if errors.Is(err, io.EOF) {
			return msgs, s.Time()
		}
		if err != nil {
			t.Fatal(err)
		}
		if c, ok := op.(*aoe2rec.Chat); ok {
			m, err := c.Message()
			if err != nil {
				t.Fatal(err)
			}
			msgs = append(msgs, m)
		}
	}
}

func TestMerge(t *testing.T) {
	a, b := twoViews(aoe2rectest.Header(63, "alpha", "beta", "gamma"))
	res, err := Merge([]Input{{Name: "a", Data: a}, {Name: "b", Data: b}}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Backbone != "b" || res.Duration != 400 {
		t.Errorf("backbone %s duration %d", res.Backbone, res.Duration)
	}
	want := []Seat{{"a", 1, 1, 300}, {"b", 2, 2, 400}}
	for i, s := range res.Seats {
		if s != want[i] {
			t.Errorf("seat %d = %+v, want %+v", i, s, want[i])
		}
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if res.Digest != xxhash.Sum64(res.Data) {
		t.Error("digest does not match output")
	}

	msgs, end := readChats(t, res.Data)
	if end != 400 {
		t.Errorf("merged recording ends at %d", end)
	}
	wantAGP := []string{
		"@#1<2>1 alpha: hi",
		"@#3gamma: gl",
		"This replay contains any chats from/to 1 alpha, 2 beta.",
		"@#3<2>3 gamma: gg",
	}
	if len(msgs) != len(wantAGP) {
		t.Fatalf("%d chats in output, want %d", len(msgs), len(wantAGP))
	}
	for i, m := range msgs {
		if m.MessageAGP != wantAGP[i] {
			t.Errorf("chat %d = %q, want %q", i, m.MessageAGP, wantAGP[i])
		}
	}
	if msgs[0].Message != "<2> hi" || msgs[0].Player != 1 || msgs[0].Channel != 2 {
		t.Errorf("merged chat = %+v", msgs[0])
	}
	if msgs[2].Channel != aoe2rec.ChannelAll || msgs[2].Player != 0 {
		t.Errorf("welcome = %+v", msgs[2])
	}

	rec, err := aoe2rec.Decode(res.Data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.NextChapter != 0 || rec.Meta.ForceID != 2 {
		t.Errorf("envelope next chapter %d force %d", rec.NextChapter, rec.Meta.ForceID)
	}
}

func TestMergeWithoutWelcome(t *testing.T) {
	a, b := twoViews(aoe2rectest.Header(63, "alpha", "beta", "gamma"))
	opts := DefaultOptions()
	opts.Welcome = false
	res, err := Merge([]Input{{Name: "b", Data: b}, {Name: "a", Data: a}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chats) != 2 {
		t.Fatalf("chats = %+v", res.Chats)
	}
	if got := res.Chats[0].To; len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Errorf("recipients = %v", got)
	}
}

func TestMergeHeaderMismatch(t *testing.T) {
	h := aoe2rectest.Header(63, "alpha", "beta", "gamma")
	a, _ := twoViews(h)
	h.SelectedMapID = 29
	_, b := twoViews(h)
	res, err := Merge([]Input{{Name: "a", Data: a}, {Name: "b", Data: b}}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "selected_map_id") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestMergeMetaMismatch(t *testing.T) {
	a, b := twoViews(aoe2rectest.Header(63, "alpha", "beta", "gamma"))
	rec, err := aoe2rec.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	// Unknown2 is the third word of the log metadata.
	b = append([]byte(nil), b...)
	b[rec.BodyOffset-32+8] = 3

	res, err := Merge([]Input{{Name: "a", Data: a}, {Name: "b", Data: b}}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "meta_unknown2") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestMergeKeepsSeeks(t *testing.T) {
	h := aoe2rectest.Header(63, "alpha", "beta")
	a := aoe2rectest.MustBuild(h, 1, aoe2rectest.Sync(100), allChat(1, "alpha", "hi"))
	gap := []byte("skipped")
	a, _ = aoe2rec.AppendOperation(a, &aoe2rec.Seek{Offset: uint32(len(a) + 4 + len(gap)), Gap: gap})
	a, _ = aoe2rec.AppendOperation(a, aoe2rectest.Sync(100))
	b := aoe2rectest.MustBuild(h, 2, aoe2rectest.Sync(100))

	res, err := Merge([]Input{{Name: "a", Data: a}, {Name: "b", Data: b}}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Backbone != "a" || len(res.Warnings) != 0 {
		t.Fatalf("backbone %s warnings %v", res.Backbone, res.Warnings)
	}

	_, s, err := aoe2rec.Open(res.Data)
	if err != nil {
		t.Fatal(err)
	}
	var seeks []*aoe2rec.Seek
	for {
		at := s.Pos()
		op, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if sk, ok := op.(*aoe2rec.Seek); ok {
			if want := at + 4 + len(gap); int(sk.Offset) != want {
				t.Errorf("seek target %d, want %d", sk.Offset, want)
			}
			seeks = append(seeks, sk)
		}
	}
	if len(seeks) != 1 || string(seeks[0].Gap) != "skipped" {
		t.Fatalf("seeks = %+v", seeks)
	}
	if s.Time() != 200 {
		t.Errorf("merged recording ends at %d", s.Time())
	}
}

func TestMergeErrors(t *testing.T) {
	h := aoe2rectest.Header(63, "alpha", "beta")
	good := aoe2rectest.MustBuild(h, 1, aoe2rectest.Sync(100))

	chapters := append([]byte(nil), good...)
	chapters[4] = 1

	tests := []struct {
		name   string
		inputs []Input
		check  func(error) bool
	}{
		{"no inputs", nil, func(err error) bool { return err != nil }},
		{
			"chapters",
			[]Input{{Name: "a", Data: chapters}},
			func(err error) bool { return errors.Is(err, ErrChapters) },
		},
		{
			"corrupt input",
			[]Input{{Name: "a", Data: good[:10]}},
			func(err error) bool { return errors.Is(err, aoe2rec.ErrCorruptFormat) },
		},
		{
			"same seat twice",
			[]Input{{Name: "a", Data: good}, {Name: "b", Data: good}},
			isInconsistent,
		},
		{
			"unknown force",
			[]Input{{Name: "a", Data: aoe2rectest.MustBuild(h, 7, aoe2rectest.Sync(100))}},
			isInconsistent,
		},
		{
			"time increments differ",
			[]Input{
				{Name: "a", Data: good},
				{Name: "b", Data: aoe2rectest.MustBuild(h, 2, aoe2rectest.Sync(150))},
			},
			isInconsistent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(tt.inputs, DefaultOptions())
			if !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func isInconsistent(err error) bool {
	var ie *aoe2rec.InconsistentInputsError
	return errors.As(err, &ie)
}

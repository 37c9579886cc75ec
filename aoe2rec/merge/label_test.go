package merge

import (
	"testing"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec/aoe2rectest"
)

func players(names ...string) []aoe2rec.Player {
	var ps []aoe2rec.Player
	for i, n := range names {
		ps = append(ps, aoe2rectest.Player(uint32(i+1), n))
	}
	return ps
}

func TestLabel(t *testing.T) {
	ps := players("alpha", "beta", "gamma", "delta")
	tests := []struct {
		name    string
		ev      ChatEvent
		wantAGP string
		wantMsg string
	}{
		{
			name:    "everyone",
			ev:      ChatEvent{Player: 1, To: []uint32{1, 2, 3, 4}, Message: "hi"},
			wantAGP: "@#1<All>1 alpha: hi",
			wantMsg: "hi",
		},
		{
			name:    "subset sorted by color",
			ev:      ChatEvent{Player: 2, To: []uint32{4, 2, 3}, Message: "go"},
			wantAGP: "@#2<3,4>2 beta: go",
			wantMsg: "<3,4> go",
		},
		{
			name:    "only the sender",
			ev:      ChatEvent{Player: 3, To: []uint32{3}, Message: "note"},
			wantAGP: "@#33 gamma: note",
			wantMsg: "note",
		},
		{
			name:    "system line",
			ev:      ChatEvent{To: nil, Message: "welcome"},
			wantAGP: "welcome",
			wantMsg: "welcome",
		},
		{
			name:    "censored",
			ev:      ChatEvent{Player: 1, To: []uint32{2}, Message: "simp simple"},
			wantAGP: "@#1<2>1 alpha: **** simple",
			wantMsg: "<2> **** simple",
		},
	}
	censor := NewCensor([]string{"simp"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := tt.ev
			Label(&ev, ps, censor)
			if ev.MessageAGP != tt.wantAGP || ev.Message != tt.wantMsg {
				t.Errorf("got %q / %q, want %q / %q", ev.MessageAGP, ev.Message, tt.wantAGP, tt.wantMsg)
			}
		})
	}
}

func TestNewCensor(t *testing.T) {
	if NewCensor(nil) != nil || NewCensor([]string{" ", ""}) != nil {
		t.Error("empty word list should give a nil censor")
	}
	var none *Censor
	if got := none.apply("simp"); got != "simp" {
		t.Errorf("nil censor changed text to %q", got)
	}
	c := NewCensor([]string{"a.b", "noob"})
	if got := c.apply("a.b axb noob noobs"); got != "*** axb **** noobs" {
		t.Errorf("apply = %q", got)
	}
}

func TestWelcomeText(t *testing.T) {
	ps := players("alpha", "beta", "gamma")
	if got := welcomeText(ps, map[uint32]bool{1: true, 2: true, 3: true}); got != "This replay contains all chats." {
		t.Errorf("all seated: %q", got)
	}
	want := "This replay contains any chats from/to 1 alpha, 3 gamma."
	if got := welcomeText(ps, map[uint32]bool{1: true, 3: true}); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

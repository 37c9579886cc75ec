// Package merge combines several recordings of one match into a single
// recording that carries the private chat of every input.
package merge

import (
	"fmt"
	"strings"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
)

// DefaultWindow is how far back, in milliseconds, a chat line may be
// matched against an earlier copy of itself.
const DefaultWindow = 20000

// ChatEvent is a chat line seen by one or more recordings. To lists the
// player ids of the recordings that saw it, in order of first appearance.
type ChatEvent struct {
	Time       uint32
	Player     uint32
	To         []uint32
	Channel    int
	Message    string
	MessageAGP string
}

func (e *ChatEvent) sentTo(id uint32) bool {
	for _, t := range e.To {
		if t == id {
			return true
		}
	}
	return false
}

// Mergeable reports whether a chat line should be collected from every
// recording and merged. All chat is present in every recording already,
// metadata lines are written by tools, and lines whose messageAGP has no
// colon are game notices such as age advancement.
func Mergeable(m *aoe2rec.ChatMessage) bool {
	switch m.Channel {
	case aoe2rec.ChannelAll, aoe2rec.ChannelMetadata:
		return false
	}
	return strings.Contains(m.MessageAGP, ":")
}

// MergeChats collapses copies of the same line heard by different
// recordings. events must be sorted by time and carry exactly one
// recipient each.
//
// For each event the merged list is scanned backward. The scan stops at an
// entry that already has the event's recipient, so one recipient's
// conversation is never reordered, and at entries older than window. An
// entry with the same sender and text found before that absorbs the
// recipient; otherwise the event is appended.
func MergeChats(events []ChatEvent, window uint32) ([]ChatEvent, error) {
	merged := make([]ChatEvent, 0, len(events))
	for i, ev := range events {
		if len(ev.To) != 1 {
			return nil, fmt.Errorf("merge: chat event %d has %d recipients, want 1", i, len(ev.To))
		}
		to := ev.To[0]
		oldest := int64(ev.Time) - int64(window)

		same := -1
		for j := len(merged) - 1; j >= 0; j-- {
			cand := &merged[j]
			if cand.sentTo(to) || int64(cand.Time) < oldest {
				break
			}
			if cand.Player == ev.Player && cand.Message == ev.Message {
				same = j
				break
			}
		}
		if same >= 0 {
			merged[same].To = append(merged[same].To, to)
			continue
		}
		ev.To = []uint32{to}
		merged = append(merged, ev)
	}
	return merged, nil
}

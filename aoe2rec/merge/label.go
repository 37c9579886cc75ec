package merge

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
)

// Censor masks whole words in chat text.
type Censor struct {
	re *regexp.Regexp
}

// NewCensor returns a Censor for the given words. It returns nil, which
// censors nothing, when words is empty.
func NewCensor(words []string) *Censor {
	var quoted []string
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return &Censor{re: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

func (c *Censor) apply(s string) string {
	if c == nil {
		return s
	}
	return c.re.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat("*", utf8.RuneCountInString(m))
	})
}

func findPlayer(players []aoe2rec.Player, id uint32) *aoe2rec.Player {
	for i := range players {
		if players[i].PlayerID == id {
			return &players[i]
		}
	}
	return nil
}

// Label rewrites the text of a merged chat line so that a viewer can tell
// who it was sent to. MessageAGP becomes
//
//	@#<sender><recipients><color> <name>: <text>
//
// where recipients is "<All>" when every player saw the line, a list of
// recipient colors such as "<2,5>", or empty. Message gets the recipient
// list as a prefix unless the line reached everyone.
func Label(ev *ChatEvent, players []aoe2rec.Player, censor *Censor) {
	var marker, from string
	fromColor := -1
	if ev.Player != 0 {
		marker = "@#" + strconv.FormatUint(uint64(ev.Player), 10)
		if p := findPlayer(players, ev.Player); p != nil {
			fromColor = p.ColorNumber()
			from = fmt.Sprintf("%d %s: ", fromColor, p.Name)
		}
	}

	seen := make(map[int]bool)
	var colors []int
	for _, id := range ev.To {
		p := findPlayer(players, id)
		if p == nil {
			continue
		}
		c := p.ColorNumber()
		if c == fromColor || seen[c] {
			continue
		}
		seen[c] = true
		colors = append(colors, c)
	}
	sort.Ints(colors)

	all := true
	for i := range players {
		c := players[i].ColorNumber()
		if c != fromColor && !seen[c] {
			all = false
			break
		}
	}

	var to string
	switch {
	case all:
		to = "<All>"
	case len(colors) > 0:
		parts := make([]string, len(colors))
		for i, c := range colors {
			parts[i] = strconv.Itoa(c)
		}
		to = "<" + strings.Join(parts, ",") + ">"
	}

	msg := censor.apply(ev.Message)
	ev.MessageAGP = marker + to + from + msg
	if all || to == "" {
		ev.Message = msg
	} else {
		ev.Message = to + " " + msg
	}
}

// welcomeText describes which players' chat the merged recording holds.
func welcomeText(players []aoe2rec.Player, seated map[uint32]bool) string {
	var covered []string
	for i := range players {
		p := &players[i]
		if seated[p.PlayerID] {
			covered = append(covered, fmt.Sprintf("%d %s", p.ColorNumber(), p.Name))
		}
	}
	if len(covered) == len(players) {
		return "This replay contains all chats."
	}
	return "This replay contains any chats from/to " + strings.Join(covered, ", ") + "."
}

package aoe2rec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// AnonymousName is the name given to a player by Anonymize.
func AnonymousName(p *Player) string {
	return fmt.Sprintf("P%d", p.ColorNumber())
}

// Anonymize renames every player to AnonymousName, clears profile ids and
// marks all players as computers. Player names in chat text are replaced
// as well. It returns the new file and the old to new name mapping.
func Anonymize(data []byte) ([]byte, map[string]string, error) {
	rec, s, err := Open(data)
	if err != nil {
		return nil, nil, err
	}
	h := rec.Header

	names := make(map[string]string)
	var patches PatchList
	for i := range h.Players {
		p := &h.Players[i]
		name := AnonymousName(p)
		if p.Name != "" {
			np, err := NamePatches(h, p, name)
			if err != nil {
				return nil, nil, fmt.Errorf("player %d: %w", p.PlayerID, err)
			}
			patches = append(patches, np...)
			names[p.Name] = name
		}
		patches = append(patches,
			AINamePatch(p, name),
			ProfileIDPatch(p, 0),
			TypePatch(p, PlayerTypeComputer),
		)
	}
	if err := h.Apply(patches); err != nil {
		return nil, nil, err
	}

	replacer := nameReplacer(names)
	out, w, err := copyRecording(rec, s, func(msg *ChatMessage) {
		msg.Message = replacer.Replace(msg.Message)
		msg.MessageAGP = replacer.Replace(msg.MessageAGP)
	})
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Int("players", len(names)).Uint32("duration", w.Duration()).Msg("anonymized recording")
	return out, names, nil
}

// nameReplacer replaces longer names first so that a name containing
// another is not split.
func nameReplacer(names map[string]string) *strings.Replacer {
	old := make([]string, 0, len(names))
	for n := range names {
		old = append(old, n)
	}
	sort.Slice(old, func(i, j int) bool {
		if len(old[i]) != len(old[j]) {
			return len(old[i]) > len(old[j])
		}
		return old[i] < old[j]
	})
	pairs := make([]string, 0, 2*len(old))
	for _, n := range old {
		pairs = append(pairs, n, names[n])
	}
	return strings.NewReplacer(pairs...)
}

package aoe2rec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// deStringSize is the encoded size of a DE string holding s.
func deStringSize(s string) int { return 4 + len(s) }

func stringPatch(offset int, old, new string) Patch {
	return Patch{Offset: offset, Length: deStringSize(old), Replacement: appendDEString(nil, new)}
}

func u32Patch(offset int, v uint32) Patch {
	return Patch{Offset: offset, Length: 4, Replacement: binary.LittleEndian.AppendUint32(nil, v)}
}

// nameCopy is the free-standing second copy of a player name: u16 length
// including the NUL, the name, NUL.
func nameCopy(name string) []byte {
	b := binary.LittleEndian.AppendUint16(nil, uint16(len(name)+1))
	b = append(b, name...)
	return append(b, 0)
}

// NamePatches returns the patches that rename p: its name string and the
// second copy of the name elsewhere in the header. The second copy must
// occur exactly once outside p's own name string.
func NamePatches(h *Header, p *Player, name string) (PatchList, error) {
	if len(name)+1 > math.MaxUint16 {
		return nil, fmt.Errorf("aoe2rec: player name of %d bytes is too long", len(name))
	}
	if p.Name == "" {
		return nil, &AmbiguousNameLocationError{Name: p.Name, Count: 0}
	}
	needle := nameCopy(p.Name)
	var found []int
	for off := 0; ; {
		i := bytes.Index(h.Raw[off:], needle)
		if i < 0 {
			break
		}
		found = append(found, off+i)
		off += i + 1
	}
	if len(found) != 1 {
		return nil, &AmbiguousNameLocationError{Name: p.Name, Count: len(found)}
	}
	return PatchList{
		stringPatch(p.NameOffset, p.Name, name),
		{Offset: found[0], Length: len(needle), Replacement: nameCopy(name)},
	}, nil
}

// AINamePatch replaces the AI name of p.
func AINamePatch(p *Player, name string) Patch {
	return stringPatch(p.AINameOffset, p.AIName, name)
}

// ProfileIDPatch replaces the profile id of p.
func ProfileIDPatch(p *Player, id uint32) Patch {
	return u32Patch(p.ProfileIDOffset, id)
}

// TypePatch replaces the player type of p.
func TypePatch(p *Player, typ uint32) Patch {
	return u32Patch(p.TypeOffset, typ)
}

// RenamePlayer renames the player in the given slot and re-decodes h.
func (h *Header) RenamePlayer(id uint32, name string) error {
	p := h.Player(id)
	if p == nil {
		return fmt.Errorf("aoe2rec: no player in slot %d", id)
	}
	patches, err := NamePatches(h, p, name)
	if err != nil {
		return err
	}
	return h.Apply(patches)
}

// ColorPatch replaces the color id of p. The color id is the second field
// of the player record.
func ColorPatch(p *Player, colorID int32) Patch {
	return u32Patch(p.Offset+4, uint32(colorID))
}

// SelectedColorPatch replaces the color p picked in the lobby, the byte
// after the color id. 255 means none.
func SelectedColorPatch(p *Player, color uint8) Patch {
	return Patch{Offset: p.Offset + 8, Length: 1, Replacement: []byte{color}}
}

// NumColors is the number of player colors.
const NumColors = 8

// FixColors returns patches that give every player a color of their own.
// Players keep their color in slot order; a later player sharing a color
// gets the lowest color nobody uses and has the lobby pick cleared.
func FixColors(h *Header) (PatchList, error) {
	used := make(map[int32]bool)
	for i := range h.Players {
		used[h.Players[i].ColorID] = true
	}
	taken := make(map[int32]bool)
	var patches PatchList
	for i := range h.Players {
		p := &h.Players[i]
		if p.ColorID < 0 {
			continue
		}
		if !taken[p.ColorID] {
			taken[p.ColorID] = true
			continue
		}
		free := int32(-1)
		for c := int32(0); c < NumColors; c++ {
			if !used[c] {
				free = c
				break
			}
		}
		if free < 0 {
			return nil, fmt.Errorf("aoe2rec: no free color for player %d", p.PlayerID)
		}
		used[free], taken[free] = true, true
		patches = append(patches, ColorPatch(p, free), SelectedColorPatch(p, 255))
	}
	return patches, nil
}

// Package aoe2rectest builds synthetic recorded games for tests.
package aoe2rectest

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
)

// LobbyGUID is the GUID stored in headers made by Header.
var LobbyGUID = uuid.MustParse("8a3c5e1f-2b4d-4f6a-9c8e-0d1f2a3b4c5d")

// Header returns a header of the given save version with one seated
// player per name. Player i (1-based) has force id i and color id i-1.
// Before version 37 the remaining of the eight slots are unused.
//
// Tail holds the second copy of every non-empty name, so the header can be
// renamed.
func Header(version float64, names ...string) *aoe2rec.Header {
	h := &aoe2rec.Header{
		GameVersion:        aoe2rec.GameVersion,
		SaveVersion:        version,
		Build:              66692,
		Timestamp:          1700000000,
		OptionsVersion:     1000,
		IntervalVersion:    0,
		GameOptionsVersion: 1000,
		DLCIDs:             []uint32{2, 3, 4, 7},
		DatasetRef:         100,
		SelectedMapID:      9,
		ResolvedMapID:      9,
		VictoryTypeID:      9,
		GameType:           0,
		Speed:              1.69,
		PopulationLimit:    200,
		NumPlayers:         uint32(len(names)),
		UnusedPlayerColor:  0xFFFFFFFF,
		LockTeams:          true,
		Multiplayer:        true,
		RecordGame:         true,
		AnimalsEnabled:     true,
		PredatorsEnabled:   true,
		SharedExploration:  true,
		BattleRoyaleTime:   30,
		FogOfWar:           1,
		ColoredChat:        1,
		LobbyVisibility:    2,
		SpectatorDelay:     2,
		RMSCRC:             0x12345678,
		GUID:               LobbyGUID,
		LobbyName:          "test lobby",
	}

	slots := len(names)
	if version < 37 && slots < 8 {
		slots = 8
	}
	for i := 1; i <= slots; i++ {
		if i > len(names) {
			h.UnusedSlots = append(h.UnusedSlots, UnusedSlot(uint32(i)))
			continue
		}
		h.Players = append(h.Players, Player(uint32(i), names[i-1]))
	}

	h.TaggedStrings = make([]aoe2rec.TaggedString, 23)
	h.TaggedStrings[0] = aoe2rec.TaggedString{Text: "Arabia", Tags: []uint32{3, 21}, End: 1}
	h.TaggedStrings[5] = aoe2rec.TaggedString{Text: "tagged", Tags: []uint32{42}, End: 0}

	for _, n := range names {
		if n != "" {
			h.Tail = append(h.Tail, NameCopy(n)...)
		}
	}
	return h
}

// Player returns a human player in slot id.
func Player(id uint32, name string) aoe2rec.Player {
	return aoe2rec.Player{
		PlayerID:       id,
		DLCID:          2,
		ColorID:        int32(id) - 1,
		SelectedColor:  uint8(id),
		SelectedTeamID: 1,
		ResolvedTeamID: uint8(id),
		DatCRC:         []byte{1, 2, 3, 4, 5, 6, 7, 8},
		MPGameVersion:  2,
		CivID:          id + 10,
		AIType:         "PromiDE",
		AICivNameIndex: 0,
		AIName:         "",
		Name:           name,
		Type:           aoe2rec.PlayerTypeHuman,
		ProfileID:      1000 + id,
		ForceID:        id,
		PreferRandom:   0,
	}
}

// UnusedSlot returns an empty player slot.
func UnusedSlot(id uint32) aoe2rec.Player {
	return aoe2rec.Player{
		PlayerID: id,
		ColorID:  -1,
		DatCRC:   make([]byte, 8),
		ForceID:  aoe2rec.UnusedSlot,
	}
}

// NameCopy is the free-standing form of a player name found once in every
// header.
func NameCopy(name string) []byte {
	b := binary.LittleEndian.AppendUint16(nil, uint16(len(name)+1))
	b = append(b, name...)
	return append(b, 0)
}

// Build encodes h and the operations into a complete recording made by
// forceID.
func Build(h *aoe2rec.Header, forceID uint32, ops ...aoe2rec.Operation) ([]byte, error) {
	blob, err := aoe2rec.MarshalHeader(h)
	if err != nil {
		return nil, err
	}
	rec := &aoe2rec.Recording{
		Header: &aoe2rec.Header{Raw: blob},
		Meta:   aoe2rec.Meta{LogVersion: 5, Unknown1: 1, ForceID: forceID},
	}
	out, err := aoe2rec.Encode(rec)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if out, err = aoe2rec.AppendOperation(out, op); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MustBuild is like Build but panics on error.
func MustBuild(h *aoe2rec.Header, forceID uint32, ops ...aoe2rec.Operation) []byte {
	b, err := Build(h, forceID, ops...)
	if err != nil {
		panic(fmt.Sprintf("aoe2rectest: %v", err))
	}
	return b
}

// Chat returns a chat record from player on channel. agp is the
// messageAGP text.
func Chat(player, channel int, message, agp string) *aoe2rec.Chat {
	c, err := aoe2rec.NewChat(&aoe2rec.ChatMessage{
		Player:     player,
		Channel:    channel,
		Message:    message,
		MessageAGP: agp,
	})
	if err != nil {
		panic(fmt.Sprintf("aoe2rectest: %v", err))
	}
	return c
}

// Private returns a team chat line as the game writes it.
func Private(player int, name, message string) *aoe2rec.Chat {
	return Chat(player, 2, message, fmt.Sprintf("@#%d%s: %s", player, name, message))
}

// Sync returns a sync record.
func Sync(ms uint32) *aoe2rec.Sync {
	return &aoe2rec.Sync{TimeIncrement: ms}
}

// Action returns an action record with a payload of n bytes plus the four
// trailing bytes.
func Action(n int) *aoe2rec.Action {
	data := make([]byte, n+4)
	for i := range data {
		data[i] = byte(i)
	}
	return &aoe2rec.Action{Data: data}
}

package aoe2rec

import "fmt"

// UnusedSlot is the force id of a player slot that holds no seat.
const UnusedSlot = 0xFFFFFFFF

// Player types as stored in the header.
const (
	PlayerTypeHuman    uint32 = 2
	PlayerTypeComputer uint32 = 4
)

// Player is one seat of the match.
//
// ForceID is the army the player controls. It equals PlayerID except in
// co-op games, where several players share a force.
//
// The *Offset fields address Header.Raw. They are only valid for the Raw
// buffer the player was decoded from; Header.Apply refreshes them.
type Player struct {
	PlayerID       uint32
	DLCID          uint32
	ColorID        int32
	SelectedColor  uint8
	SelectedTeamID uint8
	ResolvedTeamID uint8
	DatCRC         []byte
	MPGameVersion  uint8
	CivID          uint32
	AIType         string
	AICivNameIndex uint8
	AIName         string
	Name           string
	Type           uint32
	ProfileID      uint32
	ForceID        uint32
	HDRMElo        uint32
	HDDMElo        uint32
	PreferRandom   uint8
	CustomAI       uint8
	Unknown        Opaque `json:"-"`

	Offset          int `json:"-"`
	AINameOffset    int `json:"-"`
	NameOffset      int `json:"-"`
	TypeOffset      int `json:"-"`
	ProfileIDOffset int `json:"-"`
}

// ColorNumber is the 1-based color shown in game.
func (p *Player) ColorNumber() int {
	return int(p.ColorID) + 1
}

var playerLayout = []field[Player]{
	u32Field("dlc_id", 0, func(p *Player) *uint32 { return &p.DLCID }),
	i32Field("color_id", 0, func(p *Player) *int32 { return &p.ColorID }),
	u8Field("selected_color", 0, func(p *Player) *uint8 { return &p.SelectedColor }),
	u8Field("selected_team_id", 0, func(p *Player) *uint8 { return &p.SelectedTeamID }),
	u8Field("resolved_team_id", 0, func(p *Player) *uint8 { return &p.ResolvedTeamID }),
	{name: "dat_crc", code: func(c coder, p *Player) error { return c.raw(&p.DatCRC, 8) }},
	u8Field("mp_game_version", 0, func(p *Player) *uint8 { return &p.MPGameVersion }),
	u32Field("civ_id", 0, func(p *Player) *uint32 { return &p.CivID }),
	strField("ai_type", 0, 0, func(p *Player) *string { return &p.AIType }),
	u8Field("ai_civ_name_index", 0, func(p *Player) *uint8 { return &p.AICivNameIndex }),
	{name: "ai_name", code: func(c coder, p *Player) error {
		p.AINameOffset = c.pos()
		return c.str(&p.AIName)
	}},
	{name: "name", code: func(c coder, p *Player) error {
		p.NameOffset = c.pos()
		return c.str(&p.Name)
	}},
	{name: "type", code: func(c coder, p *Player) error {
		p.TypeOffset = c.pos()
		return c.u32(&p.Type)
	}},
	{name: "profile_id", code: func(c coder, p *Player) error {
		p.ProfileIDOffset = c.pos()
		return c.u32(&p.ProfileID)
	}},
	opaqueField("unknown8", 0, 0, 4, func(p *Player) *Opaque { return &p.Unknown }),
	u32Field("force_id", 0, func(p *Player) *uint32 { return &p.ForceID }),
	{name: "hd_elo", until: 25.22, code: func(c coder, p *Player) error {
		if err := c.u32(&p.HDRMElo); err != nil {
			return err
		}
		return c.u32(&p.HDDMElo)
	}},
	u8Field("prefer_random", 0, func(p *Player) *uint8 { return &p.PreferRandom }),
	u8Field("custom_ai", 0, func(p *Player) *uint8 { return &p.CustomAI }),
	opaqueField("handicap", 25.06, 0, 8, func(p *Player) *Opaque { return &p.Unknown }),
	opaqueField("unknown_62", 62.0, 0, 4, func(p *Player) *Opaque { return &p.Unknown }),
}

// slotCount is the number of player records in the header: always eight
// before version 37, the lobby's player count from then on.
func slotCount(version float64, numPlayers uint32) int {
	if version < 37 {
		return 8
	}
	return int(numPlayers)
}

func codePlayers(c coder, h *Header) error {
	n := slotCount(c.version(), h.NumPlayers)
	if c.decoding() {
		h.Players, h.UnusedSlots = nil, nil
		for i := 1; i <= n; i++ {
			p := Player{PlayerID: uint32(i), Offset: c.pos()}
			if err := runLayout(c, playerLayout, &p); err != nil {
				return fmt.Errorf("player slot %d: %w", i, err)
			}
			if p.ForceID == UnusedSlot {
				h.UnusedSlots = append(h.UnusedSlots, p)
				continue
			}
			h.Players = append(h.Players, p)
		}
		return nil
	}

	slots := h.slots()
	if len(slots) != n {
		return fmt.Errorf("aoe2rec: header has %d player slots, layout wants %d", len(slots), n)
	}
	for i := range slots {
		slots[i].Offset = c.pos()
		if err := runLayout(c, playerLayout, &slots[i]); err != nil {
			return fmt.Errorf("player slot %d: %w", slots[i].PlayerID, err)
		}
	}
	return nil
}

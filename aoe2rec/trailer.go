package aoe2rec

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// maxMapSize bounds the map dimensions accepted by the trailer decoder.
const maxMapSize = 1024

// mapTileSize is the size of one tile record in the map block.
const mapTileSize = 7

// zoneInfoSize is the fixed prefix of each map zone record.
const zoneInfoSize = 2048

var errTrailerSkipped = errors.New("trailer not decoded")

// Trailer is the part of the header after the lobby settings. It is decoded
// on a best effort basis; Map is nil when the map block could not be read.
type Trailer struct {
	IncludeAI uint32

	OldTime               uint32
	WorldTime             uint32
	OldWorldTime          uint32
	WorldTimeDelta        uint32
	WorldTimeDeltaSeconds float32
	Timer                 float32
	GameSpeed             float32
	TempPause             uint8
	NextObjectID          uint32
	NextReusableObjectID  int32
	RandomSeed            uint32
	RandomSeed2           uint32
	RecPlayer             uint16
	NumPlayers            uint8
	InstantBuild          bool
	CheatsEnabled         bool
	GameMode              uint16
	Campaign              uint32
	CampaignPlayer        uint32
	CampaignScenario      uint32
	KingCampaign          uint32
	KingCampaignPlayer    uint8
	KingCampaignScenario  uint8
	PlayerTurn            uint32
	PlayerTurns           []byte `json:"-"`

	Map *Map

	Unknown Opaque `json:"-"`
}

// Map is the tile map block. Zone data is kept opaque.
type Map struct {
	SizeX      uint32
	SizeY      uint32
	Zones      []byte `json:"-"`
	AllVisible uint8
	FogOfWar   uint8
	Tiles      []byte `json:"-"`
}

// Terrain returns the terrain type of the tile at x, y.
func (m *Map) Terrain(x, y int) (uint8, bool) {
	i := (y*int(m.SizeX) + x) * mapTileSize
	if x < 0 || y < 0 || x >= int(m.SizeX) || y >= int(m.SizeY) || i >= len(m.Tiles) {
		return 0, false
	}
	return m.Tiles[i], true
}

// Elevation returns the elevation of the tile at x, y.
func (m *Map) Elevation(x, y int) (uint8, bool) {
	i := (y*int(m.SizeX)+x)*mapTileSize + 2
	if x < 0 || y < 0 || x >= int(m.SizeX) || y >= int(m.SizeY) || i >= len(m.Tiles) {
		return 0, false
	}
	return m.Tiles[i], true
}

func trailerU32(name string, p func(*Trailer) *uint32) field[Trailer] {
	return u32Field(name, 0, p)
}

func trailerUnknown(t *Trailer) *Opaque { return &t.Unknown }

func trailerU8(name string, p func(*Trailer) *uint8) field[Trailer] {
	return u8Field(name, 0, p)
}

var replayLayout = []field[Trailer]{
	{name: "include_ai", code: func(c coder, t *Trailer) error {
		if err := c.u32(&t.IncludeAI); err != nil {
			return err
		}
		// AI scripts are not decoded; nothing after them can be located.
		if c.decoding() && t.IncludeAI != 0 {
			return errTrailerSkipped
		}
		return nil
	}},
	trailerU32("old_time", func(t *Trailer) *uint32 { return &t.OldTime }),
	trailerU32("world_time", func(t *Trailer) *uint32 { return &t.WorldTime }),
	trailerU32("old_world_time", func(t *Trailer) *uint32 { return &t.OldWorldTime }),
	trailerU32("world_time_delta", func(t *Trailer) *uint32 { return &t.WorldTimeDelta }),
	f32Field("world_time_delta_seconds", 0, func(t *Trailer) *float32 { return &t.WorldTimeDeltaSeconds }),
	f32Field("timer", 0, func(t *Trailer) *float32 { return &t.Timer }),
	f32Field("game_speed", 0, func(t *Trailer) *float32 { return &t.GameSpeed }),
	trailerU8("temp_pause", func(t *Trailer) *uint8 { return &t.TempPause }),
	trailerU32("next_object_id", func(t *Trailer) *uint32 { return &t.NextObjectID }),
	i32Field("next_reusable_object_id", 0, func(t *Trailer) *int32 { return &t.NextReusableObjectID }),
	trailerU32("random_seed", func(t *Trailer) *uint32 { return &t.RandomSeed }),
	trailerU32("random_seed2", func(t *Trailer) *uint32 { return &t.RandomSeed2 }),
	u16Field("rec_player", 0, func(t *Trailer) *uint16 { return &t.RecPlayer }),
	trailerU8("num_players", func(t *Trailer) *uint8 { return &t.NumPlayers }),
	flagField("instant_build", 0, func(t *Trailer) *bool { return &t.InstantBuild }, trailerUnknown),
	flagField("cheats_enabled", 0, func(t *Trailer) *bool { return &t.CheatsEnabled }, trailerUnknown),
	u16Field("game_mode", 0, func(t *Trailer) *uint16 { return &t.GameMode }),
	trailerU32("campaign", func(t *Trailer) *uint32 { return &t.Campaign }),
	trailerU32("campaign_player", func(t *Trailer) *uint32 { return &t.CampaignPlayer }),
	trailerU32("campaign_scenario", func(t *Trailer) *uint32 { return &t.CampaignScenario }),
	trailerU32("king_campaign", func(t *Trailer) *uint32 { return &t.KingCampaign }),
	trailerU8("king_campaign_player", func(t *Trailer) *uint8 { return &t.KingCampaignPlayer }),
	trailerU8("king_campaign_scenario", func(t *Trailer) *uint8 { return &t.KingCampaignScenario }),
	trailerU32("player_turn", func(t *Trailer) *uint32 { return &t.PlayerTurn }),
	{name: "player_turns", code: func(c coder, t *Trailer) error { return c.raw(&t.PlayerTurns, 9*4) }},
	{name: "rec_player_check", code: func(c coder, t *Trailer) error {
		if c.decoding() && (t.NumPlayers > 9 || int(t.RecPlayer) > int(t.NumPlayers)) {
			return corrupt(c.pos(), "replay player counts", "at most 9 players", t.NumPlayers)
		}
		return nil
	}},
}

var mapLayout = []field[Map]{
	{name: "size", code: func(c coder, m *Map) error {
		if err := c.u32(&m.SizeX); err != nil {
			return err
		}
		if err := c.u32(&m.SizeY); err != nil {
			return err
		}
		if c.decoding() && (m.SizeX == 0 || m.SizeY == 0 || m.SizeX > maxMapSize || m.SizeY > maxMapSize) {
			return corrupt(c.pos()-8, "map size", "1 to 1024 tiles", [2]uint32{m.SizeX, m.SizeY})
		}
		return nil
	}},
	{name: "zones", code: codeZones},
	u8Field("all_visible", 0, func(m *Map) *uint8 { return &m.AllVisible }),
	u8Field("fog_of_war", 0, func(m *Map) *uint8 { return &m.FogOfWar }),
	{name: "tiles", code: func(c coder, m *Map) error {
		if c.decoding() && (m.AllVisible > 1 || m.FogOfWar > 1) {
			return corrupt(c.pos()-2, "map visibility flags", "0 or 1", [2]uint8{m.AllVisible, m.FogOfWar})
		}
		return c.raw(&m.Tiles, int(m.SizeX*m.SizeY)*mapTileSize)
	}},
}

// codeZones handles the zone list: u32 count, then per zone a fixed info
// block, one u32 per tile, and a counted list of floats.
func codeZones(c coder, m *Map) error {
	d, decoding := c.(*layoutDecoder)
	if !decoding {
		return c.raw(&m.Zones, len(m.Zones))
	}
	start := d.c.Pos()
	n, err := d.c.U32()
	if err != nil {
		return err
	}
	if n > 16 {
		return corrupt(start, "map zone count", "at most 16", n)
	}
	tiles := int(m.SizeX * m.SizeY)
	for i := uint32(0); i < n; i++ {
		if err := d.c.Skip(zoneInfoSize + 4*tiles); err != nil {
			return err
		}
		floats, err := d.c.U32()
		if err != nil {
			return err
		}
		if int64(floats)*4 > int64(d.c.Remaining()) {
			return corrupt(d.c.Pos()-4, "map zone float count", "fits in header", floats)
		}
		if err := d.c.Skip(int(floats) * 4); err != nil {
			return err
		}
	}
	m.Zones = append([]byte(nil), d.c.buf[start:d.c.Pos()]...)
	return nil
}

// decodeTrailer reads what it can of the region following the lobby
// settings. It never fails: whatever is not decoded becomes h.Tail.
func (h *Header) decodeTrailer(c *Cursor) {
	start := c.Pos()
	h.Tail = c.buf[start:]
	if c.Remaining() == 0 {
		return
	}

	sub := &Cursor{buf: c.buf, off: start}
	t := &Trailer{}
	if err := runLayout(&layoutDecoder{c: sub, v: h.SaveVersion}, replayLayout, t); err != nil {
		if !errors.Is(err, errTrailerSkipped) {
			log.Debug().Err(err).Int("offset", start).Msg("header trailer left opaque")
		}
		return
	}
	h.Trailer = t
	h.Tail = c.buf[sub.Pos():]

	mapStart := sub.Pos()
	m := &Map{}
	if err := runLayout(&layoutDecoder{c: sub, v: h.SaveVersion}, mapLayout, m); err != nil {
		log.Debug().Err(err).Int("offset", mapStart).Msg("header map block left opaque")
		return
	}
	t.Map = m
	h.Tail = c.buf[sub.Pos():]
}

// trailerLayout encodes a decoded Trailer back to bytes.
var trailerLayout = []field[Trailer]{
	{name: "replay", code: func(c coder, t *Trailer) error { return runLayout(c, replayLayout, t) }},
	{name: "map", code: func(c coder, t *Trailer) error {
		if t.Map == nil {
			return nil
		}
		return runLayout(c, mapLayout, t.Map)
	}},
}

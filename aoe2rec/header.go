package aoe2rec

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GameVersion is the version tag every supported header starts with. The
// rest of the layout depends on it, so any other value is fatal.
const GameVersion = "VER 9.4"

// MinSaveVersion is the oldest save format version this package has been
// checked against. Older files are parsed anyway, with a warning.
const MinSaveVersion = 12.97

// numTaggedStrings is the fixed number of strings in the lobby string table.
const numTaggedStrings = 23

// stringTags are the values that may follow a lobby table string. The first
// value outside this set ends the string's tag list.
var stringTags = map[uint32]bool{3: true, 21: true, 23: true, 42: true, 44: true, 45: true, 46: true, 47: true}

// Header is the decoded form of a recording's compressed header.
//
// Raw is the decompressed blob the header was parsed from and is the
// authoritative source for re-encoding. Edits that change the length of
// anything inside Raw must go through Apply so that the offsets recorded in
// Players stay valid.
type Header struct {
	GameVersion string
	SaveVersion float64
	// SaveBuild is the integer stored after a -1.0 save version, zero when
	// the version was stored as a plain float.
	SaveBuild uint32
	saveFloat float32

	Build              uint32
	Timestamp          uint32
	OptionsVersion     float32
	IntervalVersion    uint32
	GameOptionsVersion uint32
	DLCIDs             []uint32

	DatasetRef          uint32
	DifficultyID        uint32
	SelectedMapID       uint32
	ResolvedMapID       uint32
	RevealMap           uint32
	VictoryTypeID       uint32
	StartingResourcesID uint32
	StartingAgeID       uint32
	EndingAgeID         uint32
	GameType            uint32
	Speed               float32
	TreatyLength        uint32
	PopulationLimit     uint32
	NumPlayers          uint32
	UnusedPlayerColor   uint32
	VictoryAmount       uint32

	TradeEnabled      bool
	TeamBonusDisabled bool
	RandomPositions   bool
	AllTechs          bool
	NumStartingUnits  uint8
	LockTeams         bool
	LockSpeed         bool
	Multiplayer       bool
	Cheats            bool
	RecordGame        bool
	AnimalsEnabled    bool
	PredatorsEnabled  bool
	TurboEnabled      bool
	SharedExploration bool
	TeamPositions     bool
	SubGameMode       uint32
	BattleRoyaleTime  uint32

	Players     []Player
	UnusedSlots []Player

	FogOfWar           uint8
	CheatNotifications uint8
	ColoredChat        uint8

	Ranked          bool
	AllowSpectators bool
	LobbyVisibility uint32
	HiddenCivs      bool
	Matchmaking     bool
	SpectatorDelay  uint32
	ScenarioCiv     uint8
	RMSCRC          uint32

	TaggedStrings []TaggedString
	GUID          uuid.UUID
	LobbyName     string
	ModdedDataset string
	Unknown19     string
	Unknown23     string

	// Trailer is nil when the region after the lobby settings could not be
	// decoded; Tail then holds all of it.
	Trailer *Trailer
	Tail    []byte `json:"-"`

	Unknown  Opaque  `json:"-"`
	Raw      []byte  `json:"-"`
	Warnings []error `json:"-"`
}

// TaggedString is one entry of the lobby string table: a string followed by
// a list of small tag values and the terminating value that ended the list.
type TaggedString struct {
	Text string
	Tags []uint32
	End  uint32
}

// Player returns the player in the given slot, or nil.
func (h *Header) Player(id uint32) *Player {
	for i := range h.Players {
		if h.Players[i].PlayerID == id {
			return &h.Players[i]
		}
	}
	return nil
}

// slots returns a copy of all player slots, used and unused, in slot order.
func (h *Header) slots() []Player {
	all := make([]Player, 0, len(h.Players)+len(h.UnusedSlots))
	all = append(all, h.Players...)
	all = append(all, h.UnusedSlots...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].PlayerID < all[j].PlayerID })
	return all
}

func headerField(name string, since float64, p func(*Header) *uint32) field[Header] {
	return u32Field(name, since, p)
}

func headerFlag(name string, p func(*Header) *bool) field[Header] {
	return flagField(name, 0, p, func(h *Header) *Opaque { return &h.Unknown })
}

func headerOpaque(name string, since, until float64, n int) field[Header] {
	return opaqueField(name, since, until, n, func(h *Header) *Opaque { return &h.Unknown })
}

// settingsLayout lists the lobby settings section of the header in wire
// order. New format revisions add entries with a higher since value.
var settingsLayout = []field[Header]{
	headerField("build", 25.22, func(h *Header) *uint32 { return &h.Build }),
	headerField("timestamp", 26.16, func(h *Header) *uint32 { return &h.Timestamp }),
	f32Field("options_version", 0, func(h *Header) *float32 { return &h.OptionsVersion }),
	headerField("interval_version", 0, func(h *Header) *uint32 { return &h.IntervalVersion }),
	headerField("game_options_version", 0, func(h *Header) *uint32 { return &h.GameOptionsVersion }),
	{name: "dlc_ids", code: codeDLCIDs},
	headerField("dataset_ref", 0, func(h *Header) *uint32 { return &h.DatasetRef }),
	headerField("difficulty_id", 0, func(h *Header) *uint32 { return &h.DifficultyID }),
	headerField("selected_map_id", 0, func(h *Header) *uint32 { return &h.SelectedMapID }),
	headerField("resolved_map_id", 0, func(h *Header) *uint32 { return &h.ResolvedMapID }),
	headerField("reveal_map", 0, func(h *Header) *uint32 { return &h.RevealMap }),
	headerField("victory_type_id", 0, func(h *Header) *uint32 { return &h.VictoryTypeID }),
	headerField("starting_resources_id", 0, func(h *Header) *uint32 { return &h.StartingResourcesID }),
	headerField("starting_age_id", 0, func(h *Header) *uint32 { return &h.StartingAgeID }),
	headerField("ending_age_id", 0, func(h *Header) *uint32 { return &h.EndingAgeID }),
	headerField("game_type", 0, func(h *Header) *uint32 { return &h.GameType }),
	sentinelField[Header]("separator1"),
	sentinelField[Header]("separator2"),
	f32Field("speed", 0, func(h *Header) *float32 { return &h.Speed }),
	headerField("treaty_length", 0, func(h *Header) *uint32 { return &h.TreatyLength }),
	headerField("population_limit", 0, func(h *Header) *uint32 { return &h.PopulationLimit }),
	headerField("num_players", 0, func(h *Header) *uint32 { return &h.NumPlayers }),
	headerField("unused_player_color", 0, func(h *Header) *uint32 { return &h.UnusedPlayerColor }),
	headerField("victory_amount", 0, func(h *Header) *uint32 { return &h.VictoryAmount }),
	headerOpaque("unknown_61_5", 61.5, 0, 1),
	sentinelField[Header]("separator3"),
	headerFlag("trade_enabled", func(h *Header) *bool { return &h.TradeEnabled }),
	headerFlag("team_bonus_disabled", func(h *Header) *bool { return &h.TeamBonusDisabled }),
	headerFlag("random_positions", func(h *Header) *bool { return &h.RandomPositions }),
	headerFlag("all_techs", func(h *Header) *bool { return &h.AllTechs }),
	u8Field("num_starting_units", 0, func(h *Header) *uint8 { return &h.NumStartingUnits }),
	headerFlag("lock_teams", func(h *Header) *bool { return &h.LockTeams }),
	headerFlag("lock_speed", func(h *Header) *bool { return &h.LockSpeed }),
	headerFlag("multiplayer", func(h *Header) *bool { return &h.Multiplayer }),
	headerFlag("cheats", func(h *Header) *bool { return &h.Cheats }),
	headerFlag("record_game", func(h *Header) *bool { return &h.RecordGame }),
	headerFlag("animals_enabled", func(h *Header) *bool { return &h.AnimalsEnabled }),
	headerFlag("predators_enabled", func(h *Header) *bool { return &h.PredatorsEnabled }),
	headerFlag("turbo_enabled", func(h *Header) *bool { return &h.TurboEnabled }),
	headerFlag("shared_exploration", func(h *Header) *bool { return &h.SharedExploration }),
	headerFlag("team_positions", func(h *Header) *bool { return &h.TeamPositions }),
	headerField("sub_game_mode", 13.34, func(h *Header) *uint32 { return &h.SubGameMode }),
	headerField("battle_royale_time", 13.34, func(h *Header) *uint32 { return &h.BattleRoyaleTime }),
	headerOpaque("handicap", 25.06, 0, 1),
	headerOpaque("unknown_50", 50, 0, 1),
	sentinelField[Header]("separator4"),
	{name: "players", code: codePlayers},
	headerOpaque("unknown_after_players", 0, 0, 9),
	u8Field("fog_of_war", 0, func(h *Header) *uint8 { return &h.FogOfWar }),
	u8Field("cheat_notifications", 0, func(h *Header) *uint8 { return &h.CheatNotifications }),
	u8Field("colored_chat", 0, func(h *Header) *uint8 { return &h.ColoredChat }),
	sentinelField[Header]("separator5"),
	headerFlag("ranked", func(h *Header) *bool { return &h.Ranked }),
	headerFlag("allow_specs", func(h *Header) *bool { return &h.AllowSpectators }),
	headerField("lobby_visibility", 0, func(h *Header) *uint32 { return &h.LobbyVisibility }),
	headerFlag("hidden_civs", func(h *Header) *bool { return &h.HiddenCivs }),
	headerFlag("matchmaking", func(h *Header) *bool { return &h.Matchmaking }),
	headerField("spec_delay", 0, func(h *Header) *uint32 { return &h.SpectatorDelay }),
	u8Field("scenario_civ", 13.13, func(h *Header) *uint8 { return &h.ScenarioCiv }),
	headerField("rms_crc", 13.13, func(h *Header) *uint32 { return &h.RMSCRC }),
	{name: "tagged_strings", code: codeTaggedStrings},
	headerOpaque("unknown7", 0, 0, 16),
	{name: "guid", code: codeGUID},
	strField("lobby_name", 0, 0, func(h *Header) *string { return &h.LobbyName }),
	headerOpaque("unknown10", 25.22, 0, 8),
	strField("modded_dataset", 0, 0, func(h *Header) *string { return &h.ModdedDataset }),
	headerOpaque("unknown11", 0, 0, 19),
	headerOpaque("unknown12", 13.13, 0, 5),
	headerOpaque("unknown13", 13.17, 0, 9),
	headerOpaque("unknown14", 20.06, 0, 1),
	headerOpaque("unknown15", 20.16, 0, 8),
	headerOpaque("unknown16", 25.06, 0, 21),
	headerOpaque("unknown17", 25.22, 0, 4),
	headerOpaque("unknown18", 26.16, 0, 8),
	strField("unknown19", 0, 0, func(h *Header) *string { return &h.Unknown19 }),
	headerOpaque("unknown20", 0, 0, 5),
	headerOpaque("unknown21", 13.13, 0, 1),
	headerOpaque("unknown22", 13.17, 0, 2),
	strField("unknown23", 0, 13.17, func(h *Header) *string { return &h.Unknown23 }),
	headerOpaque("unknown24", 0, 13.17, 8),
	headerOpaque("unknown_61_3", 61.3, 0, 4),
	headerOpaque("unknown_63", 63, 0, 5),
}

func codeDLCIDs(c coder, h *Header) error {
	n := uint32(len(h.DLCIDs))
	if err := c.u32(&n); err != nil {
		return err
	}
	if c.decoding() {
		// Each id takes four bytes; refuse counts the blob cannot hold.
		if d, ok := c.(*layoutDecoder); ok && int64(n)*4 > int64(d.c.Remaining()) {
			return corrupt(d.c.Pos(), "dlc count", "fits in header", n)
		}
		h.DLCIDs = make([]uint32, n)
	}
	for i := range h.DLCIDs {
		if err := c.u32(&h.DLCIDs[i]); err != nil {
			return err
		}
	}
	return nil
}

func codeTaggedStrings(c coder, h *Header) error {
	if c.decoding() {
		h.TaggedStrings = make([]TaggedString, numTaggedStrings)
	} else if len(h.TaggedStrings) != numTaggedStrings {
		return fmt.Errorf("aoe2rec: header has %d lobby strings, layout wants %d", len(h.TaggedStrings), numTaggedStrings)
	}
	for i := range h.TaggedStrings {
		s := &h.TaggedStrings[i]
		if err := c.str(&s.Text); err != nil {
			return err
		}
		if !c.decoding() {
			if stringTags[s.End] {
				return fmt.Errorf("aoe2rec: lobby string %d ends with tag value %d", i, s.End)
			}
			for j := range s.Tags {
				if err := c.u32(&s.Tags[j]); err != nil {
					return err
				}
			}
			if err := c.u32(&s.End); err != nil {
				return err
			}
			continue
		}
		for {
			var v uint32
			if err := c.u32(&v); err != nil {
				return err
			}
			if !stringTags[v] {
				s.End = v
				break
			}
			s.Tags = append(s.Tags, v)
		}
	}
	return nil
}

func codeGUID(c coder, h *Header) error {
	b := h.GUID[:]
	if err := c.raw(&b, len(h.GUID)); err != nil {
		return err
	}
	if c.decoding() {
		id, err := uuid.FromBytes(b)
		if err != nil {
			return err
		}
		h.GUID = id
	}
	return nil
}

// DecodeHeader parses an inflated header blob. The returned header takes
// ownership of blob as its Raw buffer.
func DecodeHeader(blob []byte) (*Header, error) {
	c := NewCursor(blob)
	h := &Header{Raw: blob}

	gv, err := c.CString()
	if err != nil {
		return nil, err
	}
	if gv != GameVersion {
		return nil, corrupt(0, "game version", GameVersion, gv)
	}
	h.GameVersion = gv

	if err := h.decodeSaveVersion(c); err != nil {
		return nil, err
	}
	if h.SaveVersion < MinSaveVersion {
		w := &UnsupportedVersionError{Version: h.SaveVersion, Minimum: MinSaveVersion}
		h.Warnings = append(h.Warnings, w)
		log.Warn().Float64("save_version", h.SaveVersion).Msg("save format version is older than any tested version")
	}

	d := &layoutDecoder{c: c, v: h.SaveVersion}
	if err := runLayout(d, settingsLayout, h); err != nil {
		return nil, fmt.Errorf("decode header %.2f: %w", h.SaveVersion, err)
	}
	h.decodeTrailer(c)
	log.Debug().
		Float64("save_version", h.SaveVersion).
		Int("players", len(h.Players)).
		Int("unused_slots", len(h.UnusedSlots)).
		Bool("trailer", h.Trailer != nil).
		Int("tail", len(h.Tail)).
		Msg("decoded header")
	return h, nil
}

func (h *Header) decodeSaveVersion(c *Cursor) error {
	f, err := c.F32()
	if err != nil {
		return err
	}
	if f != -1 {
		h.saveFloat = f
		h.SaveVersion = round2(float64(f))
		return nil
	}
	raw, err := c.U32()
	if err != nil {
		return err
	}
	h.SaveBuild = raw
	h.SaveVersion = buildVersion(raw)
	return nil
}

// buildVersion converts the integer that follows a -1.0 save version.
// Small values are literal versions; larger ones are 16.16 fixed point.
func buildVersion(raw uint32) float64 {
	if raw < 1<<16 {
		return float64(raw)
	}
	return round2(float64(raw) / (1 << 16))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MarshalHeader encodes the structured fields of h into a header blob using
// the same layout tables DecodeHeader reads. For a header decoded without
// changes the result equals h.Raw.
func MarshalHeader(h *Header) ([]byte, error) {
	e := &layoutEncoder{v: h.SaveVersion}
	e.buf = append(e.buf, GameVersion...)
	e.buf = append(e.buf, 0)
	if h.SaveBuild != 0 {
		minus := float32(-1)
		_ = e.f32(&minus)
		_ = e.u32(&h.SaveBuild)
	} else {
		v := float32(h.SaveVersion)
		if round2(float64(h.saveFloat)) == h.SaveVersion {
			v = h.saveFloat
		}
		_ = e.f32(&v)
	}

	// The layout writes offsets into the players it encodes; work on a copy.
	hc := *h
	hc.Players = append([]Player(nil), h.Players...)
	hc.UnusedSlots = append([]Player(nil), h.UnusedSlots...)
	if err := runLayout[Header](e, settingsLayout, &hc); err != nil {
		return nil, fmt.Errorf("encode header %.2f: %w", h.SaveVersion, err)
	}
	if h.Trailer != nil {
		if err := runLayout(e, trailerLayout, h.Trailer); err != nil {
			return nil, fmt.Errorf("encode header trailer: %w", err)
		}
	}
	e.buf = append(e.buf, h.Tail...)
	return e.buf, nil
}

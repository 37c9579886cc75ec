package aoe2rec_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec/aoe2rectest"
)

func marshal(t *testing.T, h *aoe2rec.Header) []byte {
	t.Helper()
	blob, err := aoe2rec.MarshalHeader(h)
	if err != nil {
		t.Fatalf("MarshalHeader: %v", err)
	}
	return blob
}

func decode(t *testing.T, blob []byte) *aoe2rec.Header {
	t.Helper()
	h, err := aoe2rec.DecodeHeader(blob)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	return h
}

func testMap() *aoe2rec.Map {
	const size = 4
	zones := binary.LittleEndian.AppendUint32(nil, 1)
	zones = append(zones, make([]byte, 2048+4*size*size)...)
	zones = binary.LittleEndian.AppendUint32(zones, 2)
	zones = append(zones, 0, 0, 0x80, 0x3f, 0, 0, 0, 0x40)
	tiles := make([]byte, size*size*7)
	for i := 0; i < size*size; i++ {
		tiles[i*7] = byte(i)
		tiles[i*7+2] = 1
	}
	return &aoe2rec.Map{SizeX: size, SizeY: size, Zones: zones, FogOfWar: 1, Tiles: tiles}
}

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		version float64
		players []string
	}{
		{"oldest", 12.97, []string{"alpha", "beta"}},
		{"13.34", 13.34, []string{"alpha", "beta", "gamma"}},
		{"25.22", 25.22, []string{"alpha", "beta"}},
		{"26.16", 26.16, []string{"alpha", "beta", "gamma", "delta"}},
		{"37", 37, []string{"alpha", "beta"}},
		{"61.5", 61.5, []string{"alpha", "beta", "gamma"}},
		{"63", 63, []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := aoe2rectest.Header(tt.version, tt.players...)
			blob := marshal(t, h)
			got := decode(t, blob)

			if got.SaveVersion != tt.version {
				t.Errorf("SaveVersion = %v, want %v", got.SaveVersion, tt.version)
			}
			if len(got.Players) != len(tt.players) {
				t.Fatalf("%d players, want %d", len(got.Players), len(tt.players))
			}
			for i, p := range got.Players {
				if p.Name != tt.players[i] || p.PlayerID != uint32(i+1) || p.ForceID != uint32(i+1) {
					t.Errorf("player %d = %d %q force %d", i, p.PlayerID, p.Name, p.ForceID)
				}
				if p.ProfileID != 1001+uint32(i) || p.Type != aoe2rec.PlayerTypeHuman {
					t.Errorf("player %d profile %d type %d", i, p.ProfileID, p.Type)
				}
			}
			if got.ResolvedMapID != 9 || got.PopulationLimit != 200 || got.Speed != 1.69 {
				t.Errorf("settings = map %d pop %d speed %v", got.ResolvedMapID, got.PopulationLimit, got.Speed)
			}
			if !got.LockTeams || got.RandomPositions || !got.Multiplayer {
				t.Errorf("flags lock %v random %v mp %v", got.LockTeams, got.RandomPositions, got.Multiplayer)
			}
			if got.GUID != aoe2rectest.LobbyGUID || got.LobbyName != "test lobby" {
				t.Errorf("guid %v lobby %q", got.GUID, got.LobbyName)
			}
			if ts := got.TaggedStrings[0]; ts.Text != "Arabia" || len(ts.Tags) != 2 || ts.End != 1 {
				t.Errorf("tagged string = %+v", ts)
			}
			if len(got.DLCIDs) != 4 || got.DLCIDs[3] != 7 {
				t.Errorf("dlc ids = %v", got.DLCIDs)
			}

			again := marshal(t, got)
			if !bytes.Equal(again, got.Raw) {
				t.Fatalf("re-encoded header differs from raw blob (%d vs %d bytes)", len(again), len(got.Raw))
			}
		})
	}
}

func TestHeaderVersionGates(t *testing.T) {
	h := aoe2rectest.Header(25.22, "a")
	if got := decode(t, marshal(t, h)); got.Build != 66692 || got.Timestamp != 0 {
		t.Errorf("25.22: build %d timestamp %d", got.Build, got.Timestamp)
	}
	h = aoe2rectest.Header(25.06, "a")
	if got := decode(t, marshal(t, h)); got.Build != 0 {
		t.Errorf("25.06: build %d present", got.Build)
	}
	h = aoe2rectest.Header(13.17, "a")
	h.Unknown23 = "old"
	if got := decode(t, marshal(t, h)); got.Unknown23 != "" {
		t.Errorf("13.17: unknown23 %q present", got.Unknown23)
	}
	h = aoe2rectest.Header(13.13, "a")
	h.Unknown23 = "old"
	if got := decode(t, marshal(t, h)); got.Unknown23 != "old" {
		t.Errorf("13.13: unknown23 = %q", got.Unknown23)
	}
}

func TestHeaderEnvelopeRoundTrip(t *testing.T) {
	h := aoe2rectest.Header(63, "alpha", "beta")
	data := aoe2rectest.MustBuild(h, 2, aoe2rectest.Sync(100))

	rec, err := aoe2rec.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Meta.ForceID != 2 || rec.Meta.LogVersion != 5 || rec.Meta.Unknown1 != 1 {
		t.Errorf("meta = %+v", rec.Meta)
	}
	if rec.BodyOffset != len(data)-8 {
		t.Errorf("body offset %d, want %d", rec.BodyOffset, len(data)-8)
	}

	env, err := aoe2rec.Encode(rec)
	if err != nil {
		t.Fatal(err)
	}
	rec2, err := aoe2rec.Decode(env)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rec2.Header.Raw, rec.Header.Raw) {
		t.Error("inflated header changed across encode")
	}
	if rec2.Meta != rec.Meta || rec2.NextChapter != rec.NextChapter {
		t.Errorf("envelope changed: %+v / %+v", rec2.Meta, rec.Meta)
	}
}

func TestUnusedSlotFiltering(t *testing.T) {
	h := aoe2rectest.Header(26.16)
	for i := uint32(1); i <= 8; i++ {
		if i == 3 || i == 7 {
			continue
		}
		h.Players = append(h.Players, aoe2rectest.Player(i, string(rune('a'+i))))
	}
	h.UnusedSlots = nil
	h.UnusedSlots = append(h.UnusedSlots, aoe2rectest.UnusedSlot(3), aoe2rectest.UnusedSlot(7))
	h.NumPlayers = 6

	got := decode(t, marshal(t, h))
	want := []uint32{1, 2, 4, 5, 6, 8}
	if len(got.Players) != len(want) {
		t.Fatalf("%d players, want %d", len(got.Players), len(want))
	}
	for i, p := range got.Players {
		if p.PlayerID != want[i] {
			t.Errorf("player %d has id %d, want %d", i, p.PlayerID, want[i])
		}
	}
	if len(got.UnusedSlots) != 2 || got.UnusedSlots[0].PlayerID != 3 || got.UnusedSlots[1].PlayerID != 7 {
		t.Errorf("unused slots = %+v", got.UnusedSlots)
	}
	// Offsets of kept players still address their own records.
	for _, p := range got.Players {
		if int32(binary.LittleEndian.Uint32(got.Raw[p.Offset+4:])) != p.ColorID {
			t.Errorf("player %d offset %d does not point at its record", p.PlayerID, p.Offset)
		}
	}
}

func TestSentinelMismatch(t *testing.T) {
	blob := marshal(t, aoe2rectest.Header(63, "alpha"))
	sentinel := binary.LittleEndian.AppendUint32(nil, 155555)
	at := bytes.Index(blob, sentinel)
	if at < 0 {
		t.Fatal("no sentinel in blob")
	}
	binary.LittleEndian.PutUint32(blob[at:], 155556)

	_, err := aoe2rec.DecodeHeader(blob)
	var ce *aoe2rec.CorruptFormatError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CorruptFormatError, got %v", err)
	}
	if ce.Offset != at || ce.What != "separator1" {
		t.Errorf("error at %d (%s), want %d (separator1)", ce.Offset, ce.What, at)
	}
	if ce.Actual != uint32(155556) {
		t.Errorf("actual = %v", ce.Actual)
	}
}

func TestGameVersionMismatch(t *testing.T) {
	blob := marshal(t, aoe2rectest.Header(63, "alpha"))
	copy(blob, "VER 9.5")
	if _, err := aoe2rec.DecodeHeader(blob); !errors.Is(err, aoe2rec.ErrCorruptFormat) {
		t.Fatalf("expected corrupt format, got %v", err)
	}
}

func TestSaveBuildVersion(t *testing.T) {
	tests := []struct {
		name    string
		build   uint32
		version float64
	}{
		{"literal", 63, 63},
		{"fixed point", uint32(61.5 * 65536), 61.5},
		{"fixed point rounded", 63<<16 + 655, 63.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := aoe2rectest.Header(tt.version, "alpha")
			h.SaveBuild = tt.build
			blob := marshal(t, h)
			if f := math.Float32frombits(binary.LittleEndian.Uint32(blob[8:])); f != -1 {
				t.Fatalf("stored version %v, want -1", f)
			}
			got := decode(t, blob)
			if got.SaveVersion != tt.version || got.SaveBuild != tt.build {
				t.Errorf("version %v build %d", got.SaveVersion, got.SaveBuild)
			}
			if !bytes.Equal(marshal(t, got), blob) {
				t.Error("re-encoded blob differs")
			}
		})
	}
}

func TestOldVersionWarns(t *testing.T) {
	h := aoe2rectest.Header(12.5, "alpha")
	got := decode(t, marshal(t, h))
	if len(got.Warnings) != 1 {
		t.Fatalf("warnings = %v", got.Warnings)
	}
	var ue *aoe2rec.UnsupportedVersionError
	if !errors.As(got.Warnings[0], &ue) || ue.Version != 12.5 {
		t.Errorf("warning = %v", got.Warnings[0])
	}
}

func TestTrailerRoundTrip(t *testing.T) {
	h := aoe2rectest.Header(63, "alpha", "beta")
	h.Tail = []byte("rest")
	h.Trailer = &aoe2rec.Trailer{
		WorldTime:   12345,
		GameSpeed:   1.7,
		RandomSeed:  99,
		RecPlayer:   2,
		NumPlayers:  3,
		PlayerTurns: make([]byte, 36),
		Map:         testMap(),
	}
	blob := marshal(t, h)
	got := decode(t, blob)

	tr := got.Trailer
	if tr == nil {
		t.Fatal("trailer not decoded")
	}
	if tr.WorldTime != 12345 || tr.RecPlayer != 2 || tr.RandomSeed != 99 {
		t.Errorf("trailer = %+v", tr)
	}
	if tr.Map == nil || tr.Map.SizeX != 4 || tr.Map.FogOfWar != 1 {
		t.Fatalf("map = %+v", tr.Map)
	}
	if terrain, ok := tr.Map.Terrain(1, 2); !ok || terrain != 9 {
		t.Errorf("terrain(1,2) = %d, %v", terrain, ok)
	}
	if _, ok := tr.Map.Elevation(4, 0); ok {
		t.Error("elevation outside the map")
	}
	if string(got.Tail) != "rest" {
		t.Errorf("tail = %q", got.Tail)
	}
	if !bytes.Equal(marshal(t, got), blob) {
		t.Error("re-encoded blob differs")
	}
}

func TestTrailerWithAIStaysOpaque(t *testing.T) {
	h := aoe2rectest.Header(63, "alpha")
	h.Tail = append(binary.LittleEndian.AppendUint32(nil, 1), "ai scripts"...)
	got := decode(t, marshal(t, h))
	if got.Trailer != nil {
		t.Fatalf("trailer decoded: %+v", got.Trailer)
	}
	if !bytes.Equal(got.Tail, h.Tail) {
		t.Errorf("tail = %q", got.Tail)
	}
}

func TestFlagBytesOtherThanOne(t *testing.T) {
	trailerHeader := func() *aoe2rec.Header {
		h := aoe2rectest.Header(63, "alpha")
		h.Trailer = &aoe2rec.Trailer{PlayerTurns: make([]byte, 36), Map: testMap()}
		return h
	}
	tests := []struct {
		name string
		make func() *aoe2rec.Header
		flag func(h *aoe2rec.Header) *bool
	}{
		{"record_game", func() *aoe2rec.Header { return aoe2rectest.Header(63, "alpha") },
			func(h *aoe2rec.Header) *bool { return &h.RecordGame }},
		{"cheats_enabled", trailerHeader,
			func(h *aoe2rec.Header) *bool { return &h.Trailer.CheatsEnabled }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			off := tt.make()
			*tt.flag(off) = false
			on := tt.make()
			*tt.flag(on) = true
			blob, other := marshal(t, off), marshal(t, on)
			if len(blob) != len(other) {
				t.Fatalf("flag changed the header size")
			}
			at := -1
			for i := range blob {
				if blob[i] != other[i] {
					if at >= 0 {
						t.Fatalf("flag spans offsets %d and %d", at, i)
					}
					at = i
				}
			}
			if at < 0 {
				t.Fatal("flag not encoded")
			}

			blob[at] = 2
			got := decode(t, blob)
			if !*tt.flag(got) {
				t.Error("flag byte 2 decoded as false")
			}
			if !bytes.Equal(marshal(t, got), blob) {
				t.Error("flag byte 2 not kept on re-encode")
			}
			*tt.flag(got) = false
			if b := marshal(t, got)[at]; b != 0 {
				t.Errorf("cleared flag encoded as %d", b)
			}
		})
	}
}

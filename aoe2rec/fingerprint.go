package aoe2rec

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

type settingsField struct {
	name string
	data []byte
}

// settingsFields encodes each lobby settings field of h separately. Values
// that differ between recordings of the same match are masked: the
// per-player data CRC is zeroed and the recording's own force id, chapter
// pointer and compressed bytes are not part of the settings at all.
func settingsFields(h *Header) []settingsField {
	hc := *h
	hc.Players = maskPlayers(h.Players)
	hc.UnusedSlots = maskPlayers(h.UnusedSlots)

	out := []settingsField{
		{name: "game_version", data: []byte(h.GameVersion)},
		{name: "save_version", data: binary.LittleEndian.AppendUint64(nil, math.Float64bits(h.SaveVersion))},
	}
	for _, f := range settingsLayout {
		if !f.present(h.SaveVersion) {
			continue
		}
		e := &layoutEncoder{v: h.SaveVersion}
		if err := f.code(e, &hc); err != nil {
			e.buf = append(e.buf[:0], err.Error()...)
		}
		out = append(out, settingsField{name: f.name, data: e.buf})
	}
	return out
}

func maskPlayers(ps []Player) []Player {
	out := make([]Player, len(ps))
	copy(out, ps)
	for i := range out {
		out[i].DatCRC = make([]byte, len(ps[i].DatCRC))
	}
	return out
}

// metaFields lists the log metadata of rec except the force id, which
// names the recording player.
func metaFields(m *Meta) []settingsField {
	u32 := func(name string, v uint32) settingsField {
		return settingsField{name: name, data: binary.LittleEndian.AppendUint32(nil, v)}
	}
	return []settingsField{
		u32("log_version", m.LogVersion),
		u32("meta_unknown1", m.Unknown1),
		u32("meta_unknown2", m.Unknown2),
		u32("meta_unknown3", m.Unknown3),
		u32("meta_unknown5", m.Unknown5),
		u32("meta_unknown6", m.Unknown6),
		u32("other_version", m.OtherVersion),
	}
}

func recordingFields(rec *Recording) []settingsField {
	return append(metaFields(&rec.Meta), settingsFields(rec.Header)...)
}

func fingerprint(fields []settingsField) uint64 {
	d := xxhash.New()
	for _, f := range fields {
		_, _ = d.WriteString(f.name)
		_, _ = d.Write(f.data)
	}
	return d.Sum64()
}

func firstDiff(fa, fb []settingsField) (string, bool) {
	byName := make(map[string][]byte, len(fb))
	for _, f := range fb {
		byName[f.name] = f.data
	}
	seen := make(map[string]bool, len(fa))
	for _, f := range fa {
		seen[f.name] = true
		other, present := byName[f.name]
		if !present || !bytes.Equal(f.data, other) {
			return f.name, true
		}
	}
	for _, f := range fb {
		if !seen[f.name] {
			return f.name, true
		}
	}
	return "", false
}

// SettingsFingerprint hashes the masked lobby settings of h. Recordings of
// the same match have equal fingerprints.
func SettingsFingerprint(h *Header) uint64 {
	return fingerprint(settingsFields(h))
}

// DiffSettings returns the name of the first lobby settings field that
// differs between a and b, after masking. ok is false when none differ.
func DiffSettings(a, b *Header) (name string, ok bool) {
	return firstDiff(settingsFields(a), settingsFields(b))
}

// RecordingFingerprint extends SettingsFingerprint with the log metadata of
// rec. Only the force id is left out.
func RecordingFingerprint(rec *Recording) uint64 {
	return fingerprint(recordingFields(rec))
}

// DiffRecordings is DiffSettings over the fields of RecordingFingerprint.
func DiffRecordings(a, b *Recording) (name string, ok bool) {
	return firstDiff(recordingFields(a), recordingFields(b))
}

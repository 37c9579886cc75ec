package aoe2rec

import (
	"sort"

	"github.com/go-errors/errors"
)

// Patch replaces buf[Offset:Offset+Length] with Replacement. Offsets always
// refer to the buffer before any patch of the same list is applied.
type Patch struct {
	Offset      int
	Length      int
	Replacement []byte
}

func (p Patch) end() int { return p.Offset + p.Length }

// PatchList is an unordered set of patches against one buffer.
type PatchList []Patch

// Apply returns a copy of buf with every patch applied. Patches may be
// given in any order; they must lie inside buf and must not overlap or
// share an offset. Violations are programming errors and carry a stack
// trace.
func Apply(buf []byte, patches PatchList) ([]byte, error) {
	sorted := append(PatchList(nil), patches...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	for i, p := range sorted {
		if p.Offset < 0 || p.Length < 0 || p.end() > len(buf) {
			return nil, errors.Errorf("aoe2rec: patch [%d,%d) outside buffer of %d bytes", p.Offset, p.end(), len(buf))
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.Offset == p.Offset {
			return nil, errors.Errorf("aoe2rec: two patches at offset %d", p.Offset)
		}
		if prev.end() > p.Offset {
			return nil, errors.Errorf("aoe2rec: patch [%d,%d) overlaps [%d,%d)", prev.Offset, prev.end(), p.Offset, p.end())
		}
	}

	out := append([]byte(nil), buf...)
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		tail := append([]byte(nil), out[p.end():]...)
		out = append(append(out[:p.Offset], p.Replacement...), tail...)
	}
	return out, nil
}

// Apply patches h.Raw and decodes the result, so that every structured
// field and offset reflects the new bytes. On error h is unchanged.
func (h *Header) Apply(patches PatchList) error {
	raw, err := Apply(h.Raw, patches)
	if err != nil {
		return err
	}
	nh, err := DecodeHeader(raw)
	if err != nil {
		return errors.WrapPrefix(err, "aoe2rec: patched header does not decode", 0)
	}
	*h = *nh
	return nil
}

package aoe2rec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// postgameMagic ends the postgame record.
var postgameMagic = []byte{0xCE, 0xA4, 0x59, 0xB1, 0x05, 0xDB, 0x7B, 0x43}

const (
	postgameWorldTime    = 1
	postgameLeaderboards = 2

	maxPostgameBlocks = 1024
)

// Postgame is the end of match summary. Its blocks are stored back to
// front: each payload is followed by its size and id, and the record ends
// with a version, the block count and postgameMagic.
type Postgame struct {
	Version      uint32
	WorldTime    uint32
	HasWorldTime bool
	Leaderboards []Leaderboard
	// Blocks holds the payload of every block by id, including the ones
	// decoded into the fields above.
	Blocks map[uint32][]byte `json:"-"`

	order []uint32
}

type Leaderboard struct {
	ID      uint32
	Unknown uint16
	Players []LeaderboardPlayer
}

type LeaderboardPlayer struct {
	Number uint32
	Rank   int32
	Rating int32
}

func readPostgame(c *Cursor, at int) (*Postgame, error) {
	start := c.Pos()
	i := bytes.Index(c.buf[start:], postgameMagic)
	if i < 0 {
		return nil, corrupt(start, "postgame", "trailer magic", "end of file")
	}
	if i < 8 {
		return nil, corrupt(start, "postgame footer", "8 bytes before magic", i)
	}
	region, err := c.Bytes(i + len(postgameMagic))
	if err != nil {
		return nil, err
	}
	region = region[:i]

	le := binary.LittleEndian
	off := len(region) - 8
	p := &Postgame{
		Version: le.Uint32(region[off:]),
		Blocks:  make(map[uint32][]byte),
	}
	count := le.Uint32(region[off+4:])
	if count > maxPostgameBlocks {
		return nil, corrupt(start+off+4, "postgame block count", maxPostgameBlocks, count)
	}

	for n := uint32(0); n < count; n++ {
		if off < 8 {
			return nil, corrupt(start+off, "postgame block header", "8 bytes", off)
		}
		off -= 8
		size := le.Uint32(region[off:])
		id := le.Uint32(region[off+4:])
		if int64(size) > int64(off) {
			return nil, corrupt(start+off, "postgame block size", "at most "+fmt.Sprint(off), size)
		}
		off -= int(size)
		if _, dup := p.Blocks[id]; dup {
			return nil, corrupt(start+off, "postgame block id", "unique id", id)
		}
		p.Blocks[id] = region[off : off+int(size)]
		p.order = append(p.order, id)
	}
	if off != 0 {
		return nil, corrupt(start, "postgame blocks", "walk ending at record start", fmt.Sprintf("%d bytes left", off))
	}
	// Collected back to front; keep file order for re-encoding.
	for l, r := 0, len(p.order)-1; l < r; l, r = l+1, r-1 {
		p.order[l], p.order[r] = p.order[r], p.order[l]
	}

	if b, ok := p.Blocks[postgameWorldTime]; ok {
		if len(b) != 4 {
			return nil, corrupt(start, "postgame world time", 4, len(b))
		}
		p.WorldTime = le.Uint32(b)
		p.HasWorldTime = true
	}
	if b, ok := p.Blocks[postgameLeaderboards]; ok {
		lb, err := decodeLeaderboards(b)
		if err != nil {
			log.Warn().Err(err).Int("offset", at).Msg("postgame leaderboards left opaque")
		} else {
			p.Leaderboards = lb
		}
	}
	return p, nil
}

func decodeLeaderboards(b []byte) ([]Leaderboard, error) {
	c := NewCursor(b)
	n, err := c.U32()
	if err != nil {
		return nil, err
	}
	if int64(n)*10 > int64(c.Remaining()) {
		return nil, corrupt(0, "leaderboard count", "fits in block", n)
	}
	out := make([]Leaderboard, n)
	for i := range out {
		lb := &out[i]
		if lb.ID, err = c.U32(); err != nil {
			return nil, err
		}
		if lb.Unknown, err = c.U16(); err != nil {
			return nil, err
		}
		np, err := c.U32()
		if err != nil {
			return nil, err
		}
		if int64(np)*12 > int64(c.Remaining()) {
			return nil, corrupt(c.Pos()-4, "leaderboard player count", "fits in block", np)
		}
		lb.Players = make([]LeaderboardPlayer, np)
		for j := range lb.Players {
			pl := &lb.Players[j]
			if pl.Number, err = c.U32(); err != nil {
				return nil, err
			}
			if pl.Rank, err = c.I32(); err != nil {
				return nil, err
			}
			if pl.Rating, err = c.I32(); err != nil {
				return nil, err
			}
		}
	}
	if c.Remaining() != 0 {
		return nil, corrupt(c.Pos(), "leaderboards", "end of block", fmt.Sprintf("%d extra bytes", c.Remaining()))
	}
	return out, nil
}

func appendPostgame(dst []byte, p *Postgame) ([]byte, error) {
	le := binary.LittleEndian
	blocks := p.Blocks
	if p.HasWorldTime {
		if _, ok := blocks[postgameWorldTime]; !ok {
			blocks = make(map[uint32][]byte, len(p.Blocks)+1)
			for id, b := range p.Blocks {
				blocks[id] = b
			}
			blocks[postgameWorldTime] = le.AppendUint32(nil, p.WorldTime)
		}
	}

	order := p.order
	if len(order) != len(blocks) {
		order = make([]uint32, 0, len(blocks))
		for id := range blocks {
			order = append(order, id)
		}
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	}

	dst = le.AppendUint32(dst, uint32(OpPostgame))
	for _, id := range order {
		b, ok := blocks[id]
		if !ok {
			return dst, fmt.Errorf("aoe2rec: postgame block %d missing", id)
		}
		dst = append(dst, b...)
		dst = le.AppendUint32(dst, uint32(len(b)))
		dst = le.AppendUint32(dst, id)
	}
	dst = le.AppendUint32(dst, p.Version)
	dst = le.AppendUint32(dst, uint32(len(order)))
	return append(dst, postgameMagic...), nil
}

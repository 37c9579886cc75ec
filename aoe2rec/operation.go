package aoe2rec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// OpKind identifies the type of an operation record. The values are the
// tags used on the wire.
type OpKind uint32

const (
	OpChecksum OpKind = 0
	OpAction   OpKind = 1
	OpSync     OpKind = 2
	OpViewLock OpKind = 3
	OpChat     OpKind = 4
	OpPostgame OpKind = 6

	// OpSeek never appears on the wire. It marks a tag that was a forward
	// file offset.
	OpSeek OpKind = 0xFFFFFFFF
)

func (k OpKind) String() string {
	switch k {
	case OpChecksum:
		return "checksum"
	case OpAction:
		return "action"
	case OpSync:
		return "sync"
	case OpViewLock:
		return "viewlock"
	case OpChat:
		return "chat"
	case OpPostgame:
		return "postgame"
	case OpSeek:
		return "seek"
	}
	return fmt.Sprintf("op(%d)", uint32(k))
}

// checksumSize is the payload size of a checksum record.
const checksumSize = 356

// Operation is one record of the stream after the header.
type Operation interface {
	Kind() OpKind
}

type Checksum struct {
	Data []byte
}

// Action carries an opaque command payload. Data holds the declared length
// plus four trailing bytes.
type Action struct {
	Data []byte
}

// Sync advances the match clock by TimeIncrement milliseconds.
type Sync struct {
	TimeIncrement uint32
}

type ViewLock struct {
	X, Y    float32
	ForceID uint32
}

// Chat carries a JSON chat object. See ChatMessage.
type Chat struct {
	JSON []byte
}

// Seek records a tag that was a forward offset. Gap holds the bytes that
// were jumped over.
type Seek struct {
	Offset uint32
	Gap    []byte
}

func (*Checksum) Kind() OpKind { return OpChecksum }
func (*Action) Kind() OpKind   { return OpAction }
func (*Sync) Kind() OpKind     { return OpSync }
func (*ViewLock) Kind() OpKind { return OpViewLock }
func (*Chat) Kind() OpKind     { return OpChat }
func (*Postgame) Kind() OpKind { return OpPostgame }
func (*Seek) Kind() OpKind     { return OpSeek }

// ReadOperation reads the next operation at the cursor. It returns io.EOF
// when the cursor is exactly at the end of the buffer.
func ReadOperation(c *Cursor) (Operation, error) {
	if c.Remaining() == 0 {
		return nil, io.EOF
	}
	at := c.Pos()
	tag, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("read operation tag: %w", err)
	}

	switch OpKind(tag) {
	case OpChecksum:
		b, err := c.Bytes(checksumSize)
		if err != nil {
			return nil, fmt.Errorf("checksum at %d: %w", at, err)
		}
		return &Checksum{Data: b}, nil

	case OpAction:
		n, err := c.U32()
		if err != nil {
			return nil, fmt.Errorf("action at %d: %w", at, err)
		}
		if int64(n)+4 > int64(c.Remaining()) {
			return nil, corrupt(at+4, "action length", "fits in file", n)
		}
		b, err := c.Bytes(int(n) + 4)
		if err != nil {
			return nil, fmt.Errorf("action at %d: %w", at, err)
		}
		return &Action{Data: b}, nil

	case OpSync:
		inc, err := c.U32()
		if err != nil {
			return nil, fmt.Errorf("sync at %d: %w", at, err)
		}
		return &Sync{TimeIncrement: inc}, nil

	case OpViewLock:
		v := &ViewLock{}
		if v.X, err = c.F32(); err == nil {
			if v.Y, err = c.F32(); err == nil {
				v.ForceID, err = c.U32()
			}
		}
		if err != nil {
			return nil, fmt.Errorf("viewlock at %d: %w", at, err)
		}
		return v, nil

	case OpChat:
		return readChat(c, at)

	case OpPostgame:
		return readPostgame(c, at)
	}

	if int(tag) <= c.Pos() || int64(tag) > int64(c.Len()) {
		return nil, corrupt(at, "operation tag", "known tag or forward offset", tag)
	}
	gap, err := c.Bytes(int(tag) - c.Pos())
	if err != nil {
		return nil, err
	}
	return &Seek{Offset: tag, Gap: gap}, nil
}

func readChat(c *Cursor, at int) (*Chat, error) {
	marker, err := c.I32()
	if err != nil {
		return nil, fmt.Errorf("chat at %d: %w", at, err)
	}
	if marker != -1 {
		return nil, corrupt(at+4, "chat marker", int32(-1), marker)
	}
	n, err := c.U32()
	if err != nil {
		return nil, fmt.Errorf("chat at %d: %w", at, err)
	}
	b, err := c.Bytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("chat at %d: %w", at, err)
	}
	return &Chat{JSON: b}, nil
}

// AppendOperation appends the wire form of op to dst.
func AppendOperation(dst []byte, op Operation) ([]byte, error) {
	le := binary.LittleEndian
	switch op := op.(type) {
	case *Checksum:
		if len(op.Data) != checksumSize {
			return dst, fmt.Errorf("aoe2rec: checksum payload is %d bytes, want %d", len(op.Data), checksumSize)
		}
		dst = le.AppendUint32(dst, uint32(OpChecksum))
		return append(dst, op.Data...), nil
	case *Action:
		if len(op.Data) < 4 {
			return dst, fmt.Errorf("aoe2rec: action payload is %d bytes, want at least 4", len(op.Data))
		}
		dst = le.AppendUint32(dst, uint32(OpAction))
		dst = le.AppendUint32(dst, uint32(len(op.Data)-4))
		return append(dst, op.Data...), nil
	case *Sync:
		dst = le.AppendUint32(dst, uint32(OpSync))
		return le.AppendUint32(dst, op.TimeIncrement), nil
	case *ViewLock:
		dst = le.AppendUint32(dst, uint32(OpViewLock))
		dst = le.AppendUint32(dst, math.Float32bits(op.X))
		dst = le.AppendUint32(dst, math.Float32bits(op.Y))
		return le.AppendUint32(dst, op.ForceID), nil
	case *Chat:
		dst = le.AppendUint32(dst, uint32(OpChat))
		dst = le.AppendUint32(dst, math.MaxUint32)
		dst = le.AppendUint32(dst, uint32(len(op.JSON)))
		return append(dst, op.JSON...), nil
	case *Postgame:
		return appendPostgame(dst, op)
	case *Seek:
		dst = le.AppendUint32(dst, op.Offset)
		return append(dst, op.Gap...), nil
	}
	return dst, fmt.Errorf("aoe2rec: cannot encode operation %T", op)
}

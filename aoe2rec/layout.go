package aoe2rec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// deStringPrefix starts every length-prefixed string in the DE header.
var deStringPrefix = [2]byte{0x60, 0x0a}

const structuralSentinel = 155555

// coder moves values between Go structs and the header wire format. A
// layout table is written once against this interface and then run with a
// decoder to parse, or with an encoder to produce bytes.
type coder interface {
	decoding() bool
	version() float64
	pos() int

	u8(v *uint8) error
	u16(v *uint16) error
	u32(v *uint32) error
	i32(v *int32) error
	f32(v *float32) error
	flag(v *bool, odd *Opaque, name string) error
	raw(v *[]byte, n int) error
	str(v *string) error
	opaque(dst *Opaque, name string, n int) error
	sentinel(name string) error
}

// field is one entry of a layout table. It is present when
// since <= version and, if until is set, version < until.
type field[T any] struct {
	name  string
	since float64
	until float64
	code  func(c coder, v *T) error
}

func (f field[T]) present(version float64) bool {
	if version < f.since {
		return false
	}
	return f.until == 0 || version < f.until
}

func runLayout[T any](c coder, layout []field[T], v *T) error {
	for _, f := range layout {
		if !f.present(c.version()) {
			continue
		}
		if err := f.code(c, v); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

func u8Field[T any](name string, since float64, p func(*T) *uint8) field[T] {
	return field[T]{name: name, since: since, code: func(c coder, v *T) error { return c.u8(p(v)) }}
}

func u16Field[T any](name string, since float64, p func(*T) *uint16) field[T] {
	return field[T]{name: name, since: since, code: func(c coder, v *T) error { return c.u16(p(v)) }}
}

func u32Field[T any](name string, since float64, p func(*T) *uint32) field[T] {
	return field[T]{name: name, since: since, code: func(c coder, v *T) error { return c.u32(p(v)) }}
}

func i32Field[T any](name string, since float64, p func(*T) *int32) field[T] {
	return field[T]{name: name, since: since, code: func(c coder, v *T) error { return c.i32(p(v)) }}
}

func f32Field[T any](name string, since float64, p func(*T) *float32) field[T] {
	return field[T]{name: name, since: since, code: func(c coder, v *T) error { return c.f32(p(v)) }}
}

// flagField is a boolean byte. Bytes other than 0 and 1 read as true and
// are kept in the opaque list u so they encode back unchanged.
func flagField[T any](name string, since float64, p func(*T) *bool, u func(*T) *Opaque) field[T] {
	return field[T]{name: name, since: since, code: func(c coder, v *T) error { return c.flag(p(v), u(v), name) }}
}

func strField[T any](name string, since, until float64, p func(*T) *string) field[T] {
	return field[T]{name: name, since: since, until: until, code: func(c coder, v *T) error { return c.str(p(v)) }}
}

func opaqueField[T any](name string, since, until float64, n int, p func(*T) *Opaque) field[T] {
	return field[T]{name: name, since: since, until: until, code: func(c coder, v *T) error { return c.opaque(p(v), name, n) }}
}

func sentinelField[T any](name string) field[T] {
	return field[T]{name: name, code: func(c coder, _ *T) error { return c.sentinel(name) }}
}

// Span is a byte range whose meaning is not understood. It is kept so the
// structured header can always be encoded back to identical bytes.
type Span struct {
	Name   string
	Offset int
	Data   []byte
}

// Opaque is an ordered list of uninterpreted spans.
type Opaque []Span

// Get returns the data of the span with the given name.
func (o Opaque) Get(name string) ([]byte, bool) {
	for _, s := range o {
		if s.Name == name {
			return s.Data, true
		}
	}
	return nil, false
}

type layoutDecoder struct {
	c *Cursor
	v float64
}

func (d *layoutDecoder) decoding() bool   { return true }
func (d *layoutDecoder) version() float64 { return d.v }
func (d *layoutDecoder) pos() int         { return d.c.Pos() }

func (d *layoutDecoder) u8(v *uint8) (err error) {
	*v, err = d.c.U8()
	return err
}

func (d *layoutDecoder) u16(v *uint16) (err error) {
	*v, err = d.c.U16()
	return err
}

func (d *layoutDecoder) u32(v *uint32) (err error) {
	*v, err = d.c.U32()
	return err
}

func (d *layoutDecoder) i32(v *int32) (err error) {
	*v, err = d.c.I32()
	return err
}

func (d *layoutDecoder) f32(v *float32) (err error) {
	*v, err = d.c.F32()
	return err
}

func (d *layoutDecoder) flag(v *bool, odd *Opaque, name string) error {
	at := d.c.Pos()
	b, err := d.c.U8()
	if err != nil {
		return err
	}
	*v = b != 0
	if b > 1 {
		log.Debug().Str("field", name).Int("offset", at).Uint8("value", b).Msg("flag byte is not 0 or 1")
		*odd = append(*odd, Span{Name: name, Offset: at, Data: []byte{b}})
	}
	return nil
}

func (d *layoutDecoder) raw(v *[]byte, n int) error {
	b, err := d.c.Bytes(n)
	if err != nil {
		return err
	}
	*v = append([]byte(nil), b...)
	return nil
}

func (d *layoutDecoder) str(v *string) error {
	at := d.c.Pos()
	p, err := d.c.Bytes(2)
	if err != nil {
		return err
	}
	if p[0] != deStringPrefix[0] || p[1] != deStringPrefix[1] {
		return corrupt(at, "string prefix", deStringPrefix[:], p)
	}
	n, err := d.c.U16()
	if err != nil {
		return err
	}
	b, err := d.c.Bytes(int(n))
	if err != nil {
		return err
	}
	*v = string(b)
	return nil
}

func (d *layoutDecoder) opaque(dst *Opaque, name string, n int) error {
	at := d.c.Pos()
	var b []byte
	if err := d.raw(&b, n); err != nil {
		return err
	}
	*dst = append(*dst, Span{Name: name, Offset: at, Data: b})
	return nil
}

func (d *layoutDecoder) sentinel(name string) error {
	at := d.c.Pos()
	v, err := d.c.U32()
	if err != nil {
		return err
	}
	if v != structuralSentinel {
		return corrupt(at, name, uint32(structuralSentinel), v)
	}
	return nil
}

type layoutEncoder struct {
	buf []byte
	v   float64
}

func (e *layoutEncoder) decoding() bool   { return false }
func (e *layoutEncoder) version() float64 { return e.v }
func (e *layoutEncoder) pos() int         { return len(e.buf) }

func (e *layoutEncoder) u8(v *uint8) error {
	e.buf = append(e.buf, *v)
	return nil
}

func (e *layoutEncoder) u16(v *uint16) error {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, *v)
	return nil
}

func (e *layoutEncoder) u32(v *uint32) error {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, *v)
	return nil
}

func (e *layoutEncoder) i32(v *int32) error {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(*v))
	return nil
}

func (e *layoutEncoder) f32(v *float32) error {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(*v))
	return nil
}

func (e *layoutEncoder) flag(v *bool, odd *Opaque, name string) error {
	var b uint8
	if *v {
		b = 1
		if raw, ok := odd.Get(name); ok && len(raw) == 1 && raw[0] != 0 {
			b = raw[0]
		}
	}
	return e.u8(&b)
}

func (e *layoutEncoder) raw(v *[]byte, n int) error {
	if len(*v) != n {
		return fmt.Errorf("aoe2rec: field holds %d bytes, layout wants %d", len(*v), n)
	}
	e.buf = append(e.buf, *v...)
	return nil
}

func (e *layoutEncoder) str(v *string) error {
	if len(*v) > math.MaxUint16 {
		return fmt.Errorf("aoe2rec: string of %d bytes is too long", len(*v))
	}
	e.buf = appendDEString(e.buf, *v)
	return nil
}

func (e *layoutEncoder) opaque(dst *Opaque, name string, n int) error {
	b, ok := dst.Get(name)
	if !ok {
		b = make([]byte, n)
	}
	return e.raw(&b, n)
}

func (e *layoutEncoder) sentinel(string) error {
	v := uint32(structuralSentinel)
	return e.u32(&v)
}

func appendDEString(dst []byte, s string) []byte {
	dst = append(dst, deStringPrefix[:]...)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

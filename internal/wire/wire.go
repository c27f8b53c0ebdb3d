// Package wire implements the binary codec for the dispatcher's RPC
// protocol: fixed-width big-endian integers, length-prefixed strings and
// byte arrays, optional values, tagged unions, and bounded variable-length
// arrays. Unlike XDR, values are not padded to 4-byte boundaries.
package wire

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// MalformedMessage is returned by decoders when the cursor would read past
// the buffer, a string isn't valid UTF-8, a union discriminant is unknown,
// or a bounded length exceeds its declared protocol maximum.
type MalformedMessage struct {
	Reason string
}

func (e *MalformedMessage) Error() string { return "malformed message: " + e.Reason }

// PayloadTooLarge is returned by Encoder when a caller-provided buffer is
// too small for the value being written.
type PayloadTooLarge struct {
	Needed, Have int
}

func (e *PayloadTooLarge) Error() string {
	return fmt.Sprintf("payload too large: needed %d bytes, have %d", e.Needed, e.Have)
}

func malformed(reason string) error { return &MalformedMessage{Reason: reason} }

// Decoder reads values sequentially from a fixed buffer.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

// Pos returns the current read cursor, useful for computing consumed length.
func (d *Decoder) Pos() int { return d.pos }

// Remaining reports how many bytes are left to read.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.buf) || n < 0 {
		return malformed("cursor would read past end of buffer")
	}
	return nil
}

func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := uint32(d.buf[d.pos])<<24 | uint32(d.buf[d.pos+1])<<16 | uint32(d.buf[d.pos+2])<<8 | uint32(d.buf[d.pos+3])
	d.pos += 4
	return v, nil
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := uint64(0)
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(d.buf[d.pos+i])
	}
	d.pos += 8
	return v, nil
}

func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

func (d *Decoder) Float64() (float64, error) {
	v, err := d.Uint64()
	if err != nil {
		return 0, err
	}
	return float64FromBits(v), nil
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint32()
	if err != nil {
		return false, err
	}
	if v != 0 && v != 1 {
		return false, malformed("boolean value out of range")
	}
	return v == 1, nil
}

// FixedBytes reads exactly n raw bytes (e.g. a 16-byte UUID).
func (d *Decoder) FixedBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+n])
	d.pos += n
	return out, nil
}

// Bytes reads a length-prefixed byte array, rejecting lengths above max.
func (d *Decoder) Bytes(max uint32) ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, malformed(fmt.Sprintf("array length %d exceeds maximum %d", n, max))
	}
	return d.FixedBytes(int(n))
}

// String reads a length-prefixed UTF-8 string, rejecting lengths above max.
func (d *Decoder) String(max uint32) (string, error) {
	raw, err := d.Bytes(max)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", malformed("string is not valid UTF-8")
	}
	return string(raw), nil
}

// OptionalPresence reads the presence boolean of an `opt<T>` value. Callers
// decode T themselves when present is true.
func (d *Decoder) OptionalPresence() (present bool, err error) {
	return d.Bool()
}

// UnionDiscriminant reads a tagged-union discriminant and validates it
// against the set of known arms.
func (d *Decoder) UnionDiscriminant(known ...uint32) (uint32, error) {
	v, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	for _, k := range known {
		if v == k {
			return v, nil
		}
	}
	return 0, malformed(fmt.Sprintf("unknown union discriminant %d", v))
}

// ArrayLen reads a variable-array length and rejects it before the caller
// allocates anything sized by it.
func (d *Decoder) ArrayLen(max uint32) (uint32, error) {
	n, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	if n > max {
		return 0, malformed(fmt.Sprintf("array length %d exceeds maximum %d", n, max))
	}
	return n, nil
}

// Encoder writes values sequentially into a caller-provided buffer.
type Encoder struct {
	buf []byte
	pos int
}

func NewEncoder(buf []byte) *Encoder { return &Encoder{buf: buf} }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return e.pos }

// Bytes returns the written prefix of the buffer.
func (e *Encoder) Bytes() []byte { return e.buf[:e.pos] }

func (e *Encoder) room(n int) error {
	if e.pos+n > len(e.buf) {
		return &PayloadTooLarge{Needed: e.pos + n, Have: len(e.buf)}
	}
	return nil
}

func (e *Encoder) Uint32(v uint32) error {
	if err := e.room(4); err != nil {
		return err
	}
	e.buf[e.pos] = byte(v >> 24)
	e.buf[e.pos+1] = byte(v >> 16)
	e.buf[e.pos+2] = byte(v >> 8)
	e.buf[e.pos+3] = byte(v)
	e.pos += 4
	return nil
}

func (e *Encoder) Int32(v int32) error { return e.Uint32(uint32(v)) }

func (e *Encoder) Uint64(v uint64) error {
	if err := e.room(8); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		e.buf[e.pos+i] = byte(v >> uint(56-8*i))
	}
	e.pos += 8
	return nil
}

func (e *Encoder) Int64(v int64) error { return e.Uint64(uint64(v)) }

func (e *Encoder) Float64(v float64) error { return e.Uint64(float64Bits(v)) }

func (e *Encoder) Bool(v bool) error {
	if v {
		return e.Uint32(1)
	}
	return e.Uint32(0)
}

func (e *Encoder) FixedBytes(b []byte) error {
	if err := e.room(len(b)); err != nil {
		return err
	}
	copy(e.buf[e.pos:], b)
	e.pos += len(b)
	return nil
}

func (e *Encoder) WriteBytes(b []byte) error {
	if err := e.Uint32(uint32(len(b))); err != nil {
		return err
	}
	return e.FixedBytes(b)
}

func (e *Encoder) String(s string) error { return e.WriteBytes([]byte(s)) }

// PatchUint32 overwrites a previously reserved 4-byte slot, used to
// backpatch the frame length once the full message has been serialised.
func (e *Encoder) PatchUint32(offset int, v uint32) error {
	if offset+4 > len(e.buf) {
		return errors.New("patch offset out of range")
	}
	e.buf[offset] = byte(v >> 24)
	e.buf[offset+1] = byte(v >> 16)
	e.buf[offset+2] = byte(v >> 8)
	e.buf[offset+3] = byte(v)
	return nil
}

// Reserve advances the cursor by n bytes without writing, for fields
// patched in later (e.g. the length prefix).
func (e *Encoder) Reserve(n int) (offset int, err error) {
	if err := e.room(n); err != nil {
		return 0, err
	}
	offset = e.pos
	e.pos += n
	return offset, nil
}

func float64FromBits(b uint64) float64 { return math.Float64frombits(b) }

func float64Bits(f float64) uint64 { return math.Float64bits(f) }

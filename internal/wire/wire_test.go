package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	enc := NewEncoder(buf)
	require.NoError(t, enc.Uint32(0xdeadbeef))
	require.NoError(t, enc.Int32(-1))
	require.NoError(t, enc.Uint64(0x0102030405060708))
	require.NoError(t, enc.Bool(true))

	dec := NewDecoder(enc.Bytes())
	u32, err := dec.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)

	i32, err := dec.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), i32)

	u64, err := dec.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	b, err := dec.Bool()
	require.NoError(t, err)
	assert.True(t, b)
}

func TestStringRejectsOverLength(t *testing.T) {
	buf := make([]byte, 64)
	enc := NewEncoder(buf)
	require.NoError(t, enc.String("hello world"))

	dec := NewDecoder(enc.Bytes())
	_, err := dec.String(4)
	require.Error(t, err)
	var mm *MalformedMessage
	assert.ErrorAs(t, err, &mm)
}

func TestArrayLenRejectedBeforeAllocation(t *testing.T) {
	buf := make([]byte, 8)
	enc := NewEncoder(buf)
	require.NoError(t, enc.Uint32(1000))

	dec := NewDecoder(enc.Bytes())
	_, err := dec.ArrayLen(100)
	require.Error(t, err)
}

func TestUnionDiscriminantUnknown(t *testing.T) {
	buf := make([]byte, 8)
	enc := NewEncoder(buf)
	require.NoError(t, enc.Uint32(99))

	dec := NewDecoder(enc.Bytes())
	_, err := dec.UnionDiscriminant(0, 1, 2)
	require.Error(t, err)
}

func TestEncodeOversizeFails(t *testing.T) {
	buf := make([]byte, 2)
	enc := NewEncoder(buf)
	err := enc.Uint32(1)
	require.Error(t, err)
	var tooLarge *PayloadTooLarge
	assert.ErrorAs(t, err, &tooLarge)
}

func TestDecodePastEndFails(t *testing.T) {
	dec := NewDecoder([]byte{0x01, 0x02})
	_, err := dec.Uint32()
	require.Error(t, err)
}

func TestPatchUint32(t *testing.T) {
	buf := make([]byte, 16)
	enc := NewEncoder(buf)
	off, err := enc.Reserve(4)
	require.NoError(t, err)
	require.NoError(t, enc.Uint32(0x1))
	require.NoError(t, enc.PatchUint32(off, uint32(enc.Len())))

	dec := NewDecoder(enc.Bytes())
	length, err := dec.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(enc.Len()), length)
}

package sunspec_modbus

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderWordOrder(t *testing.T) {

	assert := assert.New(t)

	block := RawBlock{Words: []uint16{0x1234, 0x5678}}

	v, err := NewDecoder(block, binary.BigEndian, HighWordFirst).Uint32()
	assert.NoError(err)
	assert.Equal(uint32(0x12345678), v, "high word first")

	v, err = NewDecoder(block, binary.BigEndian, LowWordFirst).Uint32()
	assert.NoError(err)
	assert.Equal(uint32(0x56781234), v, "low word first")
}

func TestDecoderByteOrder(t *testing.T) {

	assert := assert.New(t)

	block := RawBlock{Words: []uint16{0x1234}}

	v, err := NewDecoder(block, binary.LittleEndian, HighWordFirst).Uint16()
	assert.NoError(err)
	assert.Equal(uint16(0x3412), v)
}

func TestDecoderScalars(t *testing.T) {

	require := require.New(t)

	block := NewBlockBuilder(binary.BigEndian, LowWordFirst).
		Int16(-42).
		Uint64(0x0102030405060708).
		Float32(12.5).
		Uint32(0xFFFFFFFE).
		Block(0, 9)
	d := NewDecoder(block, binary.BigEndian, LowWordFirst)

	i16, err := d.Int16()
	require.NoError(err)
	require.Equal(int16(-42), i16)

	u64, err := d.Uint64()
	require.NoError(err)
	require.Equal(uint64(0x0102030405060708), u64)

	f, err := d.Float32()
	require.NoError(err)
	require.Equal(float32(12.5), f)

	i32, err := d.Int32()
	require.NoError(err)
	require.Equal(int32(-2), i32)

	require.Equal(0, d.Remaining())
}

func TestDecoderString(t *testing.T) {

	assert := assert.New(t)

	block := NewBlockBuilder(binary.BigEndian, HighWordFirst).
		String("SMA", 8).
		String("12345678", 8).
		Block(0, 8)
	d := NewDecoder(block, binary.BigEndian, HighWordFirst)

	s, err := d.String(8)
	assert.NoError(err)
	assert.Equal("SMA", s, "trimmed at first NUL")

	s, err = d.String(8)
	assert.NoError(err)
	assert.Equal("12345678", s, "no NUL")
}

func TestDecoderShortBlock(t *testing.T) {

	assert := assert.New(t)

	d := NewDecoder(RawBlock{Words: []uint16{1}}, binary.BigEndian, HighWordFirst)

	_, err := d.Uint32()
	assert.ErrorIs(err, ErrShortBlock)
	assert.Equal(0, d.Offset(), "failed read does not move the cursor")

	_, err = d.String(4)
	assert.ErrorIs(err, ErrShortBlock)
}

func TestDecoderSkip(t *testing.T) {

	assert := assert.New(t)

	d := NewDecoder(RawBlock{Words: []uint16{1, 2, 3}}, binary.BigEndian, HighWordFirst)

	d.Skip(4)
	v, err := d.Uint16()
	assert.NoError(err)
	assert.Equal(uint16(3), v)

	d.Skip(-6)
	assert.Equal(0, d.Offset())

	assert.Panics(func() { d.Skip(-1) }, "seek before start")
	assert.Panics(func() { d.Skip(7) }, "seek past end")
	assert.NotPanics(func() { d.Skip(6) }, "seek to end")
}

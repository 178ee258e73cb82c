package sunspec_modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrShortBlock is returned when a decode reads past the end of a register block.
var ErrShortBlock = errors.New("register block too short")

// WordOrder selects how multi-register values are assembled from 16-bit words.
type WordOrder int

const (
	HighWordFirst WordOrder = iota
	LowWordFirst
)

func (o WordOrder) String() string {
	if o == LowWordFirst {
		return "low_word_first"
	}
	return "high_word_first"
}

// RawBlock is the result of one holding register read.
type RawBlock struct {
	Base  uint16
	Words []uint16
}

func (b RawBlock) Len() int {
	return len(b.Words)
}

// Decoder is a cursor over the bytes of a RawBlock. Registers are kept in wire
// order (high byte first); the byte order is applied when a word is decoded.
type Decoder struct {
	buf       []byte
	offset    int
	byteOrder binary.ByteOrder
	wordOrder WordOrder
}

func NewDecoder(block RawBlock, byteOrder binary.ByteOrder, wordOrder WordOrder) *Decoder {
	buf := make([]byte, 0, len(block.Words)*2)
	for _, w := range block.Words {
		buf = binary.BigEndian.AppendUint16(buf, w)
	}
	return &Decoder{
		buf:       buf,
		byteOrder: byteOrder,
		wordOrder: wordOrder,
	}
}

// Offset returns the cursor position in bytes.
func (d *Decoder) Offset() int {
	return d.offset
}

func (d *Decoder) Remaining() int {
	return len(d.buf) - d.offset
}

// Skip moves the cursor by a signed number of bytes. Seeking outside the block
// is a bug in the caller's field layout and panics.
func (d *Decoder) Skip(delta int) {
	next := d.offset + delta
	if next < 0 || next > len(d.buf) {
		panic(fmt.Sprintf("sunspec_modbus: seek to byte %d outside block of %d bytes", next, len(d.buf)))
	}
	d.offset = next
}

func (d *Decoder) take(n int) ([]byte, error) {
	if d.offset+n > len(d.buf) {
		return nil, fmt.Errorf("%w: %d bytes wanted at offset %d, block has %d", ErrShortBlock, n, d.offset, len(d.buf))
	}
	b := d.buf[d.offset : d.offset+n]
	d.offset += n
	return b, nil
}

func (d *Decoder) words(n int) ([]uint16, error) {
	b, err := d.take(n * 2)
	if err != nil {
		return nil, err
	}
	ws := make([]uint16, n)
	for i := range ws {
		ws[i] = d.byteOrder.Uint16(b[i*2:])
	}
	if d.wordOrder == LowWordFirst {
		slices.Reverse(ws)
	}
	return ws, nil
}

func (d *Decoder) Uint16() (uint16, error) {
	ws, err := d.words(1)
	if err != nil {
		return 0, err
	}
	return ws[0], nil
}

func (d *Decoder) Int16() (int16, error) {
	v, err := d.Uint16()
	return int16(v), err
}

func (d *Decoder) Uint32() (uint32, error) {
	ws, err := d.words(2)
	if err != nil {
		return 0, err
	}
	return uint32(ws[0])<<16 | uint32(ws[1]), nil
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Uint64() (uint64, error) {
	ws, err := d.words(4)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, w := range ws {
		v = v<<16 | uint64(w)
	}
	return v, nil
}

func (d *Decoder) Float32() (float32, error) {
	v, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// String reads size bytes of text and trims it at the first NUL.
func (d *Decoder) String(size int) (string, error) {
	b, err := d.take(size)
	if err != nil {
		return "", err
	}
	if f := slices.Index(b, 0x00); f >= 0 {
		return string(b[:f]), nil
	}
	return string(b), nil
}

func applySF(value float64, sf int16) float64 {
	return round2(value * math.Pow(10, float64(sf)))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

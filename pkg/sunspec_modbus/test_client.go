package sunspec_modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
)

// TestRegisterSource serves fixed register blocks from memory. Failures can be
// queued per address to script transport errors.
type TestRegisterSource struct {
	mu       sync.Mutex
	blocks   map[uint16][]uint16
	failures map[uint16][]error
	failing  map[uint16]error
	reads    []uint16
	closed   int
}

func NewTestRegisterSource() *TestRegisterSource {
	return &TestRegisterSource{
		blocks:   map[uint16][]uint16{},
		failures: map[uint16][]error{},
		failing:  map[uint16]error{},
	}
}

// NewTestSolarEdgeSource serves an inverter with the given number of meters and batteries.
func NewTestSolarEdgeSource(meters, batteries int) *TestRegisterSource {
	s := NewTestRegisterSource()
	s.SetBlock(TestIdentityBlock(InverterInfoAddress, "SolarEdge", "SE5000H-RW000BNN4", "7E0F1234"))
	s.SetBlock(TestInverterBlock())
	for i := 0; i < meters; i++ {
		s.SetBlock(TestIdentityBlock(MeterInfoAddresses[i], "WattNode", "WNC-3Y-400-MB", fmt.Sprintf("SN1000%d", i+1)))
		s.SetBlock(TestMeterBlock(MeterAddresses[i]))
	}
	for i := 0; i < batteries; i++ {
		s.SetBlock(TestBatteryIdentityBlock(BatteryInfoAddresses[i], "LG", "RESU10H", fmt.Sprintf("BT0000%d", i+1)))
		s.SetBlock(TestBatteryBlock(BatteryAddresses[i]))
	}
	return s
}

func (s *TestRegisterSource) SetBlock(block RawBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[block.Base] = slices.Clone(block.Words)
}

// FailNext makes the next reads at address fail with errs, in order.
func (s *TestRegisterSource) FailNext(address uint16, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[address] = append(s.failures[address], errs...)
}

// FailAlways makes every read at address fail with err until Recover is called.
func (s *TestRegisterSource) FailAlways(address uint16, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[address] = err
}

func (s *TestRegisterSource) Recover(address uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failing, address)
}

func (s *TestRegisterSource) ReadCount(address uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.reads {
		if a == address {
			n++
		}
	}
	return n
}

func (s *TestRegisterSource) Reads() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reads)
}

func (s *TestRegisterSource) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *TestRegisterSource) ReadHoldingRegisters(address uint16, count uint16) (RawBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, address)

	if q := s.failures[address]; len(q) > 0 {
		s.failures[address] = q[1:]
		return RawBlock{}, q[0]
	}
	if err, ok := s.failing[address]; ok {
		return RawBlock{}, err
	}
	words, ok := s.blocks[address]
	if !ok {
		return RawBlock{}, &TransportError{Kind: FailureUnknown, Address: address, Count: count, Err: errors.New("illegal data address")}
	}
	return RawBlock{Base: address, Words: slices.Clone(words[:min(int(count), len(words))])}, nil
}

func (s *TestRegisterSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// BlockBuilder encodes values into registers, the inverse of Decoder.
type BlockBuilder struct {
	byteOrder binary.ByteOrder
	wordOrder WordOrder
	buf       []byte
}

func NewBlockBuilder(byteOrder binary.ByteOrder, wordOrder WordOrder) *BlockBuilder {
	return &BlockBuilder{byteOrder: byteOrder, wordOrder: wordOrder}
}

func (b *BlockBuilder) putWords(ws ...uint16) *BlockBuilder {
	if b.wordOrder == LowWordFirst {
		slices.Reverse(ws)
	}
	var tmp [2]byte
	for _, w := range ws {
		b.byteOrder.PutUint16(tmp[:], w)
		b.buf = append(b.buf, tmp[:]...)
	}
	return b
}

func (b *BlockBuilder) Uint16(v uint16) *BlockBuilder {
	return b.putWords(v)
}

func (b *BlockBuilder) Int16(v int16) *BlockBuilder {
	return b.putWords(uint16(v))
}

func (b *BlockBuilder) Uint32(v uint32) *BlockBuilder {
	return b.putWords(uint16(v>>16), uint16(v))
}

func (b *BlockBuilder) Uint64(v uint64) *BlockBuilder {
	return b.putWords(uint16(v>>48), uint16(v>>32), uint16(v>>16), uint16(v))
}

func (b *BlockBuilder) Float32(v float32) *BlockBuilder {
	return b.Uint32(math.Float32bits(v))
}

// String writes s NUL padded to size bytes.
func (b *BlockBuilder) String(s string, size int) *BlockBuilder {
	field := make([]byte, size)
	copy(field, s)
	b.buf = append(b.buf, field...)
	return b
}

func (b *BlockBuilder) Zero(words int) *BlockBuilder {
	b.buf = append(b.buf, make([]byte, words*2)...)
	return b
}

// Block returns the encoded registers zero padded to words.
func (b *BlockBuilder) Block(base uint16, words int) RawBlock {
	buf := slices.Clone(b.buf)
	if len(buf) < words*2 {
		buf = append(buf, make([]byte, words*2-len(buf))...)
	}
	ws := make([]uint16, len(buf)/2)
	for i := range ws {
		ws[i] = binary.BigEndian.Uint16(buf[i*2:])
	}
	return RawBlock{Base: base, Words: ws}
}

func TestIdentityBlock(address uint16, manufacturer, model, serial string) RawBlock {
	return NewBlockBuilder(binary.BigEndian, HighWordFirst).
		String(manufacturer, 32).
		String(model, 32).
		String("", 16).
		String("0004.0018.0402", 16).
		String(serial, 32).
		Uint16(1).
		Block(address, int(InverterInfoWords))
}

func TestBatteryIdentityBlock(address uint16, manufacturer, model, serial string) RawBlock {
	return NewBlockBuilder(binary.BigEndian, LowWordFirst).
		String(manufacturer, 32).
		String(model, 32).
		String("1.0.6", 32).
		String(serial, 32).
		Uint16(15).
		Zero(1).
		Float32(9800).
		Float32(5000).
		Float32(5000).
		Float32(7000).
		Float32(7000).
		Block(address, int(BatteryInfoWords))
}

// TestInverterBlock holds AC current 12.3 A, AC power 2800 W, frequency
// 50.01 Hz, power factor -98.5, energy 12345678 Wh, heat sink 42.5 C and
// status MPPT.
func TestInverterBlock() RawBlock {
	b := NewBlockBuilder(binary.BigEndian, HighWordFirst)
	b.Uint16(103).Uint16(50)
	b.Uint16(123).Uint16(41).Uint16(41).Uint16(41).Int16(-1)
	b.Uint16(4000).Uint16(4001).Uint16(4002).Uint16(2301).Uint16(2302).Uint16(2303).Int16(-1)
	b.Int16(2800).Int16(0)
	b.Uint16(5001).Int16(-2)
	b.Int16(2850).Int16(0)
	b.Int16(-150).Int16(0)
	b.Int16(-9850).Int16(-2)
	b.Uint32(12345678).Int16(0)
	b.Uint16(75).Int16(-1)
	b.Uint16(3800).Int16(-1)
	b.Int16(2900).Int16(0)
	b.Int16(3100).Int16(4250).Int16(0).Int16(0).Int16(-2)
	b.Uint16(InverterStatusMPPT).Uint16(0)
	return b.Block(InverterAddress, int(InverterWords))
}

// TestMeterBlock holds a grid meter exporting 1500 W at 50 Hz.
func TestMeterBlock(address uint16) RawBlock {
	b := NewBlockBuilder(binary.BigEndian, HighWordFirst)
	b.Uint16(203).Uint16(105)
	b.Int16(-652).Int16(-217).Int16(-218).Int16(-217).Int16(-2)
	b.Int16(2301).Int16(2300).Int16(2301).Int16(2302).Int16(3985).Int16(3984).Int16(3986).Int16(3985).Int16(-1)
	b.Int16(5000).Int16(-2)
	b.Int16(-1500).Int16(-500).Int16(-500).Int16(-500).Int16(0)
	b.Int16(1520).Int16(507).Int16(506).Int16(507).Int16(0)
	b.Int16(-120).Int16(-40).Int16(-40).Int16(-40).Int16(0)
	b.Int16(-987).Int16(-987).Int16(-986).Int16(-988).Int16(-1)
	b.Uint32(4567890).Uint32(1522630).Uint32(1522630).Uint32(1522630)
	b.Uint32(987654).Uint32(329218).Uint32(329218).Uint32(329218)
	b.Int16(0)
	return b.Block(address, int(MeterWords))
}

// TestBatteryBlock holds a battery discharging 1250 W at 80 % state of energy.
func TestBatteryBlock(address uint16) RawBlock {
	b := NewBlockBuilder(binary.BigEndian, LowWordFirst)
	b.Float32(9800).Float32(5000).Float32(5000).Float32(7000).Float32(7000)
	b.Zero(32)
	b.Float32(24.5).Float32(26).Float32(400).Float32(-3.125).Float32(-1250)
	b.Uint64(3456789).Uint64(4567890)
	b.Float32(9600).Float32(7680).Float32(98).Float32(80)
	b.Uint32(4).Uint32(0x10001)
	return b.Block(address, int(BatteryWords))
}

package sunspec_modbus

import (
	"encoding/binary"
	"fmt"
)

// Register map of a SolarEdge inverter with up to three meters and two batteries.
const (
	InverterInfoAddress uint16 = 40004
	InverterInfoWords   uint16 = 65
	InverterAddress     uint16 = 40069
	InverterWords       uint16 = 50

	MeterInfoWords uint16 = 65
	MeterWords     uint16 = 105

	BatteryInfoWords uint16 = 76
	BatteryWords     uint16 = 72

	MaxMeters    = 3
	MaxBatteries = 2
)

var (
	MeterInfoAddresses   = [MaxMeters]uint16{40123, 40297, 40471}
	MeterAddresses       = [MaxMeters]uint16{40188, 40362, 40537}
	BatteryInfoAddresses = [MaxBatteries]uint16{57600, 57856}
	BatteryAddresses     = [MaxBatteries]uint16{57666, 57922}
)

// DeviceIdentity is the SunSpec common block of an inverter or meter.
type DeviceIdentity struct {
	Manufacturer  string
	Model         string
	Option        string
	Version       string
	Serial        string
	DeviceAddress uint16
}

// Label identifies a device instance as "<manufacturer>(<serial>)".
func (id DeviceIdentity) Label() string {
	return fmt.Sprintf("%s(%s)", id.Manufacturer, id.Serial)
}

type BatteryIdentity struct {
	DeviceIdentity
	RatedEnergy                 float64
	MaxChargeContinuousPower    float64
	MaxDischargeContinuousPower float64
	MaxChargePeakPower          float64
	MaxDischargePeakPower       float64
}

// DecodeCommonIdentity decodes the identification block of the inverter or a meter.
func DecodeCommonIdentity(block RawBlock) (*DeviceIdentity, error) {
	d := NewDecoder(block, binary.BigEndian, HighWordFirst)
	var id DeviceIdentity
	var err error
	for _, s := range []struct {
		dst  *string
		size int
	}{
		{&id.Manufacturer, 32},
		{&id.Model, 32},
		{&id.Option, 16},
		{&id.Version, 16},
		{&id.Serial, 32},
	} {
		if *s.dst, err = d.String(s.size); err != nil {
			return nil, fmt.Errorf("identity block at %d: %w", block.Base, err)
		}
	}
	if id.DeviceAddress, err = d.Uint16(); err != nil {
		return nil, fmt.Errorf("identity block at %d: %w", block.Base, err)
	}
	return &id, nil
}

// DecodeBatteryIdentity decodes a battery identification block, low word first.
func DecodeBatteryIdentity(block RawBlock) (*BatteryIdentity, error) {
	d := NewDecoder(block, binary.BigEndian, LowWordFirst)
	var id BatteryIdentity
	var err error
	for _, dst := range []*string{&id.Manufacturer, &id.Model, &id.Version, &id.Serial} {
		if *dst, err = d.String(32); err != nil {
			return nil, fmt.Errorf("battery identity block at %d: %w", block.Base, err)
		}
	}
	if id.DeviceAddress, err = d.Uint16(); err != nil {
		return nil, fmt.Errorf("battery identity block at %d: %w", block.Base, err)
	}
	d.Skip(min(2, d.Remaining()))
	for _, dst := range []*float64{
		&id.RatedEnergy,
		&id.MaxChargeContinuousPower,
		&id.MaxDischargeContinuousPower,
		&id.MaxChargePeakPower,
		&id.MaxDischargePeakPower,
	} {
		v, err := d.Float32()
		if err != nil {
			return nil, fmt.Errorf("battery identity block at %d: %w", block.Base, err)
		}
		*dst = float64(v)
	}
	return &id, nil
}

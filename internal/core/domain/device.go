package domain

import "fmt"

type DeviceClass int

const (
	DeviceInverter DeviceClass = iota
	DeviceMeter
	DeviceBattery
)

func (c DeviceClass) String() string {
	switch c {
	case DeviceMeter:
		return "meter"
	case DeviceBattery:
		return "battery"
	default:
		return "inverter"
	}
}

// FieldPrefix is the prefix shared by every field name of the class.
func (c DeviceClass) FieldPrefix() string {
	switch c {
	case DeviceMeter:
		return "M_"
	case DeviceBattery:
		return "B_"
	default:
		return ""
	}
}

// DeviceRef identifies one polled device. Index is 1-based for meters and
// batteries and unused for the inverter.
type DeviceRef struct {
	Class DeviceClass
	Index int
	Label string
}

// Section names the device in logs and I/O metrics: inverter, meter1, battery2.
func (d DeviceRef) Section() string {
	if d.Class == DeviceInverter {
		return d.Class.String()
	}
	return fmt.Sprintf("%s%d", d.Class, d.Index)
}

func (d DeviceRef) InfoSection() string {
	return d.Section() + "_info"
}

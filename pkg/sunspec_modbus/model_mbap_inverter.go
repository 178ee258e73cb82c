package sunspec_modbus

import (
	"encoding/binary"
	"fmt"
)

const (
	InverterStatusOff          = 1
	InverterStatusSleeping     = 2
	InverterStatusStarting     = 3
	InverterStatusMPPT         = 4
	InverterStatusThrottled    = 5
	InverterStatusShuttingDown = 6
	InverterStatusFault        = 7
	InverterStatusStandby      = 8
)

const (
	InverterStatusOffStr          = "off"
	InverterStatusSleepingStr     = "sleeping"
	InverterStatusStartingStr     = "starting"
	InverterStatusMPPTStr         = "mppt_tracking"
	InverterStatusThrottledStr    = "throttled"
	InverterStatusShuttingDownStr = "shutting_down"
	InverterStatusFaultStr        = "fault"
	InverterStatusStandbyStr      = "standby"
	InverterStatusUnknown         = "unknown"
)

func InverterStatusToString(state uint16) string {
	switch state {
	case InverterStatusOff:
		return InverterStatusOffStr
	case InverterStatusSleeping:
		return InverterStatusSleepingStr
	case InverterStatusStarting:
		return InverterStatusStartingStr
	case InverterStatusMPPT:
		return InverterStatusMPPTStr
	case InverterStatusThrottled:
		return InverterStatusThrottledStr
	case InverterStatusShuttingDown:
		return InverterStatusShuttingDownStr
	case InverterStatusFault:
		return InverterStatusFaultStr
	case InverterStatusStandby:
		return InverterStatusStandbyStr
	default:
		return fmt.Sprintf("%s(%d)", InverterStatusUnknown, state)
	}
}

// InverterModel decodes the inverter block (SunSpec model 101-103) read at
// InverterAddress.
var InverterModel = Model{
	Name:      "inverter",
	ByteOrder: binary.BigEndian,
	WordOrder: HighWordFirst,
	Sentinels: true,
	Groups: []FieldGroup{
		{Fields: []Field{{"SunSpec_DID", Uint16}, {"SunSpec_Length", Uint16}}},
		{Scaled: true, Fields: []Field{
			{"AC_Current", Uint16}, {"AC_CurrentA", Uint16}, {"AC_CurrentB", Uint16}, {"AC_CurrentC", Uint16},
		}},
		{Skip: 2, Scaled: true, Fields: []Field{
			{"AC_VoltageAB", Uint16}, {"AC_VoltageBC", Uint16}, {"AC_VoltageCA", Uint16},
			{"AC_VoltageAN", Uint16}, {"AC_VoltageBN", Uint16}, {"AC_VoltageCN", Uint16},
		}},
		{Skip: 2, Scaled: true, Fields: []Field{{"AC_Power", Int16}}},
		{Skip: 2, Scaled: true, Fields: []Field{{"AC_Frequency", Uint16}}},
		{Skip: 2, Scaled: true, Fields: []Field{{"AC_VA", Int16}}},
		{Skip: 2, Scaled: true, Fields: []Field{{"AC_VAR", Int16}}},
		{Skip: 2, Scaled: true, Fields: []Field{{"AC_PF", Int16}}},
		{Skip: 2, Scaled: true, Fields: []Field{{"AC_Energy_WH", Uint32}}},
		{Skip: 2, Scaled: true, Fields: []Field{{"DC_Current", Uint16}}},
		{Skip: 2, Scaled: true, Fields: []Field{{"DC_Voltage", Uint16}}},
		{Skip: 2, Scaled: true, Fields: []Field{{"DC_Power", Int16}}},
		// heat sink only; cabinet, transformer and other temperatures are skipped
		{Skip: 4, Scaled: true, ScaleGap: 4, Fields: []Field{{"Temp_Sink", Int16}}},
		{Skip: 6, Fields: []Field{{"Status", Uint16}, {"Status_Vendor", Uint16}}},
	},
	Placeholders: []string{
		"AC_Current_SF", "AC_Voltage_SF", "AC_Power_SF", "AC_Frequency_SF", "AC_VA_SF", "AC_VAR_SF",
		"AC_PF_SF", "AC_Energy_WH_SF", "DC_Current_SF", "DC_Voltage_SF", "DC_Power_SF", "Temp_SF",
	},
}

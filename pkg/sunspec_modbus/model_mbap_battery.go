package sunspec_modbus

import "encoding/binary"

// BatteryModel decodes a SolarEdge battery telemetry block read at one of
// BatteryAddresses. Values are IEEE floats and counters with the low word
// first and no scale factors.
var BatteryModel = Model{
	Name:      "battery",
	ByteOrder: binary.BigEndian,
	WordOrder: LowWordFirst,
	Groups: []FieldGroup{
		{Fields: []Field{
			{"B_Rated_Energy", Float32},
			{"B_Max_Charge_Continues_Power", Float32},
			{"B_Max_Discharge_Continues_Power", Float32},
			{"B_Max_Charge_Peak_Power", Float32},
			{"B_Max_Discharge_Peak_Power", Float32},
		}},
		{Skip: 64, Fields: []Field{
			{"B_Average_Temperature", Float32},
			{"B_Max_Temperature", Float32},
			{"B_Instantaneous_Voltage", Float32},
			{"B_Instantaneous_Current", Float32},
			{"B_Instantaneous_Power", Float32},
			{"B_Lifetime_Export_Energy_Counter", Uint64},
			{"B_Lifetime_Import_Energy_Counter", Uint64},
			{"B_Max_Energy", Float32},
			{"B_Available_Energy", Float32},
			{"B_State_of_Health", Float32},
			{"B_State_of_Energy", Float32},
			{"B_Status", Uint32},
			{"B_Status_Internal", Uint32},
		}},
	},
}

package sunspec_modbus

import "encoding/binary"

// MeterModel decodes a SunSpec wye-connected meter block (model 203) read at
// one of MeterAddresses. Every 16-bit value is signed.
var MeterModel = Model{
	Name:      "meter",
	ByteOrder: binary.BigEndian,
	WordOrder: HighWordFirst,
	Sentinels: true,
	Groups: []FieldGroup{
		{Fields: []Field{{"M_SunSpec_DID", Uint16}, {"M_SunSpec_Length", Uint16}}},
		{Scaled: true, Fields: []Field{
			{"M_AC_Current", Int16}, {"M_AC_CurrentA", Int16}, {"M_AC_CurrentB", Int16}, {"M_AC_CurrentC", Int16},
		}},
		{Skip: 2, Scaled: true, Fields: []Field{
			{"M_AC_VoltageLN", Int16}, {"M_AC_VoltageAN", Int16}, {"M_AC_VoltageBN", Int16}, {"M_AC_VoltageCN", Int16},
			{"M_AC_VoltageLL", Int16}, {"M_AC_VoltageAB", Int16}, {"M_AC_VoltageBC", Int16}, {"M_AC_VoltageCA", Int16},
		}},
		{Skip: 2, Scaled: true, Fields: []Field{{"M_AC_Frequency", Int16}}},
		{Skip: 2, Scaled: true, Fields: phaseFields("M_AC_Power_", "M_AC_Power", Int16)},
		{Skip: 2, Scaled: true, Fields: phaseFields("M_AC_VA_", "M_AC_VA", Int16)},
		{Skip: 2, Scaled: true, Fields: phaseFields("M_AC_VAR_", "M_AC_VAR", Int16)},
		{Skip: 2, Scaled: true, Fields: phaseFields("M_AC_PF_", "M_AC_PF", Int16)},
		{Skip: 2, Scaled: true, Fields: append(
			phaseFields("M_Exported_", "M_Exported", Uint32),
			phaseFields("M_Imported_", "M_Imported", Uint32)...,
		)},
	},
	Placeholders: []string{
		"M_AC_Current_SF", "M_AC_Voltage_SF", "M_AC_Frequency_SF", "M_AC_Power_SF",
		"M_AC_VA_SF", "M_AC_VAR_SF", "M_AC_PF_SF", "M_Energy_W_SF",
	},
}

// phaseFields returns the total followed by phases A, B and C.
func phaseFields(prefix, total string, kind FieldKind) []Field {
	return []Field{
		{total, kind},
		{prefix + "A", kind},
		{prefix + "B", kind},
		{prefix + "C", kind},
	}
}

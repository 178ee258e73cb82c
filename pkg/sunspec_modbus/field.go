package sunspec_modbus

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

type FieldKind int

const (
	Uint16 FieldKind = iota
	Int16
	Uint32
	Uint64
	Float32
)

func (k FieldKind) width() int {
	switch k {
	case Uint32, Float32:
		return 4
	case Uint64:
		return 8
	default:
		return 2
	}
}

// sentinel is the raw value at or above which a field reads as not available.
// Signed fields are compared after sign conversion and never reach it.
func (k FieldKind) sentinel() (float64, bool) {
	switch k {
	case Uint16, Int16:
		return math.MaxUint16, true
	case Uint32:
		return math.MaxUint32, true
	default:
		return 0, false
	}
}

func (k FieldKind) read(d *Decoder) (float64, error) {
	switch k {
	case Uint16:
		v, err := d.Uint16()
		return float64(v), err
	case Int16:
		v, err := d.Int16()
		return float64(v), err
	case Uint32:
		v, err := d.Uint32()
		return float64(v), err
	case Uint64:
		v, err := d.Uint64()
		return float64(v), err
	case Float32:
		v, err := d.Float32()
		return float64(v), err
	}
	return 0, fmt.Errorf("unknown field kind %d", k)
}

type Field struct {
	Name string
	Kind FieldKind
}

// FieldGroup is a run of consecutive fields. Skip bytes are passed over before
// the first field. A scaled group shares one int16 scale factor stored
// ScaleGap bytes after its last value.
type FieldGroup struct {
	Skip     int
	Fields   []Field
	Scaled   bool
	ScaleGap int
}

func (g FieldGroup) valuesWidth() int {
	w := 0
	for _, f := range g.Fields {
		w += f.Kind.width()
	}
	return w
}

func (g FieldGroup) decode(d *Decoder, sentinels bool, r *Reading) error {
	d.Skip(g.Skip)

	var sf int16
	if g.Scaled {
		span := g.valuesWidth() + g.ScaleGap
		d.Skip(span)
		v, err := d.Int16()
		if err != nil {
			return err
		}
		sf = v
		d.Skip(-(span + 2))
	}

	for _, f := range g.Fields {
		raw, err := f.Kind.read(d)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		if limit, ok := f.Kind.sentinel(); sentinels && ok && raw >= limit {
			r.add(f.Name, 0)
			continue
		}
		if g.Scaled {
			raw = applySF(raw, sf)
		}
		r.add(f.Name, raw)
	}
	return nil
}

// Model is a declarative register layout decoded from one block read.
// Placeholders are appended as zero-valued fields after the decoded ones.
type Model struct {
	Name         string
	ByteOrder    binary.ByteOrder
	WordOrder    WordOrder
	Sentinels    bool
	Groups       []FieldGroup
	Placeholders []string
}

// Size returns the number of bytes a block must hold for the model to decode.
func (m Model) Size() int {
	pos, end := 0, 0
	for _, g := range m.Groups {
		pos += g.Skip
		if g.Scaled {
			end = max(end, pos+g.valuesWidth()+g.ScaleGap+2)
		}
		pos += g.valuesWidth()
		end = max(end, pos)
	}
	return end
}

// FieldNames lists the fields in publish order.
func (m Model) FieldNames() []string {
	var names []string
	for _, g := range m.Groups {
		for _, f := range g.Fields {
			names = append(names, f.Name)
		}
	}
	return append(names, m.Placeholders...)
}

func (m Model) Decode(block RawBlock) (Reading, error) {
	if have, need := block.Len()*2, m.Size(); have < need {
		return Reading{}, fmt.Errorf("%s block at %d: %w: %d bytes, layout needs %d", m.Name, block.Base, ErrShortBlock, have, need)
	}
	d := NewDecoder(block, m.ByteOrder, m.WordOrder)
	r := Reading{fields: make([]ReadingField, 0, len(m.Placeholders)+len(m.Groups)*4)}
	for _, g := range m.Groups {
		if err := g.decode(d, m.Sentinels, &r); err != nil {
			return Reading{}, fmt.Errorf("%s block at %d: %w", m.Name, block.Base, err)
		}
	}
	for _, name := range m.Placeholders {
		r.add(name, 0)
	}
	return r, nil
}

type ReadingField struct {
	Name  string
	Value float64
}

// Reading is the ordered, normalized result of decoding one device block.
type Reading struct {
	fields []ReadingField
}

func NewReading(fields ...ReadingField) Reading {
	return Reading{fields: slices.Clone(fields)}
}

func (r *Reading) add(name string, value float64) {
	r.fields = append(r.fields, ReadingField{Name: name, Value: value})
}

func (r Reading) Len() int {
	return len(r.fields)
}

func (r Reading) Fields() []ReadingField {
	return slices.Clone(r.fields)
}

func (r Reading) Get(name string) (float64, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

func (r Reading) Map() map[string]float64 {
	m := make(map[string]float64, len(r.fields))
	for _, f := range r.fields {
		m[f.Name] = f.Value
	}
	return m
}

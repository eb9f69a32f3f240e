package zwave

import (
	"bytes"
	"encoding/json"
	"math"
)

// ValueKind is the configuration_value_type reported by Z-Wave JS.
type ValueKind int

// Parameter value kinds.
const (
	KindOther ValueKind = iota
	KindEnumerated
	KindManualEntry
)

func (k ValueKind) String() string {
	switch k {
	case KindEnumerated:
		return "enumerated"
	case KindManualEntry:
		return "manual_entry"
	default:
		return "other"
	}
}

func parseValueKind(s string) ValueKind {
	switch s {
	case "enumerated":
		return KindEnumerated
	case "manual_entry":
		return KindManualEntry
	default:
		return KindOther
	}
}

// Parameter is one configuration parameter as read from a device.
//
// Raw holds the undecoded JSON value; use DecodeEnumerated or DecodeInt to
// read it.
type Parameter struct {
	Property    int
	PropertyKey *int
	Kind        ValueKind
	Raw         json.RawMessage
}

type wireParameter struct {
	Property               int             `json:"property"`
	PropertyKey            *int            `json:"property_key"`
	ConfigurationValueType string          `json:"configuration_value_type"`
	Value                  json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes the zwave_js/get_config_parameters representation.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var w wireParameter
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Property = w.Property
	p.PropertyKey = w.PropertyKey
	p.Kind = parseValueKind(w.ConfigurationValueType)
	p.Raw = w.Value
	return nil
}

// MarshalJSON encodes the parameter in wire form.
func (p Parameter) MarshalJSON() ([]byte, error) {
	raw := p.Raw
	if raw == nil {
		raw = json.RawMessage("null")
	}
	return json.Marshal(wireParameter{
		Property:               p.Property,
		PropertyKey:            p.PropertyKey,
		ConfigurationValueType: p.Kind.String(),
		Value:                  raw,
	})
}

// Enum is an int-backed enumeration that knows its valid variants.
type Enum interface {
	~int
	Valid() bool
}

// DecodeEnumerated extracts an enumerated value.
//
// It fails when the parameter is not enumerated, the value is not an
// integer, or no variant of T has that number.
func DecodeEnumerated[T Enum](p Parameter) (T, bool) {
	var zero T
	if p.Kind != KindEnumerated {
		return zero, false
	}
	n, ok := integral(p.Raw)
	if !ok {
		return zero, false
	}
	v := T(n)
	if !v.Valid() {
		return zero, false
	}
	return v, true
}

// DecodeInt extracts a manual entry integer.
func DecodeInt(p Parameter) (int, bool) {
	if p.Kind != KindManualEntry {
		return 0, false
	}
	return integral(p.Raw)
}

// integral reads a JSON number with no fractional part.
func integral(raw json.RawMessage) (int, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := num.Int64(); err == nil {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0, false
		}
		return int(i), true
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

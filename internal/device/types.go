package device

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AttributeType is the closed set of value types the hub reports.
type AttributeType uint8

// Attribute types. The zero value is reserved for "no type" so that an absent
// Value carries no type.
const (
	TypeBool AttributeType = iota + 1
	TypeUInt8
	TypeUInt16
	TypeUInt32
	TypeUInt64
	TypeString
)

var typeNames = map[AttributeType]string{
	TypeBool:   "Bool",
	TypeUInt8:  "UInt8",
	TypeUInt16: "UInt16",
	TypeUInt32: "UInt32",
	TypeUInt64: "UInt64",
	TypeString: "String",
}

// toolTypeNames maps the TYPE column of the control tool's attribute table.
var toolTypeNames = map[string]AttributeType{
	"BOOL":   TypeBool,
	"UINT8":  TypeUInt8,
	"UINT16": TypeUInt16,
	"UINT32": TypeUInt32,
	"UINT64": TypeUInt64,
	"STRING": TypeString,
}

// ParseAttributeType maps a control tool type name (BOOL, UINT8, ...) to an AttributeType.
func ParseAttributeType(name string) (AttributeType, error) {
	t, ok := toolTypeNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// Valid reports whether t is one of the defined types.
func (t AttributeType) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// String returns the display name of the type.
func (t AttributeType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("AttributeType(%d)", uint8(t))
}

// MarshalJSON encodes the type by name.
func (t AttributeType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts both display names (UInt8) and tool names (UINT8).
func (t *AttributeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAttributeType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MaxUint returns the largest value representable by an unsigned type, 1 for
// Bool and 0 for String.
func (t AttributeType) MaxUint() uint64 {
	switch t {
	case TypeBool:
		return 1
	case TypeUInt8:
		return math.MaxUint8
	case TypeUInt16:
		return math.MaxUint16
	case TypeUInt32:
		return math.MaxUint32
	case TypeUInt64:
		return math.MaxUint64
	default:
		return 0
	}
}

func (t AttributeType) bits() int {
	switch t {
	case TypeUInt8:
		return 8
	case TypeUInt16:
		return 16
	case TypeUInt32:
		return 32
	default:
		return 64
	}
}

func (t AttributeType) isUint() bool {
	return t >= TypeUInt8 && t <= TypeUInt64
}

// Parse decodes client-supplied text (an HTTP value_text or a raw MQTT payload).
// Input is trimmed. Bool accepts true/1/yes/on and false/0/no/off in any case.
func (t AttributeType) Parse(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case t == TypeString:
		return StringValue(s), nil
	case t == TypeBool:
		switch strings.ToLower(s) {
		case "true", "1", "yes", "on":
			return BoolValue(true), nil
		case "false", "0", "no", "off":
			return BoolValue(false), nil
		}
		return Value{}, fmt.Errorf("%w: bad boolean %q", ErrInvalidValue, s)
	case t.isUint():
		n, err := strconv.ParseUint(s, 10, t.bits())
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a %s", ErrInvalidValue, s, t)
		}
		return uintValue(t, n), nil
	}
	return Value{}, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
}

// ParseJSON decodes a value taken from a JSON document. Numbers should be
// decoded with json.Decoder.UseNumber so that 64-bit values survive.
//
// Strings fall back to Parse, so {"Level": "128"} and {"Level": 128} are equivalent.
// A String attribute accepts any JSON value and stores its JSON text.
func (t AttributeType) ParseJSON(v any) (Value, error) {
	switch x := v.(type) {
	case string:
		return t.Parse(x)
	case bool:
		switch t {
		case TypeBool:
			return BoolValue(x), nil
		case TypeString:
			return StringValue(strconv.FormatBool(x)), nil
		}
	case json.Number:
		if t == TypeString {
			return StringValue(x.String()), nil
		}
		n, err := strconv.ParseUint(x.String(), 10, 64)
		if err != nil {
			break
		}
		if t == TypeBool {
			switch n {
			case 0:
				return BoolValue(false), nil
			case 1:
				return BoolValue(true), nil
			}
			break
		}
		if t.isUint() && n <= t.MaxUint() {
			return uintValue(t, n), nil
		}
	case float64:
		if x >= 0 && x == math.Trunc(x) && x < float64(math.MaxUint64) {
			return t.ParseJSON(json.Number(strconv.FormatUint(uint64(x), 10)))
		}
		if t == TypeString {
			return StringValue(strconv.FormatFloat(x, 'g', -1, 64)), nil
		}
	case nil:
		if t == TypeString {
			return StringValue("null"), nil
		}
	default:
		if t == TypeString {
			raw, err := json.Marshal(x)
			if err == nil {
				return StringValue(string(raw)), nil
			}
		}
	}
	return Value{}, fmt.Errorf("%w: %v is not a %s", ErrInvalidValue, v, t)
}

// Decode decodes a GET or SET cell of the control tool's attribute table.
// An empty cell is an absent value. Bool accepts TRUE/FALSE and the legacy
// ON/OFF spelling.
func (t AttributeType) Decode(cell string) (Value, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return NoValue(), nil
	}
	switch {
	case t == TypeString:
		return StringValue(cell), nil
	case t == TypeBool:
		switch strings.ToUpper(cell) {
		case "TRUE", "ON":
			return BoolValue(true), nil
		case "FALSE", "OFF":
			return BoolValue(false), nil
		}
		return Value{}, fmt.Errorf("%w: bad boolean %q", ErrInvalidValue, cell)
	case t.isUint():
		n, err := strconv.ParseUint(cell, 10, t.bits())
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a %s", ErrInvalidValue, cell, t)
		}
		return uintValue(t, n), nil
	}
	return Value{}, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
}

package device

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a typed attribute value or the absence of one.
//
// The zero Value is absent. Values are immutable and comparable with ==.
type Value struct {
	typ AttributeType
	u   uint64
	b   bool
	s   string
}

// NoValue returns the absent value.
func NoValue() Value { return Value{} }

// BoolValue returns a Bool value.
func BoolValue(b bool) Value { return Value{typ: TypeBool, b: b} }

// UInt8Value returns a UInt8 value.
func UInt8Value(n uint8) Value { return Value{typ: TypeUInt8, u: uint64(n)} }

// UInt16Value returns a UInt16 value.
func UInt16Value(n uint16) Value { return Value{typ: TypeUInt16, u: uint64(n)} }

// UInt32Value returns a UInt32 value.
func UInt32Value(n uint32) Value { return Value{typ: TypeUInt32, u: uint64(n)} }

// UInt64Value returns a UInt64 value.
func UInt64Value(n uint64) Value { return Value{typ: TypeUInt64, u: n} }

// StringValue returns a String value.
func StringValue(s string) Value { return Value{typ: TypeString, s: s} }

// uintValue builds an unsigned value of type t; n must already fit.
func uintValue(t AttributeType, n uint64) Value { return Value{typ: t, u: n} }

// Type returns the value's type, or 0 when absent.
func (v Value) Type() AttributeType { return v.typ }

// Present reports whether the value carries data.
func (v Value) Present() bool { return v.typ != 0 }

// Equal reports semantic equality.
func (v Value) Equal(o Value) bool { return v == o }

// Or returns v when present, otherwise o.
func (v Value) Or(o Value) Value {
	if v.Present() {
		return v
	}
	return o
}

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.b, v.typ == TypeBool }

// Uint returns the numeric payload of any unsigned type.
func (v Value) Uint() (uint64, bool) { return v.u, v.typ.isUint() }

// Str returns the payload of a String value.
func (v Value) Str() (string, bool) { return v.s, v.typ == TypeString }

// Encode renders the value the way the control tool expects it after -v.
func (v Value) Encode() (string, error) {
	switch {
	case !v.Present():
		return "", ErrNoValue
	case v.typ == TypeBool:
		if v.b {
			return "TRUE", nil
		}
		return "FALSE", nil
	case v.typ == TypeString:
		return v.s, nil
	default:
		return strconv.FormatUint(v.u, 10), nil
	}
}

// Interface returns the JSON-compatible Go representation: nil, bool, uint64 or string.
func (v Value) Interface() any {
	switch {
	case !v.Present():
		return nil
	case v.typ == TypeBool:
		return v.b
	case v.typ == TypeString:
		return v.s
	default:
		return v.u
	}
}

// MarshalJSON encodes absent as null and the rest as native JSON scalars.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v Value) String() string {
	if !v.Present() {
		return "<none>"
	}
	return fmt.Sprintf("%s(%v)", v.typ, v.Interface())
}

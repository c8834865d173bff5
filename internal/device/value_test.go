package device

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseAttributeType(t *testing.T) {
	tests := []struct {
		input   string
		want    AttributeType
		wantErr bool
	}{
		{input: "BOOL", want: TypeBool},
		{input: "UINT8", want: TypeUInt8},
		{input: "UINT16", want: TypeUInt16},
		{input: " UINT32 ", want: TypeUInt32},
		{input: "UINT64", want: TypeUInt64},
		{input: "STRING", want: TypeString},
		{input: "uint8", want: TypeUInt8},
		{input: "INT8", wantErr: true},
		{input: "FLOAT", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAttributeType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownType) {
					t.Errorf("ParseAttributeType(%q) error = %v, want ErrUnknownType", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAttributeType(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAttributeType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAttributeType_Parse(t *testing.T) {
	tests := []struct {
		name    string
		typ     AttributeType
		input   string
		want    Value
		wantErr bool
	}{
		{name: "bool true", typ: TypeBool, input: "true", want: BoolValue(true)},
		{name: "bool on upper", typ: TypeBool, input: " ON ", want: BoolValue(true)},
		{name: "bool yes", typ: TypeBool, input: "yes", want: BoolValue(true)},
		{name: "bool one", typ: TypeBool, input: "1", want: BoolValue(true)},
		{name: "bool off", typ: TypeBool, input: "off", want: BoolValue(false)},
		{name: "bool zero", typ: TypeBool, input: "0", want: BoolValue(false)},
		{name: "bool no", typ: TypeBool, input: "No", want: BoolValue(false)},
		{name: "bool garbage", typ: TypeBool, input: "maybe", wantErr: true},
		{name: "uint8", typ: TypeUInt8, input: "255", want: UInt8Value(255)},
		{name: "uint8 overflow", typ: TypeUInt8, input: "256", wantErr: true},
		{name: "uint8 negative", typ: TypeUInt8, input: "-1", wantErr: true},
		{name: "uint16", typ: TypeUInt16, input: "65535", want: UInt16Value(65535)},
		{name: "uint32", typ: TypeUInt32, input: "4294967295", want: UInt32Value(math.MaxUint32)},
		{name: "uint64", typ: TypeUInt64, input: "18446744073709551615", want: UInt64Value(math.MaxUint64)},
		{name: "uint not a number", typ: TypeUInt16, input: "ten", wantErr: true},
		{name: "string trimmed", typ: TypeString, input: "  ON \n", want: StringValue("ON")},
		{name: "string empty", typ: TypeString, input: "", want: StringValue("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidValue) {
					t.Errorf("Parse(%q) error = %v, want ErrInvalidValue", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAttributeType_Decode(t *testing.T) {
	tests := []struct {
		name    string
		typ     AttributeType
		cell    string
		want    Value
		wantErr bool
	}{
		{name: "empty is absent", typ: TypeUInt8, cell: "   ", want: NoValue()},
		{name: "bool TRUE", typ: TypeBool, cell: "TRUE", want: BoolValue(true)},
		{name: "bool FALSE", typ: TypeBool, cell: "FALSE", want: BoolValue(false)},
		{name: "legacy ON", typ: TypeBool, cell: "ON", want: BoolValue(true)},
		{name: "legacy off", typ: TypeBool, cell: "off", want: BoolValue(false)},
		{name: "bool yes rejected", typ: TypeBool, cell: "yes", wantErr: true},
		{name: "uint32", typ: TypeUInt32, cell: "33554952", want: UInt32Value(33554952)},
		{name: "uint8 overflow", typ: TypeUInt8, cell: "300", wantErr: true},
		{name: "string ON stays string", typ: TypeString, cell: "ON", want: StringValue("ON")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Decode(tt.cell)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode(%q) error = %v, wantErr %v", tt.cell, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Decode(%q) = %v, want %v", tt.cell, got, tt.want)
			}
		})
	}
}

func decodeJSONValue(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decoding %s: %v", raw, err)
	}
	return v
}

func TestAttributeType_ParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		typ     AttributeType
		raw     string
		want    Value
		wantErr bool
	}{
		{name: "bool true", typ: TypeBool, raw: `true`, want: BoolValue(true)},
		{name: "bool from zero", typ: TypeBool, raw: `0`, want: BoolValue(false)},
		{name: "bool from one", typ: TypeBool, raw: `1`, want: BoolValue(true)},
		{name: "bool from two", typ: TypeBool, raw: `2`, wantErr: true},
		{name: "bool from text", typ: TypeBool, raw: `"on"`, want: BoolValue(true)},
		{name: "uint8 number", typ: TypeUInt8, raw: `128`, want: UInt8Value(128)},
		{name: "uint8 too big", typ: TypeUInt8, raw: `256`, wantErr: true},
		{name: "uint8 negative", typ: TypeUInt8, raw: `-3`, wantErr: true},
		{name: "uint8 fraction", typ: TypeUInt8, raw: `1.5`, wantErr: true},
		{name: "uint8 from text", typ: TypeUInt8, raw: `"42"`, want: UInt8Value(42)},
		{name: "uint64 max", typ: TypeUInt64, raw: `18446744073709551615`, want: UInt64Value(math.MaxUint64)},
		{name: "uint16 from bool", typ: TypeUInt16, raw: `true`, wantErr: true},
		{name: "string text", typ: TypeString, raw: `"hi"`, want: StringValue("hi")},
		{name: "string from number", typ: TypeString, raw: `12`, want: StringValue("12")},
		{name: "string from bool", typ: TypeString, raw: `false`, want: StringValue("false")},
		{name: "string from object", typ: TypeString, raw: `{"a":1}`, want: StringValue(`{"a":1}`)},
		{name: "string from null", typ: TypeString, raw: `null`, want: StringValue("null")},
		{name: "uint8 from null", typ: TypeUInt8, raw: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.ParseJSON(decodeJSONValue(t, tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseJSON(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseJSON(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAttributeType_ParseJSONFloat(t *testing.T) {
	// Documents decoded without UseNumber yield float64.
	got, err := TypeUInt16.ParseJSON(float64(300))
	if err != nil {
		t.Fatalf("ParseJSON(300.0) error = %v", err)
	}
	if got != UInt16Value(300) {
		t.Errorf("ParseJSON(300.0) = %v", got)
	}
}

// Every value survives a trip through its JSON form and through the text
// form a client would send.
func TestValue_ClientRoundTrip(t *testing.T) {
	values := []Value{
		StringValue("hi"),
		StringValue("true"),
		StringValue("0"),
		StringValue(""),
		BoolValue(true),
		BoolValue(false),
		UInt8Value(math.MaxUint8),
		UInt16Value(math.MaxUint16),
		UInt32Value(math.MaxUint32),
		UInt64Value(math.MaxUint64),
	}

	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%v) error = %v", v, err)
		}
		got, err := v.Type().ParseJSON(decodeJSONValue(t, string(raw)))
		if err != nil || got != v {
			t.Errorf("ParseJSON(%s) = %v, %v; want %v", raw, got, err, v)
		}

		text := string(raw)
		if s, ok := v.Str(); ok {
			text = s
		}
		got, err = v.Type().Parse(text)
		if err != nil || got != v {
			t.Errorf("Parse(%q) = %v, %v; want %v", text, got, err, v)
		}
	}
}

func TestValue_Encode(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{BoolValue(true), "TRUE"},
		{BoolValue(false), "FALSE"},
		{UInt8Value(7), "7"},
		{UInt64Value(math.MaxUint64), "18446744073709551615"},
		{StringValue("Bedroom"), "Bedroom"},
	}
	for _, tt := range tests {
		got, err := tt.value.Encode()
		if err != nil {
			t.Fatalf("Encode(%v) error = %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("Encode(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}

	if _, err := NoValue().Encode(); !errors.Is(err, ErrNoValue) {
		t.Errorf("Encode(NoValue) error = %v, want ErrNoValue", err)
	}
}

func TestValue_JSON(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{NoValue(), "null"},
		{BoolValue(true), "true"},
		{UInt32Value(33554952), "33554952"},
		{StringValue("OFF"), `"OFF"`},
	}
	for _, tt := range tests {
		raw, err := json.Marshal(tt.value)
		if err != nil {
			t.Fatalf("Marshal(%v) error = %v", tt.value, err)
		}
		if string(raw) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.value, raw, tt.want)
		}
	}
}

func TestValue_OrAndEquality(t *testing.T) {
	if got := NoValue().Or(UInt8Value(3)); got != UInt8Value(3) {
		t.Errorf("NoValue().Or() = %v", got)
	}
	if got := UInt8Value(1).Or(UInt8Value(3)); got != UInt8Value(1) {
		t.Errorf("UInt8Value(1).Or() = %v", got)
	}
	// Same number, different width: not equal.
	if UInt8Value(1).Equal(UInt16Value(1)) {
		t.Error("UInt8Value(1) equal to UInt16Value(1)")
	}
	if !StringValue("a").Equal(StringValue("a")) {
		t.Error("equal strings reported unequal")
	}
}

func TestAttributeType_JSON(t *testing.T) {
	raw, err := json.Marshal(TypeUInt16)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `"UInt16"` {
		t.Errorf("Marshal(TypeUInt16) = %s", raw)
	}

	var got AttributeType
	if err := json.Unmarshal([]byte(`"UINT16"`), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got != TypeUInt16 {
		t.Errorf("Unmarshal() = %v", got)
	}
}

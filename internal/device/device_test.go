package device

import (
	"encoding/json"
	"errors"
	"testing"
)

func u16(v uint16) *uint16 { return &v }

func TestDevice_Meta(t *testing.T) {
	zigbee := Device{
		Attributes: []Attribute{
			{ID: 61443, Description: "HWVersion", Type: TypeUInt8, Current: UInt8Value(1)},
			{ID: 61444, Description: "ManufacturerName", Type: TypeString, Current: StringValue("GE")},
			{ID: 61445, Description: "ModelIdentifier", Type: TypeString, Current: StringValue("SoftWhite")},
		},
	}

	tests := []struct {
		name   string
		device Device
		want   Meta
	}{
		{
			name:   "known fan switch",
			device: Device{ManufacturerID: u16(0x0063), ProductNumber: u16(0x3131), ProductType: u16(0x4944)},
			want:   Meta{Manufacturer: "GE (Jasco Products)", Product: "Fan Control Switch"},
		},
		{
			name:   "known switch",
			device: Device{ManufacturerID: u16(0x0063), ProductNumber: u16(0x3036), ProductType: u16(0x4952)},
			want:   Meta{Manufacturer: "GE (Jasco Products)", Product: "Switch"},
		},
		{
			name:   "zooz",
			device: Device{ManufacturerID: u16(0x027a), ProductNumber: u16(0xa001), ProductType: u16(0xa000)},
			want:   Meta{Manufacturer: "Zooz", Product: "S2 On Off Wall Switch"},
		},
		{
			name:   "unknown z-wave product",
			device: Device{ManufacturerID: u16(0x10), ProductNumber: u16(0xab), ProductType: u16(0x1)},
			want:   Meta{Manufacturer: "Unknown (0010)", Product: "Unknown (0010.00ab.0001)"},
		},
		{
			name:   "zigbee attributes",
			device: zigbee,
			want:   Meta{Manufacturer: "GE", Product: "SoftWhite", Version: "1"},
		},
		{
			name:   "no identity at all",
			device: Device{},
			want:   Meta{},
		},
		{
			name:   "partial identity",
			device: Device{ManufacturerID: u16(0x0063)},
			want:   Meta{Manufacturer: "Error", Product: "Error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.Meta(); got != tt.want {
				t.Errorf("Meta() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDevice_StatusPayload(t *testing.T) {
	d := fanDevice(40)
	d.Attributes = append(d.Attributes, Attribute{ID: 7, Description: "Target", Type: TypeUInt8, Setting: UInt8Value(9)})

	raw, err := json.Marshal(d.StatusPayload())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"GenericValue":0,"Level":40,"Target":9,"Up_Down":null}`
	if string(raw) != want {
		t.Errorf("StatusPayload() = %s, want %s", raw, want)
	}
}

func TestDevice_WritableAttribute(t *testing.T) {
	d := fanDevice(0)
	d.Attributes = append(d.Attributes, Attribute{ID: 8, Description: "Power", Type: TypeUInt16, SupportsRead: true})

	if _, err := d.WritableAttribute(3); err != nil {
		t.Errorf("WritableAttribute(3) error = %v", err)
	}
	if _, err := d.WritableAttribute(8); !errors.Is(err, ErrReadOnly) {
		t.Errorf("WritableAttribute(8) error = %v, want ErrReadOnly", err)
	}
	if _, err := d.WritableAttribute(99); !errors.Is(err, ErrAttributeNotFound) {
		t.Errorf("WritableAttribute(99) error = %v, want ErrAttributeNotFound", err)
	}
}

func TestDevice_JSONShape(t *testing.T) {
	d := lightDevice(4, true)
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	attrs, ok := got["attributes"].([]any)
	if !ok || len(attrs) != 1 {
		t.Fatalf("attributes = %v", got["attributes"])
	}
	a := attrs[0].(map[string]any)
	if a["attribute_type"] != "Bool" || a["current_value"] != true || a["setting_value"] != nil {
		t.Errorf("attribute JSON = %v", a)
	}
	if got["gang_id"] != nil {
		t.Errorf("gang_id = %v, want null", got["gang_id"])
	}
}

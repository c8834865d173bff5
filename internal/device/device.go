package device

import (
	"encoding/json"
	"fmt"
)

// Device is one radio device as reported by the hub.
//
// The hardware identity fields are optional: older firmware and Zigbee
// devices omit some or all of them.
type Device struct {
	ID           uint32 `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Interconnect string `json:"interconnect,omitempty"`

	GangID         *uint32 `json:"gang_id"`
	GenericType    *uint8  `json:"generic_device_type"`
	SpecificType   *uint8  `json:"specific_device_type"`
	ManufacturerID *uint16 `json:"manufacturer_id"`
	ProductType    *uint16 `json:"product_type"`
	ProductNumber  *uint16 `json:"product_number"`

	Attributes []Attribute `json:"attributes"`
}

// Attribute is one readable and/or writable property of a device.
//
// Current is what the device last reported. Setting is the last requested
// value: written optimistically by set commands and replaced on resync only
// when the tool reports one.
type Attribute struct {
	ID            uint32        `json:"id"`
	Description   string        `json:"description"`
	Type          AttributeType `json:"attribute_type"`
	SupportsWrite bool          `json:"supports_write"`
	SupportsRead  bool          `json:"supports_read"`
	Current       Value         `json:"current_value"`
	Setting       Value         `json:"setting_value"`
}

// Reported returns the current value, falling back to the setting when the
// device reported nothing.
func (a Attribute) Reported() Value {
	return a.Current.Or(a.Setting)
}

// Attribute returns the attribute with the given id.
func (d *Device) Attribute(id uint32) (Attribute, bool) {
	for _, a := range d.Attributes {
		if a.ID == id {
			return a, true
		}
	}
	return Attribute{}, false
}

// AttributeByDescription returns the first attribute with the given description.
func (d *Device) AttributeByDescription(desc string) (Attribute, bool) {
	for _, a := range d.Attributes {
		if a.Description == desc {
			return a, true
		}
	}
	return Attribute{}, false
}

// WritableAttribute resolves id for a write, checking it exists and accepts writes.
func (d *Device) WritableAttribute(id uint32) (Attribute, error) {
	a, ok := d.Attribute(id)
	if !ok {
		return Attribute{}, fmt.Errorf("%w: device %d attribute %d", ErrAttributeNotFound, d.ID, id)
	}
	if !a.SupportsWrite {
		return Attribute{}, fmt.Errorf("%w: device %d attribute %d (%s)", ErrReadOnly, d.ID, id, a.Description)
	}
	return a, nil
}

// DeepCopy returns a copy sharing no mutable state with d.
func (d *Device) DeepCopy() Device {
	cp := *d
	if d.Attributes != nil {
		cp.Attributes = make([]Attribute, len(d.Attributes))
		copy(cp.Attributes, d.Attributes)
	}
	return cp
}

// StatusPayload returns the status document published for the device: every
// attribute description mapped to its reported value (null when unknown).
func (d *Device) StatusPayload() map[string]any {
	out := make(map[string]any, len(d.Attributes))
	for _, a := range d.Attributes {
		out[a.Description] = a.Reported().Interface()
	}
	return out
}

// Meta is the human-facing hardware identity of a device.
type Meta struct {
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`
	Version      string `json:"version"`
}

type productKey struct {
	manufacturer, number, kind uint16
}

// knownProducts is keyed by (manufacturer id, product number, product type),
// as listed in the OpenZWave device database.
var knownProducts = map[productKey]Meta{
	{0x0063, 0x3131, 0x4944}: {Manufacturer: "GE (Jasco Products)", Product: "Fan Control Switch"},
	{0x0063, 0x3036, 0x4952}: {Manufacturer: "GE (Jasco Products)", Product: "Switch"},
	{0x027a, 0xa001, 0xa000}: {Manufacturer: "Zooz", Product: "S2 On Off Wall Switch"},
}

// Meta resolves the hardware identity. Z-Wave devices carry numeric ids;
// Zigbee devices report ManufacturerName, ModelIdentifier and HWVersion
// attributes instead. A device with only some of the numeric ids yields "Error".
func (d *Device) Meta() Meta {
	m, n, t := d.ManufacturerID, d.ProductNumber, d.ProductType
	switch {
	case m != nil && n != nil && t != nil:
		if known, ok := knownProducts[productKey{*m, *n, *t}]; ok {
			return known
		}
		return Meta{
			Manufacturer: fmt.Sprintf("Unknown (%04x)", *m),
			Product:      fmt.Sprintf("Unknown (%04x.%04x.%04x)", *m, *n, *t),
		}
	case m == nil && n == nil && t == nil:
		var meta Meta
		if a, ok := d.AttributeByDescription("ManufacturerName"); ok {
			meta.Manufacturer, _ = a.Current.Str()
		}
		if a, ok := d.AttributeByDescription("ModelIdentifier"); ok {
			meta.Product, _ = a.Current.Str()
		}
		if a, ok := d.AttributeByDescription("HWVersion"); ok {
			if raw, err := json.Marshal(a.Current); err == nil {
				meta.Version = string(raw)
			}
		}
		return meta
	default:
		return Meta{Manufacturer: "Error", Product: "Error"}
	}
}

package apron

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/parser"
	"github.com/nerrad567/wink-bridge/internal/process"
)

// Fake simulates a hub with a ceiling fan (device 2) and a light (device 4).
// Written values are remembered and reported back as both current and setting.
type Fake struct {
	mu     sync.Mutex
	values map[[2]uint32]device.Value
	sets   []FakeSet
	radios []string
}

// FakeSet records one Set call.
type FakeSet struct {
	DeviceID    uint32
	AttributeID uint32
	Value       device.Value
}

// NewFake creates a fake controller. radios restricts StartDiscovery like the
// real controller; nil accepts any radio.
func NewFake(radios []string) *Fake {
	return &Fake{
		values: make(map[[2]uint32]device.Value),
		radios: radios,
	}
}

// List implements Controller.
func (f *Fake) List(context.Context) ([]parser.ListEntry, error) {
	return []parser.ListEntry{
		{ID: 2, Interconnect: "ZWAVE", Name: "Bedroom Fan"},
		{ID: 4, Interconnect: "ZWAVE", Name: "Bedroom Light"},
	}, nil
}

func (f *Fake) value(id, attr uint32, def device.Value) device.Value {
	if v, ok := f.values[[2]uint32{id, attr}]; ok {
		return v
	}
	return def
}

// Describe implements Controller.
func (f *Fake) Describe(_ context.Context, id uint32) (device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch id {
	case 2:
		gang, generic, specific := uint32(0x03), uint8(0x11), uint8(0x08)
		mfr, ptype, pnum := uint16(0x63), uint16(0x4944), uint16(0x3131)
		generic1 := f.value(id, 1, device.UInt8Value(0))
		level := f.value(id, 3, device.UInt8Value(0))
		return device.Device{
			ID:             id,
			Name:           "Bedroom Fan",
			Status:         "ONLINE",
			Interconnect:   "ZWAVE",
			GangID:         &gang,
			GenericType:    &generic,
			SpecificType:   &specific,
			ManufacturerID: &mfr,
			ProductType:    &ptype,
			ProductNumber:  &pnum,
			Attributes: []device.Attribute{
				{ID: 1, Description: "GenericValue", Type: device.TypeUInt8, SupportsRead: true, SupportsWrite: true, Current: generic1, Setting: generic1},
				{ID: 3, Description: "Level", Type: device.TypeUInt8, SupportsRead: true, SupportsWrite: true, Current: level, Setting: level},
				{ID: 4, Description: "Up_Down", Type: device.TypeBool, SupportsWrite: true},
				{ID: 5, Description: "StopMovement", Type: device.TypeBool, SupportsWrite: true},
			},
		}, nil
	case 4:
		on := f.value(id, 1, device.BoolValue(false))
		return device.Device{
			ID:           id,
			Name:         "Bedroom Light",
			Status:       "ONLINE",
			Interconnect: "ZWAVE",
			Attributes: []device.Attribute{
				{ID: 1, Description: "On_Off", Type: device.TypeBool, SupportsRead: true, SupportsWrite: true, Current: on, Setting: on},
			},
		}, nil
	}
	return device.Device{}, fmt.Errorf("%w: %d", ErrUnknownDevice, id)
}

// Set implements Controller.
func (f *Fake) Set(_ context.Context, id, attributeID uint32, value device.Value) error {
	if (id != 2 && id != 4) || attributeID < 1 || attributeID > 5 {
		return fmt.Errorf("%w: %d/%d", ErrUnknownDevice, id, attributeID)
	}
	if !value.Present() {
		return fmt.Errorf("setting device %d attribute %d: %w", id, attributeID, device.ErrNoValue)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[[2]uint32{id, attributeID}] = value
	f.sets = append(f.sets, FakeSet{DeviceID: id, AttributeID: attributeID, Value: value})
	return nil
}

// Sets returns every Set call so far.
func (f *Fake) Sets() []FakeSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sets)
}

// StartDiscovery implements Controller.
func (f *Fake) StartDiscovery(_ context.Context, radio string) (process.Result, error) {
	if f.radios != nil && !slices.Contains(f.radios, radio) {
		return process.Result{}, fmt.Errorf("%w: %q", ErrInvalidRadio, radio)
	}
	return process.Result{
		Args:   []string{"-a", "-r", radio},
		Stdout: fmt.Sprintf("Starting %s device discovery...\n", strings.ToUpper(radio)),
	}, nil
}

// Raw implements Controller. It echoes the arguments it would have run.
func (f *Fake) Raw(_ context.Context, command string) (process.Result, error) {
	args, err := SplitCommand(command, "aprontest")
	if err != nil {
		return process.Result{}, err
	}
	return process.Result{
		Args:   args,
		Stdout: "fake aprontest " + strings.Join(args, " ") + "\n",
	}, nil
}

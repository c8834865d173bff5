package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/mqtt"
)

// Components announced by the bridge.
const (
	ComponentLight  = "light"
	ComponentSwitch = "switch"
)

// Attribute descriptions that select a component.
const (
	levelAttribute = "Level"
	onOffAttribute = "On_Off"
)

var (
	// ErrUnsupportedDevice is returned for a device with neither a Level nor
	// an On_Off attribute.
	ErrUnsupportedDevice = errors.New("discovery: device has no Level or On_Off attribute")

	// ErrUnsupportedType is returned when the selecting attribute has a type
	// the component cannot express.
	ErrUnsupportedType = errors.New("discovery: unsupported attribute type")
)

// DeviceInfo is the device stanza grouping a device's entities.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	HWVersion    string   `json:"hw_version,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

// Config is the JSON document published on a discovery topic.
type Config struct {
	Platform string `json:"platform"`
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`

	StateTopic         string `json:"state_topic"`
	ValueTemplate      string `json:"value_template,omitempty"`
	StateValueTemplate string `json:"state_value_template,omitempty"`
	CommandTopic       string `json:"command_topic"`
	OnCommandType      string `json:"on_command_type,omitempty"`
	PayloadOn          string `json:"payload_on"`
	PayloadOff         string `json:"payload_off"`

	BrightnessStateTopic    string `json:"brightness_state_topic,omitempty"`
	BrightnessCommandTopic  string `json:"brightness_command_topic,omitempty"`
	BrightnessValueTemplate string `json:"brightness_value_template,omitempty"`
	BrightnessScale         uint64 `json:"brightness_scale,omitempty"`

	AvailabilityTopic string `json:"availability_topic"`

	Device DeviceInfo `json:"device"`
}

// Payload is one device's discovery announcement.
type Payload struct {
	Component string
	DeviceID  uint32
	Config    Config
}

// JSON encodes the config document.
func (p Payload) JSON() ([]byte, error) {
	return json.Marshal(p.Config)
}

// Builder derives payloads for one topic scheme.
type Builder struct {
	topics mqtt.Topics
}

// NewBuilder creates a payload builder.
func NewBuilder(topics mqtt.Topics) *Builder {
	return &Builder{topics: topics}
}

// Topic returns the discovery topic for a payload.
func (b *Builder) Topic(p Payload) string {
	return b.topics.Discovery(p.Component, p.DeviceID)
}

// Build derives the payload for one device. Level wins over On_Off when a
// device has both.
func (b *Builder) Build(d *device.Device) (Payload, error) {
	if a, ok := d.AttributeByDescription(levelAttribute); ok {
		return b.light(d, a)
	}
	if a, ok := d.AttributeByDescription(onOffAttribute); ok {
		return b.switchPayload(d, a)
	}
	return Payload{}, fmt.Errorf("%w: device %d", ErrUnsupportedDevice, d.ID)
}

func (b *Builder) base(d *device.Device) Config {
	meta := d.Meta()
	return Config{
		Platform: "mqtt",
		// <prefix>/<id>, keeping the prefix's own trailing slash.
		UniqueID:          fmt.Sprintf("%s/%d", b.topics.Prefix, d.ID),
		Name:              d.Name,
		StateTopic:        b.topics.Status(d.ID),
		AvailabilityTopic: b.topics.Availability(),
		Device: DeviceInfo{
			Identifiers:  []string{"wink_" + strconv.FormatUint(uint64(d.ID), 10)},
			Name:         d.Name,
			Manufacturer: meta.Manufacturer,
			Model:        meta.Product,
			HWVersion:    meta.Version,
		},
	}
}

func (b *Builder) light(d *device.Device, level device.Attribute) (Payload, error) {
	var scale uint64
	switch level.Type {
	case device.TypeUInt8, device.TypeUInt16, device.TypeUInt32:
		scale = level.Type.MaxUint()
	case device.TypeBool:
		scale = 1
	default:
		return Payload{}, fmt.Errorf("%w: %s Level on device %d", ErrUnsupportedType, level.Type, d.ID)
	}

	cfg := b.base(d)
	cmd := b.topics.SetAttribute(d.ID, level.ID)
	cfg.StateValueTemplate = "{% if value_json.Level > 0 %}1{% else %}0{% endif %}"
	cfg.CommandTopic = cmd
	cfg.OnCommandType = "brightness"
	cfg.PayloadOn = "1"
	cfg.PayloadOff = "0"
	cfg.BrightnessStateTopic = cfg.StateTopic
	cfg.BrightnessCommandTopic = cmd
	cfg.BrightnessValueTemplate = "{{value_json.Level}}"
	cfg.BrightnessScale = scale

	return Payload{Component: ComponentLight, DeviceID: d.ID, Config: cfg}, nil
}

func (b *Builder) switchPayload(d *device.Device, onOff device.Attribute) (Payload, error) {
	var on, off string
	switch onOff.Type {
	case device.TypeUInt8, device.TypeUInt16, device.TypeUInt32:
		on, off = strconv.FormatUint(onOff.Type.MaxUint(), 10), "0"
	case device.TypeBool:
		on, off = "TRUE", "FALSE"
	case device.TypeString:
		on, off = "ON", "OFF"
	default:
		return Payload{}, fmt.Errorf("%w: %s On_Off on device %d", ErrUnsupportedType, onOff.Type, d.ID)
	}

	cfg := b.base(d)
	cfg.ValueTemplate = "{{ value_json.On_Off | upper }}"
	cfg.CommandTopic = b.topics.SetAttribute(d.ID, onOff.ID)
	cfg.PayloadOn = on
	cfg.PayloadOff = off

	return Payload{Component: ComponentSwitch, DeviceID: d.ID, Config: cfg}, nil
}

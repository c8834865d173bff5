package mqtt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nerrad567/wink-bridge/internal/infrastructure/config"
)

// Availability payloads published on Topics.Availability.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// availabilitySegment is the device-id position used for bridge-level topics.
const availabilitySegment = "bridge"

// TopicKind identifies the shape of a bridge topic.
type TopicKind int

// Topic kinds.
const (
	// TopicSetJSON is <prefix><device>/set carrying a JSON object of
	// attribute description to value.
	TopicSetJSON TopicKind = iota + 1

	// TopicSetAttribute is <prefix><device>/<attribute>/set carrying one raw value.
	TopicSetAttribute

	// TopicStatus is <prefix><device>/status, the retained device state.
	TopicStatus

	// TopicDiscovery is <discovery-prefix><component>/wink_<device>/config.
	TopicDiscovery

	// TopicDiscoveryListen is the topic announcing the discovery consumer came online.
	TopicDiscoveryListen
)

func (k TopicKind) String() string {
	switch k {
	case TopicSetJSON:
		return "set_json"
	case TopicSetAttribute:
		return "set_attribute"
	case TopicStatus:
		return "status"
	case TopicDiscovery:
		return "discovery"
	case TopicDiscoveryListen:
		return "discovery_listen"
	default:
		return "unknown"
	}
}

// Topic is a parsed bridge topic. Only the fields meaningful for Kind are set.
type Topic struct {
	Kind        TopicKind
	DeviceID    uint32
	AttributeID uint32
	Component   string
}

var discoverySuffix = regexp.MustCompile(`^([^/]+)/wink_([^/]+)/config$`)

// Topics formats and parses the wink topic scheme. Prefixes must already be
// normalised (empty, or ending in exactly one "/"); see config.NormalizePrefix.
//
//	topics := mqtt.Topics{Prefix: "home/wink/"}
//	topics.Status(4)        // "home/wink/4/status"
//	topics.SetAttribute(4, 1) // "home/wink/4/1/set"
type Topics struct {
	Prefix          string
	DiscoveryPrefix string
	DiscoveryListen string
}

// TopicsFromConfig builds the topic scheme from the MQTT configuration.
func TopicsFromConfig(cfg config.MQTTConfig) Topics {
	return Topics{
		Prefix:          config.NormalizePrefix(cfg.TopicPrefix),
		DiscoveryPrefix: config.NormalizePrefix(cfg.DiscoveryPrefix),
		DiscoveryListen: cfg.DiscoveryListenTopic,
	}
}

// DiscoveryEnabled reports whether discovery topics are configured.
func (t Topics) DiscoveryEnabled() bool {
	return t.DiscoveryPrefix != ""
}

// SetJSON returns the JSON command topic of a device.
//
// Example: home/wink/4/set
func (t Topics) SetJSON(deviceID uint32) string {
	return fmt.Sprintf("%s%d/set", t.Prefix, deviceID)
}

// SetAttribute returns the single-attribute command topic.
//
// Example: home/wink/4/1/set
func (t Topics) SetAttribute(deviceID, attributeID uint32) string {
	return fmt.Sprintf("%s%d/%d/set", t.Prefix, deviceID, attributeID)
}

// Status returns the retained status topic of a device.
//
// Example: home/wink/4/status
func (t Topics) Status(deviceID uint32) string {
	return fmt.Sprintf("%s%d/status", t.Prefix, deviceID)
}

// Availability returns the bridge availability topic carrying
// PayloadOnline or PayloadOffline.
//
// Example: home/wink/bridge/availability
func (t Topics) Availability() string {
	return t.Prefix + availabilitySegment + "/availability"
}

// Discovery returns the discovery config topic for a device, or "" when
// discovery is disabled.
//
// Example: homeassistant/light/wink_2/config
func (t Topics) Discovery(component string, deviceID uint32) string {
	if !t.DiscoveryEnabled() {
		return ""
	}
	return fmt.Sprintf("%s%s/wink_%d/config", t.DiscoveryPrefix, component, deviceID)
}

// Format returns the topic string for a parsed topic.
func (t Topics) Format(tp Topic) (string, error) {
	switch tp.Kind {
	case TopicSetJSON:
		return t.SetJSON(tp.DeviceID), nil
	case TopicSetAttribute:
		return t.SetAttribute(tp.DeviceID, tp.AttributeID), nil
	case TopicStatus:
		return t.Status(tp.DeviceID), nil
	case TopicDiscovery:
		if !t.DiscoveryEnabled() {
			return "", fmt.Errorf("%w: %s", ErrTopicDisabled, tp.Kind)
		}
		if tp.Component == "" || strings.Contains(tp.Component, "/") {
			return "", fmt.Errorf("%w: component %q", ErrInvalidTopic, tp.Component)
		}
		return t.Discovery(tp.Component, tp.DeviceID), nil
	case TopicDiscoveryListen:
		if t.DiscoveryListen == "" {
			return "", fmt.Errorf("%w: %s", ErrTopicDisabled, tp.Kind)
		}
		return t.DiscoveryListen, nil
	default:
		return "", fmt.Errorf("%w: kind %d", ErrInvalidTopic, tp.Kind)
	}
}

// Parse classifies an incoming topic. Topics outside every configured
// prefix return ErrNotInterestingTopic; malformed topics inside a prefix
// return ErrInvalidTopic.
func (t Topics) Parse(topic string) (Topic, error) {
	if topic == "" {
		return Topic{}, ErrInvalidTopic
	}
	if t.DiscoveryListen != "" && topic == t.DiscoveryListen {
		return Topic{Kind: TopicDiscoveryListen}, nil
	}
	if t.DiscoveryEnabled() {
		if suffix, ok := strings.CutPrefix(topic, t.DiscoveryPrefix); ok {
			return parseDiscovery(topic, suffix)
		}
	}
	if t.Prefix != "" {
		if suffix, ok := strings.CutPrefix(topic, t.Prefix); ok {
			return parseDevice(topic, suffix)
		}
	}
	return Topic{}, fmt.Errorf("%w: %s", ErrNotInterestingTopic, topic)
}

func parseDiscovery(topic, suffix string) (Topic, error) {
	m := discoverySuffix.FindStringSubmatch(suffix)
	if m == nil {
		return Topic{}, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	id, err := parseNumberish(m[2])
	if err != nil {
		return Topic{}, fmt.Errorf("%w: %s: %w", ErrInvalidTopic, topic, err)
	}
	return Topic{Kind: TopicDiscovery, Component: m[1], DeviceID: id}, nil
}

func parseDevice(topic, suffix string) (Topic, error) {
	parts := strings.Split(suffix, "/")
	last := parts[len(parts)-1]

	switch {
	case last == "set" && len(parts) == 2:
		id, err := parseID(parts[0])
		if err != nil {
			return Topic{}, fmt.Errorf("%w: %s: %w", ErrInvalidTopic, topic, err)
		}
		return Topic{Kind: TopicSetJSON, DeviceID: id}, nil
	case last == "set" && len(parts) == 3:
		id, err := parseID(parts[0])
		if err != nil {
			return Topic{}, fmt.Errorf("%w: %s: %w", ErrInvalidTopic, topic, err)
		}
		attr, err := parseID(parts[1])
		if err != nil {
			return Topic{}, fmt.Errorf("%w: %s: %w", ErrInvalidTopic, topic, err)
		}
		return Topic{Kind: TopicSetAttribute, DeviceID: id, AttributeID: attr}, nil
	case last == "status" && len(parts) == 2:
		id, err := parseID(parts[0])
		if err != nil {
			return Topic{}, fmt.Errorf("%w: %s: %w", ErrInvalidTopic, topic, err)
		}
		return Topic{Kind: TopicStatus, DeviceID: id}, nil
	}
	return Topic{}, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
}

func parseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	return uint32(n), err
}

// parseNumberish accepts decimal or 0x-prefixed hex.
func parseNumberish(s string) (uint32, error) {
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		n, err := strconv.ParseUint(hex, 16, 32)
		return uint32(n), err
	}
	return parseID(s)
}

// Subscriptions returns the topic patterns the bridge subscribes to: both
// set forms under the prefix and, when discovery is enabled, the listen topic.
func (t Topics) Subscriptions() []string {
	subs := []string{
		t.Prefix + "+/set",
		t.Prefix + "+/+/set",
	}
	if t.DiscoveryEnabled() && t.DiscoveryListen != "" {
		subs = append(subs, t.DiscoveryListen)
	}
	return subs
}

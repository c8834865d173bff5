package mqtt

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/nerrad567/wink-bridge/internal/infrastructure/config"
)

func testTopics() Topics {
	return Topics{
		Prefix:          "home/wink/",
		DiscoveryPrefix: "homeassistant/",
		DiscoveryListen: "homeassistant/status",
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := testTopics()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"SetJSON", topics.SetJSON(4), "home/wink/4/set"},
		{"SetAttribute", topics.SetAttribute(4, 1), "home/wink/4/1/set"},
		{"Status", topics.Status(4), "home/wink/4/status"},
		{"Availability", topics.Availability(), "home/wink/bridge/availability"},
		{"Discovery", topics.Discovery("light", 2), "homeassistant/light/wink_2/config"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestTopics_RoundTrip(t *testing.T) {
	topics := testTopics()
	cases := []Topic{
		{Kind: TopicSetJSON, DeviceID: 1},
		{Kind: TopicSetAttribute, DeviceID: 1, AttributeID: 3},
		{Kind: TopicStatus, DeviceID: 1},
		{Kind: TopicDiscovery, Component: "light", DeviceID: 1},
		{Kind: TopicDiscovery, Component: "switch", DeviceID: 4294967295},
		{Kind: TopicDiscoveryListen},
	}

	for _, tc := range cases {
		t.Run(tc.Kind.String(), func(t *testing.T) {
			s, err := topics.Format(tc)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if strings.Contains(s, "//") {
				t.Errorf("Format() = %q contains //", s)
			}
			got, err := topics.Parse(s)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", s, err)
			}
			if got != tc {
				t.Errorf("Parse(Format(%+v)) = %+v", tc, got)
			}
		})
	}
}

func TestTopics_Parse(t *testing.T) {
	topics := testTopics()

	tests := []struct {
		topic   string
		want    Topic
		wantErr error
	}{
		{topic: "home/wink/12/set", want: Topic{Kind: TopicSetJSON, DeviceID: 12}},
		{topic: "home/wink/12/7/set", want: Topic{Kind: TopicSetAttribute, DeviceID: 12, AttributeID: 7}},
		{topic: "homeassistant/light/wink_0x10/config", want: Topic{Kind: TopicDiscovery, Component: "light", DeviceID: 16}},
		{topic: "homeassistant/status", want: Topic{Kind: TopicDiscoveryListen}},
		{topic: "other/thing", wantErr: ErrNotInterestingTopic},
		{topic: "home/other/1/set", wantErr: ErrNotInterestingTopic},
		{topic: "home/wink/abc/set", wantErr: ErrInvalidTopic},
		{topic: "home/wink/1/2/3/set", wantErr: ErrInvalidTopic},
		{topic: "home/wink/1/get", wantErr: ErrInvalidTopic},
		{topic: "home/wink/bridge/availability", wantErr: ErrInvalidTopic},
		{topic: "home/wink/4294967296/set", wantErr: ErrInvalidTopic},
		{topic: "homeassistant/light/device_1/config", wantErr: ErrInvalidTopic},
		{topic: "", wantErr: ErrInvalidTopic},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, err := topics.Parse(tt.topic)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTopics_DiscoveryDisabled(t *testing.T) {
	topics := Topics{Prefix: "home/wink/", DiscoveryListen: "homeassistant/status"}

	if topics.Discovery("light", 1) != "" {
		t.Error("Discovery() != \"\" with discovery disabled")
	}
	if _, err := topics.Format(Topic{Kind: TopicDiscovery, Component: "light", DeviceID: 1}); !errors.Is(err, ErrTopicDisabled) {
		t.Errorf("Format(discovery) error = %v, want ErrTopicDisabled", err)
	}
	if _, err := topics.Parse("homeassistant/light/wink_1/config"); !errors.Is(err, ErrNotInterestingTopic) {
		t.Errorf("Parse(discovery) error = %v, want ErrNotInterestingTopic", err)
	}

	want := []string{"home/wink/+/set", "home/wink/+/+/set"}
	if got := topics.Subscriptions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Subscriptions() = %v, want %v", got, want)
	}
}

func TestTopics_Subscriptions(t *testing.T) {
	want := []string{"home/wink/+/set", "home/wink/+/+/set", "homeassistant/status"}
	if got := testTopics().Subscriptions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Subscriptions() = %v, want %v", got, want)
	}
}

func TestTopics_FormatInvalid(t *testing.T) {
	topics := testTopics()
	if _, err := topics.Format(Topic{Kind: TopicDiscovery, Component: "a/b", DeviceID: 1}); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Format(component with /) error = %v", err)
	}
	if _, err := topics.Format(Topic{}); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Format(zero) error = %v", err)
	}
}

func TestTopicsFromConfig(t *testing.T) {
	topics := TopicsFromConfig(config.MQTTConfig{
		TopicPrefix:          "home/wink//",
		DiscoveryPrefix:      "homeassistant",
		DiscoveryListenTopic: "homeassistant/status",
	})
	if topics.Prefix != "home/wink/" || topics.DiscoveryPrefix != "homeassistant/" {
		t.Errorf("TopicsFromConfig() = %+v", topics)
	}
}

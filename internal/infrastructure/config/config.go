package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Queue overflow policies for the outbound MQTT publish queue.
const (
	OverflowExit = "exit"
	OverflowDrop = "drop"
)

// Config is the root configuration structure for the wink bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Apron     ApronConfig     `yaml:"apron"`
	Resync    ResyncConfig    `yaml:"resync"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ApronConfig controls how the hub's control tool is invoked.
type ApronConfig struct {
	// Binary is the control tool executable, resolved through PATH when not absolute.
	Binary string `yaml:"binary"`

	// Timeout bounds every single invocation. The process group is killed on expiry.
	Timeout time.Duration `yaml:"timeout"`

	// Serialize runs at most one invocation at a time.
	Serialize bool `yaml:"serialize"`

	// Fake replaces the tool with an in-memory controller (development off-hub).
	Fake bool `yaml:"fake"`

	// Radios lists the radio names accepted by a discovery scan.
	Radios []string `yaml:"radios"`
}

// ResyncConfig controls the periodic re-query of the hub.
type ResyncConfig struct {
	Interval     time.Duration `yaml:"interval"`
	TriggerQueue int           `yaml:"trigger_queue"`
}

// DatabaseConfig contains SQLite settings for the command audit trail.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings and the topic layout.
type MQTTConfig struct {
	Enabled bool `yaml:"enabled"`

	// URI is an optional single-string form of the broker settings:
	// mqtt[s]://[user:pass@]host[:port]/?client_id=..&tls_root_cert=..
	// When set it takes precedence over Broker and Auth.
	URI string `yaml:"uri"`

	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	TopicPrefix          string `yaml:"topic_prefix"`
	DiscoveryPrefix      string `yaml:"discovery_prefix"`
	DiscoveryListenTopic string `yaml:"discovery_listen_topic"`

	PublishQueueSize  int    `yaml:"publish_queue_size"`
	QueueOverflow     string `yaml:"queue_overflow"`
	SuppressUnchanged bool   `yaml:"suppress_unchanged"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
	CAFile   string `yaml:"ca_file"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// RedisConfig contains settings for the optional device status mirror.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. mqtt.uri, when present, expanded into the broker fields
//
// Environment variables follow the pattern: WINKBRIDGE_SECTION_KEY
// For example: WINKBRIDGE_MQTT_URI, WINKBRIDGE_API_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// FromEnv builds a configuration from defaults and environment variables only.
// It is used when no configuration file exists on the hub.
func FromEnv() (*Config, error) {
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.MQTT.URI != "" {
		if err := cfg.MQTT.applyURI(); err != nil {
			return nil, fmt.Errorf("parsing mqtt.uri: %w", err)
		}
	}

	cfg.MQTT.TopicPrefix = NormalizePrefix(cfg.MQTT.TopicPrefix)
	cfg.MQTT.DiscoveryPrefix = NormalizePrefix(cfg.MQTT.DiscoveryPrefix)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the hub defaults.
func Default() *Config {
	return &Config{
		Apron: ApronConfig{
			Binary:    "aprontest",
			Timeout:   30 * time.Second,
			Serialize: true,
			Radios:    []string{"zwave", "zigbee", "lutron", "kidde"},
		},
		Resync: ResyncConfig{
			Interval:     10 * time.Second,
			TriggerQueue: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/winkbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "winkbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix:          "home/wink/",
			DiscoveryListenTopic: "homeassistant/status",
			PublishQueueSize:     64,
			QueueOverflow:        OverflowExit,
			SuppressUnchanged:    true,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  120,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WINKBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Apron
	if v := os.Getenv("WINKBRIDGE_APRON_BINARY"); v != "" {
		cfg.Apron.Binary = v
	}
	if v := os.Getenv("WINKBRIDGE_APRON_FAKE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WINKBRIDGE_APRON_FAKE: %w", err)
		}
		cfg.Apron.Fake = b
	}

	// Resync
	if v := os.Getenv("WINKBRIDGE_RESYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WINKBRIDGE_RESYNC_INTERVAL: %w", err)
		}
		cfg.Resync.Interval = d
	}

	// MQTT
	if v := os.Getenv("WINKBRIDGE_MQTT_URI"); v != "" {
		cfg.MQTT.URI = v
	}
	if v := os.Getenv("WINKBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WINKBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WINKBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("WINKBRIDGE_MQTT_TOPIC_PREFIX"); v != "" {
		cfg.MQTT.TopicPrefix = v
	}
	if v := os.Getenv("WINKBRIDGE_MQTT_DISCOVERY_PREFIX"); v != "" {
		cfg.MQTT.DiscoveryPrefix = v
	}

	// API
	if v := os.Getenv("WINKBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("WINKBRIDGE_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WINKBRIDGE_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	// Database
	if v := os.Getenv("WINKBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("WINKBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Redis
	if v := os.Getenv("WINKBRIDGE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Logging
	if v := os.Getenv("WINKBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Apron validation
	if c.Apron.Binary == "" && !c.Apron.Fake {
		errs = append(errs, "apron.binary is required")
	}
	if c.Apron.Timeout <= 0 {
		errs = append(errs, "apron.timeout must be positive")
	}

	// Resync validation
	if c.Resync.Interval < time.Second {
		errs = append(errs, "resync.interval must be at least 1s")
	}
	if c.Resync.TriggerQueue < 1 {
		errs = append(errs, "resync.trigger_queue must be at least 1")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
		if c.MQTT.PublishQueueSize < 1 {
			errs = append(errs, "mqtt.publish_queue_size must be at least 1")
		}
		if c.MQTT.QueueOverflow != OverflowExit && c.MQTT.QueueOverflow != OverflowDrop {
			errs = append(errs, "mqtt.queue_overflow must be \"exit\" or \"drop\"")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required")
		}
	}

	// Redis validation
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RadioAllowed reports whether radio may be passed to a discovery scan.
func (c *Config) RadioAllowed(radio string) bool {
	return slices.Contains(c.Apron.Radios, radio)
}

// DiscoveryEnabled reports whether Home Assistant discovery is configured.
func (c *MQTTConfig) DiscoveryEnabled() bool {
	return c.DiscoveryPrefix != ""
}

// NormalizePrefix strips trailing slashes and appends exactly one.
// An empty (or all-slash) prefix stays empty.
func NormalizePrefix(prefix string) string {
	trimmed := strings.TrimRight(prefix, "/")
	if trimmed == "" {
		return ""
	}
	return trimmed + "/"
}

// applyURI expands the mqtt.uri field into the broker and auth settings.
func (c *MQTTConfig) applyURI() error {
	u, err := url.Parse(c.URI)
	if err != nil {
		return err
	}

	switch u.Scheme {
	case "mqtt", "tcp":
		c.Broker.TLS = false
		c.Broker.Port = 1883
	case "mqtts", "ssl", "tls":
		c.Broker.TLS = true
		c.Broker.Port = 8883
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Hostname() == "" {
		return errors.New("missing host")
	}
	c.Broker.Host = u.Hostname()

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid port %q", p)
		}
		c.Broker.Port = port
	}

	if u.User != nil {
		c.Auth.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Auth.Password = pw
		}
	}

	q := u.Query()
	if v := q.Get("client_id"); v != "" {
		c.Broker.ClientID = v
	}
	if v := q.Get("tls_root_cert"); v != "" {
		c.Broker.CAFile = v
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

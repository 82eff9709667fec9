package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Device defaults applied when a door station entry omits them.
const (
	// DefaultDevicePort is the DoorBird LAN API port.
	DefaultDevicePort = 80

	// legacyKey is the removed top-level block that used to configure
	// door stations directly from YAML.
	legacyKey = "doorbird"

	redacted = "[REDACTED]"
)

// Config is the root configuration structure for the DoorBird bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Devices   []DeviceConfig  `yaml:"devices"`

	// Warnings holds non-fatal problems found while loading, such as the
	// presence of the removed top-level block. Callers log them.
	Warnings []string `yaml:"-"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Discovery enables Home Assistant MQTT discovery messages.
	Discovery       bool   `yaml:"discovery"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MarshalJSON redacts the password.
func (a MQTTAuthConfig) MarshalJSON() ([]byte, error) {
	type alias MQTTAuthConfig
	out := alias(a)
	if out.Password != "" {
		out.Password = redacted
	}
	return json.Marshal(out)
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DeviceConfig describes one DoorBird door station.
// It becomes the data of a config entry when imported.
type DeviceConfig struct {
	Host     string `yaml:"host" json:"host"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Port     int    `yaml:"port" json:"port"`
	SSL      bool   `yaml:"ssl" json:"ssl"`
	MJPEG    bool   `yaml:"mjpeg" json:"mjpeg"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
}

// String returns a log-safe representation.
func (d DeviceConfig) String() string {
	return fmt.Sprintf("DeviceConfig{Host: %s, Username: %s, Password: %s, Port: %d, SSL: %t, MJPEG: %t, Name: %q}",
		d.Host, d.Username, redacted, d.Port, d.SSL, d.MJPEG, d.Name)
}

// MarshalJSON redacts the password. Persistence uses StorageJSON instead.
func (d DeviceConfig) MarshalJSON() ([]byte, error) {
	type alias DeviceConfig
	out := alias(d)
	out.Password = redacted
	return json.Marshal(out)
}

// StorageJSON encodes the device including its password, for the config
// entry store only.
func (d DeviceConfig) StorageJSON() ([]byte, error) {
	type alias DeviceConfig
	return json.Marshal(alias(d))
}

// ParseDeviceConfig decodes data written by StorageJSON and applies defaults.
func ParseDeviceConfig(data []byte) (DeviceConfig, error) {
	type alias DeviceConfig
	var d alias
	if err := json.Unmarshal(data, &d); err != nil {
		return DeviceConfig{}, fmt.Errorf("decoding device config: %w", err)
	}
	out := DeviceConfig(d)
	out.applyDefaults()
	return out, nil
}

// DisplayName returns the configured name or the host.
func (d DeviceConfig) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Host
}

func (d *DeviceConfig) applyDefaults() {
	if d.Port == 0 {
		d.Port = DefaultDevicePort
	}
}

// Validate checks a single door station entry.
func (d DeviceConfig) Validate() error {
	var errs []string
	errs = d.collectErrors("device", errs)
	if len(errs) > 0 {
		return fmt.Errorf("device errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (d DeviceConfig) collectErrors(prefix string, errs []string) []string {
	if d.Host == "" {
		errs = append(errs, prefix+".host is required")
	}
	if d.Username == "" {
		errs = append(errs, prefix+".username is required")
	}
	if d.Password == "" {
		errs = append(errs, prefix+".password is required")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, prefix+".port must be between 1 and 65535")
	}
	return errs
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DOORBIRD_SECTION_KEY
// For example: DOORBIRD_DATABASE_PATH, DOORBIRD_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	legacy, err := hasLegacyBlock(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if legacy {
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("the top-level %q block is no longer supported and has been ignored; list door stations under devices", legacyKey))
	}

	for i := range cfg.Devices {
		cfg.Devices[i].applyDefaults()
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// hasLegacyBlock reports whether the document carries the removed block.
func hasLegacyBlock(data []byte) (bool, error) {
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return false, err
	}
	_, ok := top[legacyKey]
	return ok, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:              "doorbird-bridge",
			Name:            "DoorBird Bridge",
			DiscoveryPrefix: "homeassistant",
		},
		Database: DatabaseConfig{
			Path:        "./data/doorbird.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorbird-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "doorbird",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORBIRD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("DOORBIRD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DOORBIRD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOORBIRD_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("DOORBIRD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOORBIRD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DOORBIRD_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DOORBIRD_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("DOORBIRD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("DOORBIRD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		prefix := fmt.Sprintf("devices[%d]", i)
		errs = d.collectErrors(prefix, errs)
		if d.Host == "" {
			continue
		}
		if seen[d.Host] {
			errs = append(errs, fmt.Sprintf("%s.host %q is configured more than once", prefix, d.Host))
		}
		seen[d.Host] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
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

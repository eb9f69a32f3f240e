package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the dimmer LED sync service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Dimmers       DimmersConfig       `yaml:"dimmers"`
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
	Database      DatabaseConfig      `yaml:"database"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
	Security      SecurityConfig      `yaml:"security"`
}

// DimmersConfig describes the LED inputs and how dimmers are kept in sync.
type DimmersConfig struct {
	// ColorPattern names the seven colour entities. "{0}" is replaced by
	// the LED ordinal 1-7, e.g. "sensor.dimmer_led_{0}_color".
	ColorPattern string `yaml:"color_pattern"`

	// BlinkPattern names the seven blink entities, e.g.
	// "binary_sensor.dimmer_led_{0}_blink".
	BlinkPattern string `yaml:"blink_pattern"`

	// BlinkFrequency is the target blink frequency parameter value (0-255).
	BlinkFrequency int `yaml:"blink_frequency"`

	// ResyncInterval is the periodic resync interval in seconds. 0 disables it.
	ResyncInterval int `yaml:"resync_interval"`

	// PingInterval is the periodic ping interval in seconds. 0 disables it.
	PingInterval int `yaml:"ping_interval"`

	// DiscoveryValidity is how long a device discovery stays fresh, in seconds.
	// 0 rediscovers on every pass.
	DiscoveryValidity int `yaml:"discovery_validity"`

	// MaxAttempts bounds the reconciliation attempts per pass.
	MaxAttempts int `yaml:"max_attempts"`

	// PingDevices are the devices refreshed by a ping.
	PingDevices []PingDeviceConfig `yaml:"ping_devices"`
}

// PingDeviceConfig names one ping target.
type PingDeviceConfig struct {
	// Name is the device's display name in Home Assistant.
	Name string `yaml:"name"`

	// CommandClass is the command class to refresh, by name ("Basic") or
	// decimal id ("32"). Empty or "NoOperation" refreshes all values.
	CommandClass string `yaml:"command_class"`
}

// HomeAssistantConfig contains Home Assistant websocket settings.
type HomeAssistantConfig struct {
	URL            string                       `yaml:"url"`
	Token          string                       `yaml:"token"`
	ConnectTimeout int                          `yaml:"connect_timeout"`
	RequestTimeout int                          `yaml:"request_timeout"`
	Reconnect      HomeAssistantReconnectConfig `yaml:"reconnect"`

	// TriggerEvent is a Home Assistant event type that requests a sync when
	// fired, e.g. from an automation. Empty disables it.
	TriggerEvent string `yaml:"trigger_event"`
}

// HomeAssistantReconnectConfig contains reconnection backoff settings in seconds.
type HomeAssistantReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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
}

// WebSocketConfig contains settings for the LED table stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings for the HTTP API.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DIMMERSYNC_SECTION_KEY
// For example: DIMMERSYNC_HA_TOKEN, DIMMERSYNC_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Dimmers: DimmersConfig{
			BlinkFrequency:    5,
			ResyncInterval:    600,
			PingInterval:      0,
			DiscoveryValidity: 3600,
			MaxAttempts:       2,
		},
		HomeAssistant: HomeAssistantConfig{
			URL:            "ws://homeassistant.local:8123/api/websocket",
			ConnectTimeout: 10,
			RequestTimeout: 30,
			Reconnect: HomeAssistantReconnectConfig{
				InitialDelay: 5,
				MaxDelay:     120,
			},
			TriggerEvent: "homeseer_dimmers_synchronize",
		},
		Database: DatabaseConfig{
			Path:        "./data/dimmersync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dimmersync",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "dimmersync",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DIMMERSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Home Assistant
	if v := os.Getenv("DIMMERSYNC_HA_URL"); v != "" {
		cfg.HomeAssistant.URL = v
	}
	if v := os.Getenv("DIMMERSYNC_HA_TOKEN"); v != "" {
		cfg.HomeAssistant.Token = v
	}

	// Dimmers
	if v := os.Getenv("DIMMERSYNC_RESYNC_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing DIMMERSYNC_RESYNC_INTERVAL: %w", err)
		}
		cfg.Dimmers.ResyncInterval = n
	}
	if v := os.Getenv("DIMMERSYNC_PING_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing DIMMERSYNC_PING_INTERVAL: %w", err)
		}
		cfg.Dimmers.PingInterval = n
	}

	// Database
	if v := os.Getenv("DIMMERSYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DIMMERSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DIMMERSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DIMMERSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DIMMERSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DIMMERSYNC_API_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing DIMMERSYNC_API_PORT: %w", err)
		}
		cfg.API.Port = n
	}

	// InfluxDB
	if v := os.Getenv("DIMMERSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("DIMMERSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("DIMMERSYNC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	return nil
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Dimmers
	for _, p := range []struct{ name, value string }{
		{"dimmers.color_pattern", c.Dimmers.ColorPattern},
		{"dimmers.blink_pattern", c.Dimmers.BlinkPattern},
	} {
		switch {
		case strings.TrimSpace(p.value) == "":
			errs = append(errs, p.name+" is required")
		case !strings.Contains(p.value, "{0}"):
			errs = append(errs, p.name+" must contain the {0} placeholder")
		}
	}
	if c.Dimmers.BlinkFrequency < 0 || c.Dimmers.BlinkFrequency > 255 {
		errs = append(errs, "dimmers.blink_frequency must be between 0 and 255")
	}
	if c.Dimmers.ResyncInterval < 0 {
		errs = append(errs, "dimmers.resync_interval must not be negative")
	}
	if c.Dimmers.PingInterval < 0 {
		errs = append(errs, "dimmers.ping_interval must not be negative")
	}
	if c.Dimmers.DiscoveryValidity < 0 {
		errs = append(errs, "dimmers.discovery_validity must not be negative")
	}
	if c.Dimmers.MaxAttempts < 1 {
		errs = append(errs, "dimmers.max_attempts must be at least 1")
	}
	for i, d := range c.Dimmers.PingDevices {
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Sprintf("dimmers.ping_devices[%d].name is required", i))
		}
	}

	// Home Assistant
	if c.HomeAssistant.URL == "" {
		errs = append(errs, "home_assistant.url is required")
	}
	if c.HomeAssistant.Token == "" {
		errs = append(errs, "home_assistant.token is required (set DIMMERSYNC_HA_TOKEN environment variable)")
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// Mutating routes are authenticated with HS256 tokens; a short
		// secret can be brute forced offline from any captured token.
		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set DIMMERSYNC_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return seconds(c.API.Timeouts.Read)
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return seconds(c.API.Timeouts.Write)
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return seconds(c.API.Timeouts.Idle)
}

// GetResyncInterval returns the periodic resync interval; zero disables it.
func (c *Config) GetResyncInterval() time.Duration {
	return seconds(c.Dimmers.ResyncInterval)
}

// GetPingInterval returns the periodic ping interval; zero disables it.
func (c *Config) GetPingInterval() time.Duration {
	return seconds(c.Dimmers.PingInterval)
}

// GetDiscoveryValidity returns how long a device discovery stays fresh.
func (c *Config) GetDiscoveryValidity() time.Duration {
	return seconds(c.Dimmers.DiscoveryValidity)
}

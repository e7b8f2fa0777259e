package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for sunbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Inverter InverterConfig `yaml:"inverter"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Polling  PollingConfig  `yaml:"polling"`
	Lock     LockConfig     `yaml:"lock"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InverterConfig contains the Modbus TCP endpoint of the inverter.
type InverterConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// UnitID is the Modbus unit (slave) identifier, usually 1.
	UnitID int `yaml:"unit_id"`

	// ConnectTimeout is the dial timeout in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// ReadTimeout is the per-transaction response timeout in seconds.
	// The SUN2000 dongle is slow to answer after its own reboots; values
	// under 5 seconds produce spurious failures.
	ReadTimeout int `yaml:"read_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// KeepAlive is the MQTT keepalive interval in seconds.
	KeepAlive int `yaml:"keep_alive"`

	// TopicPrefix is the root of every topic the bridge publishes to:
	// <prefix>/<register>, <prefix>/status, <prefix>/health.
	TopicPrefix string `yaml:"topic_prefix"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// PollingConfig drives the scheduler.
type PollingConfig struct {
	// FrequentKeys are read on every cycle, in the order listed.
	FrequentKeys []string `yaml:"frequent_keys"`

	// PeriodicKeys are read once every PeriodicEvery cycles, after the
	// frequent set.
	PeriodicKeys []string `yaml:"periodic_keys"`

	// PeriodicEvery is the cycle period N for the periodic set.
	PeriodicEvery int `yaml:"periodic_every"`

	// CycleInterval is the sleep between poll cycles, in seconds.
	CycleInterval int `yaml:"cycle_interval"`

	// PerReadDelayMs is the pause between consecutive register reads, in
	// milliseconds. The inverter drops requests that arrive back to back.
	PerReadDelayMs int `yaml:"per_read_delay_ms"`

	// ReconnectThreshold is the number of consecutive read failures that
	// triggers a forced teardown and reconnect of the Modbus session.
	ReconnectThreshold int `yaml:"reconnect_threshold"`

	// ConflictCooldown is the sleep, in seconds, imposed after a cycle in
	// which a competing-client signature was seen in a read failure.
	ConflictCooldown int `yaml:"conflict_cooldown"`

	// Epsilon is the minimum numeric delta that counts as a change for
	// publication purposes.
	Epsilon float64 `yaml:"epsilon"`
}

// LockConfig contains instance-lock settings.
type LockConfig struct {
	// Dir is the directory holding the lock file. The file name is
	// derived from the inverter host so two bridges polling different
	// inverters can share a gateway.
	Dir string `yaml:"dir"`
}

// DatabaseConfig contains the optional local sample archive settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays bounds how long archived samples are kept.
	RetentionDays int `yaml:"retention_days"`
}

// InfluxDBConfig contains the optional InfluxDB mirror settings.
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

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults); a missing file is not an
//     error, since gateways are often configured purely by environment
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern SUNBRIDGE_SECTION_KEY, e.g.
// SUNBRIDGE_MQTT_HOST, SUNBRIDGE_INVERTER_HOST.
//
// Returns:
//   - *Config: Loaded, normalised and validated configuration
//   - error: If the file exists but cannot be parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment only.
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults for a stock
// Mosquitto broker and a SUN2000 inverter with the SDongle.
func defaultConfig() *Config {
	return &Config{
		Inverter: InverterConfig{
			Host:           "192.168.1.102",
			Port:           502,
			UnitID:         1,
			ConnectTimeout: 10,
			ReadTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sunbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     30,
			},
			KeepAlive:   60,
			TopicPrefix: "inverter/Huawei",
		},
		Polling: PollingConfig{
			FrequentKeys: []string{
				"input_power", "active_power", "power_factor",
				"grid_voltage", "grid_current", "grid_frequency",
			},
			PeriodicKeys: []string{
				"device_status", "internal_temperature",
				"daily_yield_energy", "accumulated_yield_energy",
				"efficiency",
			},
			PeriodicEvery:      5,
			CycleInterval:      7,
			PerReadDelayMs:     400,
			ReconnectThreshold: 6,
			ConflictCooldown:   30,
			Epsilon:            0.001,
		},
		Lock: LockConfig{
			Dir: os.TempDir(),
		},
		Database: DatabaseConfig{
			Enabled:       false,
			Path:          "./data/sunbridge.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 14,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// cleanEnv strips surrounding whitespace and quotes from an environment
// value. Add-on supervisors export values wrapped in quotes.
func cleanEnv(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return s
}

// envInt parses an integer environment value, returning fallback when the
// value is unset or malformed.
func envInt(name string, fallback int) int {
	v := cleanEnv(os.Getenv(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// applyEnvOverrides applies SUNBRIDGE_* environment overrides.
func applyEnvOverrides(cfg *Config) {
	// Inverter
	if v := cleanEnv(os.Getenv("SUNBRIDGE_INVERTER_HOST")); v != "" {
		cfg.Inverter.Host = v
	}
	cfg.Inverter.Port = envInt("SUNBRIDGE_INVERTER_PORT", cfg.Inverter.Port)
	cfg.Inverter.UnitID = envInt("SUNBRIDGE_INVERTER_UNIT_ID", cfg.Inverter.UnitID)

	// MQTT
	if v := cleanEnv(os.Getenv("SUNBRIDGE_MQTT_HOST")); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	cfg.MQTT.Broker.Port = envInt("SUNBRIDGE_MQTT_PORT", cfg.MQTT.Broker.Port)
	if v := cleanEnv(os.Getenv("SUNBRIDGE_MQTT_USERNAME")); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := cleanEnv(os.Getenv("SUNBRIDGE_MQTT_PASSWORD")); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := cleanEnv(os.Getenv("SUNBRIDGE_MQTT_CLIENT_ID")); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	cfg.MQTT.KeepAlive = envInt("SUNBRIDGE_MQTT_KEEPALIVE", cfg.MQTT.KeepAlive)

	// Database / InfluxDB secrets
	if v := cleanEnv(os.Getenv("SUNBRIDGE_DATABASE_PATH")); v != "" {
		cfg.Database.Path = v
	}
	if v := cleanEnv(os.Getenv("SUNBRIDGE_INFLUXDB_TOKEN")); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := cleanEnv(os.Getenv("SUNBRIDGE_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

// applyFallbacks clamps out-of-range numeric settings back to their
// defaults. The bridge must come up with usable timings even when handed a
// broken file; a typo in a knob must not keep telemetry down.
func (c *Config) applyFallbacks() {
	def := defaultConfig()

	if c.Inverter.Port < 1 || c.Inverter.Port > 65535 {
		c.Inverter.Port = def.Inverter.Port
	}
	if c.Inverter.UnitID < 0 || c.Inverter.UnitID > 247 {
		c.Inverter.UnitID = def.Inverter.UnitID
	}
	if c.Inverter.ConnectTimeout <= 0 {
		c.Inverter.ConnectTimeout = def.Inverter.ConnectTimeout
	}
	if c.Inverter.ReadTimeout <= 0 {
		c.Inverter.ReadTimeout = def.Inverter.ReadTimeout
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		c.MQTT.QoS = def.MQTT.QoS
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		c.MQTT.Reconnect.InitialDelay = def.MQTT.Reconnect.InitialDelay
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		c.MQTT.Reconnect.MaxDelay = def.MQTT.Reconnect.MaxDelay
	}
	if c.MQTT.KeepAlive < 1 {
		c.MQTT.KeepAlive = def.MQTT.KeepAlive
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	c.MQTT.TopicPrefix = strings.Trim(c.MQTT.TopicPrefix, "/")

	if c.Polling.PeriodicEvery < 1 {
		c.Polling.PeriodicEvery = def.Polling.PeriodicEvery
	}
	if c.Polling.CycleInterval < 1 {
		c.Polling.CycleInterval = def.Polling.CycleInterval
	}
	if c.Polling.PerReadDelayMs < 0 {
		c.Polling.PerReadDelayMs = def.Polling.PerReadDelayMs
	}
	if c.Polling.ReconnectThreshold < 1 {
		c.Polling.ReconnectThreshold = def.Polling.ReconnectThreshold
	}
	if c.Polling.ConflictCooldown < 1 {
		c.Polling.ConflictCooldown = def.Polling.ConflictCooldown
	}
	if c.Polling.Epsilon < 0 {
		c.Polling.Epsilon = def.Polling.Epsilon
	}
	if len(c.Polling.FrequentKeys) == 0 {
		c.Polling.FrequentKeys = def.Polling.FrequentKeys
	}

	if c.Lock.Dir == "" {
		c.Lock.Dir = def.Lock.Dir
	}
	if c.Database.BusyTimeout <= 0 {
		c.Database.BusyTimeout = def.Database.BusyTimeout
	}
	if c.Database.RetentionDays < 1 {
		c.Database.RetentionDays = def.Database.RetentionDays
	}
}

// Validate checks the configuration for unusable settings.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Inverter.Host == "" {
		errs = append(errs, "inverter.host is required")
	}
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database.enabled")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb.enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb.enabled (set SUNBRIDGE_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetConnectTimeout returns the inverter dial timeout as a Duration.
func (c *InverterConfig) GetConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// GetReadTimeout returns the inverter response timeout as a Duration.
func (c *InverterConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

// GetCycleInterval returns the inter-cycle sleep as a Duration.
func (c *PollingConfig) GetCycleInterval() time.Duration {
	return time.Duration(c.CycleInterval) * time.Second
}

// GetPerReadDelay returns the inter-read pause as a Duration.
func (c *PollingConfig) GetPerReadDelay() time.Duration {
	return time.Duration(c.PerReadDelayMs) * time.Millisecond
}

// GetConflictCooldown returns the conflict cooldown as a Duration.
func (c *PollingConfig) GetConflictCooldown() time.Duration {
	return time.Duration(c.ConflictCooldown) * time.Second
}

// GetRetention returns the sample archive retention window as a Duration.
func (c *DatabaseConfig) GetRetention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

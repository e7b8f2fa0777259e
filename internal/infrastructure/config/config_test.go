package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTempConfig writes YAML content to a temp file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Missing file is not an error; defaults apply.
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Inverter.Port != 502 {
		t.Errorf("Inverter.Port = %d, want 502", cfg.Inverter.Port)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.Polling.PeriodicEvery != 5 {
		t.Errorf("Polling.PeriodicEvery = %d, want 5", cfg.Polling.PeriodicEvery)
	}
	if cfg.Polling.ReconnectThreshold != 6 {
		t.Errorf("Polling.ReconnectThreshold = %d, want 6", cfg.Polling.ReconnectThreshold)
	}
	if len(cfg.Polling.FrequentKeys) == 0 {
		t.Error("Polling.FrequentKeys should have defaults")
	}
	if cfg.MQTT.TopicPrefix != "inverter/Huawei" {
		t.Errorf("MQTT.TopicPrefix = %q, want inverter/Huawei", cfg.MQTT.TopicPrefix)
	}
	if cfg.MQTT.KeepAlive != 60 {
		t.Errorf("MQTT.KeepAlive = %d, want 60", cfg.MQTT.KeepAlive)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
inverter:
  host: 10.0.0.50
  port: 1502
mqtt:
  broker:
    host: broker.local
    client_id: sunbridge-test
polling:
  cycle_interval: 15
  frequent_keys: [active_power]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Inverter.Host != "10.0.0.50" {
		t.Errorf("Inverter.Host = %q, want 10.0.0.50", cfg.Inverter.Host)
	}
	if cfg.Inverter.Port != 1502 {
		t.Errorf("Inverter.Port = %d, want 1502", cfg.Inverter.Port)
	}
	if cfg.Polling.CycleInterval != 15 {
		t.Errorf("Polling.CycleInterval = %d, want 15", cfg.Polling.CycleInterval)
	}
	if len(cfg.Polling.FrequentKeys) != 1 || cfg.Polling.FrequentKeys[0] != "active_power" {
		t.Errorf("Polling.FrequentKeys = %v, want [active_power]", cfg.Polling.FrequentKeys)
	}
	// Unset sections keep defaults.
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `
mqtt:
  broker:
    host: from-file
`)

	t.Setenv("SUNBRIDGE_MQTT_HOST", `"from-env"`)
	t.Setenv("SUNBRIDGE_MQTT_PORT", "8883")
	t.Setenv("SUNBRIDGE_MQTT_KEEPALIVE", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Quotes around env values are stripped.
	if cfg.MQTT.Broker.Host != "from-env" {
		t.Errorf("MQTT.Broker.Host = %q, want from-env", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.KeepAlive != 30 {
		t.Errorf("MQTT.KeepAlive = %d, want 30", cfg.MQTT.KeepAlive)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	path := writeTempConfig(t, `
mqtt:
  qos: 7
polling:
  periodic_every: 0
  cycle_interval: -5
  reconnect_threshold: -1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want fallback 1", cfg.MQTT.QoS)
	}
	if cfg.Polling.PeriodicEvery != 5 {
		t.Errorf("Polling.PeriodicEvery = %d, want fallback 5", cfg.Polling.PeriodicEvery)
	}
	if cfg.Polling.CycleInterval != 7 {
		t.Errorf("Polling.CycleInterval = %d, want fallback 7", cfg.Polling.CycleInterval)
	}
	if cfg.Polling.ReconnectThreshold != 6 {
		t.Errorf("Polling.ReconnectThreshold = %d, want fallback 6", cfg.Polling.ReconnectThreshold)
	}
}

func TestLoad_MalformedEnvIntFallsBack(t *testing.T) {
	t.Setenv("SUNBRIDGE_MQTT_PORT", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want fallback 1883", cfg.MQTT.Broker.Port)
	}
}

func TestValidate_InfluxRequiresToken(t *testing.T) {
	path := writeTempConfig(t, `
influxdb:
  enabled: true
  url: http://localhost:8086
  org: home
  bucket: solar
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for influxdb without token")
	}
}

func TestValidate_EmptyBrokerHost(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.Broker.Host = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for empty broker host")
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.Polling.GetCycleInterval(); got != 7*time.Second {
		t.Errorf("GetCycleInterval() = %v, want 7s", got)
	}
	if got := cfg.Polling.GetPerReadDelay(); got != 400*time.Millisecond {
		t.Errorf("GetPerReadDelay() = %v, want 400ms", got)
	}
	if got := cfg.Polling.GetConflictCooldown(); got != 30*time.Second {
		t.Errorf("GetConflictCooldown() = %v, want 30s", got)
	}
	if got := cfg.Inverter.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 10s", got)
	}
	if got := cfg.Database.GetRetention(); got != 14*24*time.Hour {
		t.Errorf("GetRetention() = %v, want 336h", got)
	}
}

func TestTopicPrefixTrimmed(t *testing.T) {
	path := writeTempConfig(t, `
mqtt:
  topic_prefix: "/solar/east/"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.TopicPrefix != "solar/east" {
		t.Errorf("TopicPrefix = %q, want solar/east", cfg.MQTT.TopicPrefix)
	}
}

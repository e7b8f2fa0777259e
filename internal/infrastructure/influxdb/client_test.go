package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/sunbridge/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWriteSampleDisconnected(t *testing.T) {
	// A disconnected client drops writes silently; must not panic on a
	// nil writeAPI.
	c := &Client{}
	c.WriteSample("inverter/Huawei", "active_power", 100, time.Now())
}

func TestCloseNilClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

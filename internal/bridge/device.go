package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/sunbridge/internal/infrastructure/logging"
	"github.com/nerrad567/sunbridge/internal/inverter"
)

// ErrDeviceUnavailable indicates a read was attempted with no live device
// connection.
var ErrDeviceUnavailable = errors.New("device connection unavailable")

// reconnectCooldown is the fixed pause between tearing a device connection
// down and dialling again during a forced reconnect.
const reconnectCooldown = 2 * time.Second

// DeviceClient is the slice of the inverter client the engine needs.
type DeviceClient interface {
	Read(ctx context.Context, key string) (inverter.Sample, error)
	IsConnected() bool
	Close() error
}

// DeviceSupervisor owns the inverter connection. Unlike the broker side
// there is no liveness callback: connect either returns a usable handle or
// fails synchronously. The supervisor has no self-healing timer; forced
// reconnects are driven by the poll loop via TeardownAndReconnect.
type DeviceSupervisor struct {
	connect func(ctx context.Context) (DeviceClient, error)
	backoff *Backoff
	log     *logging.Logger
	sleep   func(ctx context.Context, d time.Duration) bool

	state  ConnectionState
	client DeviceClient
}

// NewDeviceSupervisor wires a supervisor around a connect function.
func NewDeviceSupervisor(connect func(ctx context.Context) (DeviceClient, error), backoff *Backoff, log *logging.Logger) *DeviceSupervisor {
	return &DeviceSupervisor{
		connect: connect,
		backoff: backoff,
		log:     log.With("component", "device-supervisor"),
		sleep:   sleepCtx,
	}
}

// EnsureConnected blocks until the inverter is reachable or ctx is
// cancelled, retrying forever with backoff.
func (s *DeviceSupervisor) EnsureConnected(ctx context.Context) (DeviceClient, error) {
	if s.client != nil && s.client.IsConnected() {
		return s.client, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.state = StateConnecting
		client, err := s.connect(ctx)
		if err == nil {
			s.state = StateConnected
			s.client = client
			s.backoff.Reset()
			s.log.Info("device connected")
			return client, nil
		}

		s.state = StateDisconnected
		delay := s.backoff.Next()
		s.log.Warn("device connect failed", "error", err, "retry_in", delay)
		if !s.sleep(ctx, delay) {
			return nil, ctx.Err()
		}
	}
}

// Read reads one register through the live connection.
func (s *DeviceSupervisor) Read(ctx context.Context, key string) (inverter.Sample, error) {
	if s.client == nil {
		return inverter.Sample{}, ErrDeviceUnavailable
	}
	return s.client.Read(ctx, key)
}

// TeardownAndReconnect force-closes the current connection, waits a fixed
// cooldown and dials again. Close failures are ignored; the handle is
// discarded either way.
func (s *DeviceSupervisor) TeardownAndReconnect(ctx context.Context) (DeviceClient, error) {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.Debug("close before reconnect", "error", err)
		}
		s.client = nil
	}
	s.state = StateDisconnected

	if !s.sleep(ctx, reconnectCooldown) {
		return nil, ctx.Err()
	}
	return s.EnsureConnected(ctx)
}

// IsConnected reports whether a usable connection is held.
func (s *DeviceSupervisor) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}

// State returns the supervisor's view of the connection lifecycle.
func (s *DeviceSupervisor) State() ConnectionState {
	if s.state == StateConnected && !s.IsConnected() {
		return StateDisconnected
	}
	return s.state
}

// Close releases the device connection.
func (s *DeviceSupervisor) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.state = StateDisconnected
	return err
}

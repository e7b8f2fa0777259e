package bridge

import (
	"context"
	"time"

	"github.com/nerrad567/sunbridge/internal/infrastructure/logging"
)

// BrokerClient is the slice of the MQTT client the engine needs. The
// transport runs its own network goroutine; these calls never block on
// broker I/O beyond the initial connect wait.
type BrokerClient interface {
	PublishString(topic string, payload string, qos byte, retained bool) error
	IsConnected() bool
	Close() error
}

// BrokerSupervisor owns the broker connection. It connects with unbounded
// retry and exposes a liveness predicate for the poll loop. The retained
// "online" status and the "offline" last-will are handled by the client
// itself on connect, so they cover transport-level reconnects too.
type BrokerSupervisor struct {
	connect func() (BrokerClient, error)
	backoff *Backoff
	log     *logging.Logger
	sleep   func(ctx context.Context, d time.Duration) bool

	state  ConnectionState
	client BrokerClient
}

// NewBrokerSupervisor wires a supervisor around a connect function. Each
// call to connect must build a fresh client with the last-will registered,
// attempt one connection and report the outcome.
func NewBrokerSupervisor(connect func() (BrokerClient, error), backoff *Backoff, log *logging.Logger) *BrokerSupervisor {
	return &BrokerSupervisor{
		connect: connect,
		backoff: backoff,
		log:     log.With("component", "broker-supervisor"),
		sleep:   sleepCtx,
	}
}

// EnsureConnected blocks until the broker is reachable or ctx is cancelled.
// Failed attempts sleep the backoff delay and retry forever; a success
// resets the backoff.
//
// Returns:
//   - BrokerClient: Live client handle
//   - error: Only ctx.Err() on cancellation
func (s *BrokerSupervisor) EnsureConnected(ctx context.Context) (BrokerClient, error) {
	if s.client != nil && s.client.IsConnected() {
		return s.client, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.state = StateConnecting
		client, err := s.connect()
		if err == nil {
			s.state = StateConnected
			s.client = client
			s.backoff.Reset()
			s.log.Info("broker connected")
			return client, nil
		}

		s.state = StateDisconnected
		delay := s.backoff.Next()
		s.log.Warn("broker connect failed", "error", err, "retry_in", delay)
		if !s.sleep(ctx, delay) {
			return nil, ctx.Err()
		}
	}
}

// Publish sends one payload, fire and forget. Failures are logged and
// dropped; the next cycle's read supersedes any lost publication.
func (s *BrokerSupervisor) Publish(topic, payload string, qos byte, retained bool) {
	if s.client == nil {
		s.log.Warn("publish skipped, broker never connected", "topic", topic)
		return
	}
	if err := s.client.PublishString(topic, payload, qos, retained); err != nil {
		s.log.Warn("publish failed", "topic", topic, "error", err)
	}
}

// IsConnected reports broker liveness as seen by the transport.
func (s *BrokerSupervisor) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}

// State returns the supervisor's view of the connection lifecycle.
func (s *BrokerSupervisor) State() ConnectionState {
	if s.state == StateConnected && !s.IsConnected() {
		return StateDisconnected
	}
	return s.state
}

// Close shuts the broker connection down, publishing the retained
// "offline" status on the way out.
func (s *BrokerSupervisor) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.state = StateDisconnected
	return err
}

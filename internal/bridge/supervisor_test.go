package bridge

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/sunbridge/internal/infrastructure/logging"
	"github.com/nerrad567/sunbridge/internal/inverter"
)

type publication struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

type fakeBroker struct {
	connected   bool
	failPublish bool
	published   []publication
	closed      bool
}

func (f *fakeBroker) PublishString(topic, payload string, qos byte, retained bool) error {
	if f.failPublish {
		return errors.New("publish rejected")
	}
	f.published = append(f.published, publication{topic, payload, qos, retained})
	return nil
}

func (f *fakeBroker) IsConnected() bool { return f.connected }

func (f *fakeBroker) Close() error {
	f.closed = true
	f.connected = false
	return nil
}

type fakeDevice struct {
	// read returns the value for a key or an error. Nil means echo zero.
	read      func(key string) (inverter.Value, error)
	readKeys  []string
	connected bool
	closes    int
}

func (f *fakeDevice) Read(_ context.Context, key string) (inverter.Sample, error) {
	f.readKeys = append(f.readKeys, key)
	if f.read == nil {
		return inverter.Sample{Key: key, Value: inverter.Value{Numeric: true}, At: time.Now()}, nil
	}
	v, err := f.read(key)
	if err != nil {
		return inverter.Sample{}, err
	}
	return inverter.Sample{Key: key, Value: v, At: time.Now()}, nil
}

func (f *fakeDevice) IsConnected() bool { return f.connected }

func (f *fakeDevice) Close() error {
	f.closes++
	f.connected = false
	return nil
}

// sleepRecorder captures every positive sleep and never blocks.
type sleepRecorder struct {
	slept []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d > 0 {
		r.slept = append(r.slept, d)
	}
	return true
}

func testLogger() *logging.Logger {
	return logging.Default()
}

func TestBrokerSupervisorRetriesWithBackoff(t *testing.T) {
	attempts := 0
	broker := &fakeBroker{connected: true}
	connect := func() (BrokerClient, error) {
		attempts++
		if attempts < 4 {
			return nil, errors.New("connection refused")
		}
		return broker, nil
	}

	sup := NewBrokerSupervisor(connect, NewBackoff(time.Second, 30*time.Second), testLogger())
	rec := &sleepRecorder{}
	sup.sleep = rec.sleep

	client, err := sup.EnsureConnected(context.Background())
	if err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}
	if client != BrokerClient(broker) {
		t.Error("EnsureConnected() returned the wrong client")
	}
	if attempts != 4 {
		t.Errorf("connect attempts = %d, want 4", attempts)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(rec.slept) != len(want) {
		t.Fatalf("slept %v, want %v", rec.slept, want)
	}
	for i := range want {
		if rec.slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, rec.slept[i], want[i])
		}
	}

	if sup.State() != StateConnected {
		t.Errorf("State() = %v, want connected", sup.State())
	}
	// Success resets the backoff for the next outage.
	if got := sup.backoff.Next(); got != time.Second {
		t.Errorf("backoff after success = %v, want 1s", got)
	}
}

func TestBrokerSupervisorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sup := NewBrokerSupervisor(func() (BrokerClient, error) {
		return nil, errors.New("unreachable")
	}, NewBackoff(time.Second, 30*time.Second), testLogger())

	if _, err := sup.EnsureConnected(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestBrokerSupervisorReusesLiveClient(t *testing.T) {
	attempts := 0
	broker := &fakeBroker{connected: true}
	sup := NewBrokerSupervisor(func() (BrokerClient, error) {
		attempts++
		return broker, nil
	}, NewBackoff(time.Second, 30*time.Second), testLogger())

	if _, err := sup.EnsureConnected(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := sup.EnsureConnected(context.Background()); err != nil {
		t.Fatal(err)
	}
	if attempts != 1 {
		t.Errorf("connect attempts = %d, want 1 for a live client", attempts)
	}
}

func TestBrokerSupervisorPublishFailureAbsorbed(t *testing.T) {
	broker := &fakeBroker{connected: true, failPublish: true}
	sup := NewBrokerSupervisor(func() (BrokerClient, error) { return broker, nil },
		NewBackoff(time.Second, 30*time.Second), testLogger())
	if _, err := sup.EnsureConnected(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Must not panic or escalate.
	sup.Publish("inverter/Huawei/active_power", "3250", 1, false)
}

func TestBrokerSupervisorPublishBeforeConnectLogged(t *testing.T) {
	var buf bytes.Buffer
	log := &logging.Logger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	sup := NewBrokerSupervisor(func() (BrokerClient, error) {
		return &fakeBroker{connected: true}, nil
	}, NewBackoff(time.Second, 30*time.Second), log)

	// No EnsureConnected yet: the drop must leave a trace, not vanish.
	sup.Publish("inverter/Huawei/health", "{}", 0, false)

	out := buf.String()
	if !strings.Contains(out, "publish skipped") {
		t.Errorf("log output %q missing skip warning", out)
	}
	if !strings.Contains(out, "inverter/Huawei/health") {
		t.Errorf("log output %q missing dropped topic", out)
	}
}

func TestDeviceSupervisorTeardownAndReconnect(t *testing.T) {
	first := &fakeDevice{connected: true}
	second := &fakeDevice{connected: true}
	connects := 0
	sup := NewDeviceSupervisor(func(context.Context) (DeviceClient, error) {
		connects++
		if connects == 1 {
			return first, nil
		}
		return second, nil
	}, NewBackoff(time.Second, 60*time.Second), testLogger())
	rec := &sleepRecorder{}
	sup.sleep = rec.sleep

	if _, err := sup.EnsureConnected(context.Background()); err != nil {
		t.Fatal(err)
	}

	client, err := sup.TeardownAndReconnect(context.Background())
	if err != nil {
		t.Fatalf("TeardownAndReconnect() error = %v", err)
	}
	if first.closes != 1 {
		t.Errorf("old handle closes = %d, want 1", first.closes)
	}
	if client != DeviceClient(second) {
		t.Error("reconnect should hand back a fresh client")
	}
	if len(rec.slept) != 1 || rec.slept[0] != reconnectCooldown {
		t.Errorf("slept %v, want exactly the reconnect cooldown", rec.slept)
	}
}

func TestDeviceSupervisorReadWithoutConnection(t *testing.T) {
	sup := NewDeviceSupervisor(func(context.Context) (DeviceClient, error) {
		return nil, errors.New("unreachable")
	}, NewBackoff(time.Second, 60*time.Second), testLogger())

	if _, err := sup.Read(context.Background(), "active_power"); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestDeviceSupervisorRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	dev := &fakeDevice{connected: true}
	sup := NewDeviceSupervisor(func(context.Context) (DeviceClient, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("dial timeout")
		}
		return dev, nil
	}, NewBackoff(time.Second, 60*time.Second), testLogger())
	rec := &sleepRecorder{}
	sup.sleep = rec.sleep

	if _, err := sup.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected() error = %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.slept) != len(want) {
		t.Fatalf("slept %v, want %v", rec.slept, want)
	}
}

package bridge

import (
	"context"
	"time"

	"github.com/nerrad567/sunbridge/internal/infrastructure/logging"
	"github.com/nerrad567/sunbridge/internal/inverter"
)

// brokerGateDelay is how long a cycle waits when the broker is down before
// checking again. Reads are pointless while nothing can be published.
const brokerGateDelay = time.Second

// TopicScheme maps the poller's outputs to broker topics.
type TopicScheme interface {
	Measurement(key string) string
	Health() string
}

// Recorder persists published samples, best effort. Failures are logged
// and never affect scheduling.
type Recorder interface {
	Record(ctx context.Context, sample inverter.Sample) error
}

// PollerConfig carries the validated scheduling parameters.
type PollerConfig struct {
	FrequentKeys       []string
	PeriodicKeys       []string
	PeriodicEvery      int
	CycleInterval      time.Duration
	PerReadDelay       time.Duration
	ReconnectThreshold int
	ConflictCooldown   time.Duration
	QoS                byte
}

// Poller is the control loop. It owns every piece of mutable engine state
// and runs strictly sequentially: one read in flight at a time, because the
// inverter supports a single transaction per connection.
type Poller struct {
	cfg       PollerConfig
	broker    *BrokerSupervisor
	device    *DeviceSupervisor
	change    *ChangeDetector
	topics    TopicScheme
	recorders []Recorder
	log       *logging.Logger
	sleep     func(ctx context.Context, d time.Duration) bool

	cycle         uint64
	periodicTick  int
	consecFail    int
	cumulativeOK  uint64
	cumulativeErr uint64
}

// cycleStats accumulates per-cycle outcomes for the health snapshot and
// the conflict cooldown decision.
type cycleStats struct {
	ok        int
	fail      int
	conflicts int
}

// NewPoller assembles the control loop.
func NewPoller(cfg PollerConfig, broker *BrokerSupervisor, device *DeviceSupervisor,
	change *ChangeDetector, topics TopicScheme, log *logging.Logger, recorders ...Recorder) *Poller {
	return &Poller{
		cfg:       cfg,
		broker:    broker,
		device:    device,
		change:    change,
		topics:    topics,
		recorders: recorders,
		log:       log.With("component", "poller"),
		sleep:     sleepCtx,
	}
}

// Run establishes both endpoint connections and polls until ctx is
// cancelled. Cancellation is observed at cycle boundaries; an in-flight
// read completes or times out naturally.
func (p *Poller) Run(ctx context.Context) error {
	if _, err := p.broker.EnsureConnected(ctx); err != nil {
		return err
	}
	if _, err := p.device.EnsureConnected(ctx); err != nil {
		return err
	}

	p.log.Info("polling started",
		"frequent", len(p.cfg.FrequentKeys),
		"periodic", len(p.cfg.PeriodicKeys),
		"interval", p.cfg.CycleInterval)

	for ctx.Err() == nil {
		stats, ran := p.runCycle(ctx)
		if ctx.Err() != nil {
			break
		}

		switch {
		case !ran:
			// Broker gate: short wait, no periodic advance.
			if !p.sleep(ctx, brokerGateDelay) {
				return ctx.Err()
			}
		case stats.conflicts > 0:
			p.log.Warn("conflict suspected, backing off",
				"conflicts", stats.conflicts, "cooldown", p.cfg.ConflictCooldown)
			if !p.sleep(ctx, p.cfg.ConflictCooldown) {
				return ctx.Err()
			}
		default:
			if !p.sleep(ctx, p.cfg.CycleInterval) {
				return ctx.Err()
			}
		}
	}
	return ctx.Err()
}

// runCycle executes one full poll cycle. It returns ran=false when the
// broker gate skipped the cycle entirely.
func (p *Poller) runCycle(ctx context.Context) (stats cycleStats, ran bool) {
	if !p.broker.IsConnected() {
		p.log.Warn("broker not connected, holding reads")
		return cycleStats{}, false
	}

	p.readSet(ctx, p.cfg.FrequentKeys, &stats)

	p.periodicTick++
	if p.periodicTick >= p.cfg.PeriodicEvery {
		p.readSet(ctx, p.cfg.PeriodicKeys, &stats)
		p.periodicTick = 0
	}

	p.cycle++
	p.publishHealth(stats)
	return stats, true
}

// readSet reads each key in configured order, publishing changed values.
// Per-key failures are absorbed: counted, classified, never aborting the
// cycle. Six consecutive failures across any keys force a device reconnect.
func (p *Poller) readSet(ctx context.Context, keys []string, stats *cycleStats) {
	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}

		sample, err := p.device.Read(ctx, key)
		if err != nil {
			stats.fail++
			p.cumulativeErr++
			p.consecFail++
			if IsConflict(err) {
				stats.conflicts++
				p.log.Warn("read failed, conflict signature", "key", key, "error", err)
			} else {
				p.log.Warn("read failed", "key", key, "error", err)
			}

			if p.consecFail >= p.cfg.ReconnectThreshold {
				p.log.Warn("consecutive read failures reached threshold, reconnecting device",
					"failures", p.consecFail)
				p.consecFail = 0
				if _, rerr := p.device.TeardownAndReconnect(ctx); rerr != nil {
					return
				}
			}
		} else {
			stats.ok++
			p.cumulativeOK++
			p.consecFail = 0

			if p.change.Changed(key, sample.Value) {
				p.broker.Publish(p.topics.Measurement(key), sample.Value.String(), p.cfg.QoS, false)
				p.record(ctx, sample)
			}
		}

		if !p.sleep(ctx, p.cfg.PerReadDelay) {
			return
		}
	}
}

// record mirrors a published sample into the configured sinks.
func (p *Poller) record(ctx context.Context, sample inverter.Sample) {
	for _, r := range p.recorders {
		if err := r.Record(ctx, sample); err != nil {
			p.log.Debug("sample record failed", "key", sample.Key, "error", err)
		}
	}
}

// publishHealth emits the cycle snapshot at most once, QoS 0, not retained.
func (p *Poller) publishHealth(stats cycleStats) {
	snapshot := HealthSnapshot{
		Timestamp:     time.Now().UTC(),
		Cycle:         p.cycle,
		CumulativeOK:  p.cumulativeOK,
		CumulativeErr: p.cumulativeErr,
		CycleOK:       stats.ok,
		CycleErr:      stats.fail,
		Conflicts:     stats.conflicts,
		Broker:        p.broker.State().String(),
		Device:        p.device.State().String(),
		CachedKeys:    p.change.Len(),
	}

	payload, err := snapshot.Encode()
	if err != nil {
		p.log.Warn("health snapshot encode failed", "error", err)
		return
	}
	p.broker.Publish(p.topics.Health(), string(payload), 0, false)
}

// sleepCtx sleeps for d unless ctx is cancelled first. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Package bridge contains the resilience and scheduling engine that moves
// inverter telemetry to the MQTT broker.
//
// The poller is a single sequential control loop: it reads the frequent
// register set every cycle and the periodic set on a modulo-N tick, filters
// results through a last-value change detector and publishes what changed.
// Connection handling for both endpoints lives in two supervisors that
// retry with exponential backoff and never give up. A conflict monitor
// classifies read failures that look like a second client fighting for the
// inverter session, and imposes a cooldown instead of the normal inter-cycle
// sleep.
//
// All mutable state (last-value cache, backoff delays, failure counters) is
// owned by the control loop. Nothing in this package needs locking.
package bridge

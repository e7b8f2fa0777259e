// Package mqtt provides the broker-side client for sunbridge.
//
// This package manages:
//   - Single connection attempts against the broker (the supervisor in
//     internal/bridge owns the retry loop and its backoff state)
//   - Liveness tracking via paho's connection callbacks
//   - Retained "online"/"offline" status publication with a Last Will
//     registered before every connect attempt
//   - Fire-and-forget publishing with QoS and payload validation
//
// # Architecture
//
// The bridge is publish-only. Telemetry flows one way:
//
//	SUN2000 inverter → sunbridge → MQTT broker → subscribers
//
// There is deliberately no subscription support; nothing on the broker may
// command the inverter through this process.
//
// # Connection model
//
// The initial connect is attempted once per Connect() call so the broker
// supervisor can interleave its own backoff sleeps and shutdown checks.
// Once a connection has been established, paho's background network thread
// auto-reconnects after transport drops and the OnConnect callback
// re-publishes the retained "online" status.
package mqtt

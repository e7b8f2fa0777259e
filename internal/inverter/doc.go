// Package inverter maps Huawei SUN2000 holding registers to named, typed
// measurements.
//
// The package owns the register table (address, width, signedness, gain),
// decodes raw register payloads into Values and exposes a small client that
// reads one named register per call over a shared Modbus TCP connection.
// Sentinel register values reported by the inverter for "not available"
// decode to NaN so downstream change detection can treat them uniformly.
package inverter

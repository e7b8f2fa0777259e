// Package config loads and validates sunbridge configuration.
//
// Configuration comes from three layers, each overriding the last:
//
//  1. Hardcoded defaults (safe for a stock Mosquitto + SUN2000 setup)
//  2. A YAML file (default configs/config.yaml, SUNBRIDGE_CONFIG to override)
//  3. SUNBRIDGE_* environment variables (deployment secrets and host addresses)
//
// The bridge is designed to start with whatever it is given: invalid
// numeric values fall back to their defaults rather than aborting, because
// a gateway that refuses to boot over a typo in a timing knob is worse
// than one running with stock timings. Only genuinely unusable settings
// (an empty broker host, an out-of-range port) fail Load.
package config

// Package database manages the optional local SQLite store.
//
// sunbridge uses SQLite for one thing: the sample-history archive, a local
// append-only record of every published measurement. It exists for
// diagnostics on gateways with unreliable uplinks: when the broker was
// unreachable for an afternoon, the archive still shows what the inverter
// was doing.
//
// The database is entirely optional (database.enabled in config.yaml);
// the bridge's control loop never depends on it.
package database

// Package lockfile provides the single-instance guard. One process per
// inverter target: a second instance polling the same device would fight
// for its only Modbus session, so acquisition failure is fatal rather than
// retryable.
package lockfile

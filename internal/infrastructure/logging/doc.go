// Package logging provides structured logging for sunbridge.
//
// It wraps log/slog with configuration-driven level, format and output
// selection, and stamps every record with the service name and version.
// The bridge runs unattended for years on gateway hardware, so logs are the
// primary diagnostic surface; JSON output is the default so journald and
// container log collectors can index fields.
package logging

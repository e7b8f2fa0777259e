// Package history archives published samples to the local SQLite store so
// a gap in broker connectivity does not mean a gap in the record. The
// archive is append-mostly; Prune keeps it bounded on small flash media.
package history

package database

import (
	"context"
	"fmt"
)

// schemaVersion is the current schema version, recorded in PRAGMA
// user_version. Bump when statements are appended to schemaStatements.
const schemaVersion = 1

// schemaStatements holds the cumulative schema, ordered. Each slice entry
// is one version step; step i brings the database to user_version i+1.
var schemaStatements = [][]string{
	// Version 1: sample archive.
	{
		`CREATE TABLE IF NOT EXISTS sample_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			register    TEXT NOT NULL,
			value       TEXT NOT NULL,
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sample_history_register_time
			ON sample_history (register, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sample_history_time
			ON sample_history (recorded_at)`,
	},
}

// Migrate brings the schema to the current version.
//
// The schema is tiny (one append-only table), so versioning rides on
// PRAGMA user_version rather than a migrations table. Each step runs in
// its own transaction so a failure leaves the recorded version honest.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - error: If any schema step fails
func (db *DB) Migrate(ctx context.Context) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for step := current; step < schemaVersion; step++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning schema transaction: %w", err)
		}

		for _, stmt := range schemaStatements[step] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("applying schema step %d: %w", step+1, err)
			}
		}

		// PRAGMA cannot be parameterised.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording schema version %d: %w", step+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing schema step %d: %w", step+1, err)
		}
	}

	return nil
}

package history

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/sunbridge/internal/infrastructure/database"
	"github.com/nerrad567/sunbridge/internal/inverter"
)

// Archive stores published samples in the sample_history table.
type Archive struct {
	db *database.DB
}

// Entry is one archived sample row.
type Entry struct {
	ID         int64
	Register   string
	Value      string
	RecordedAt time.Time
}

// New returns an archive over an opened, migrated database.
func New(db *database.DB) *Archive {
	return &Archive{db: db}
}

// Record appends one sample. Values are stored in their published string
// form, so status text and NaN archive the same way they publish.
func (a *Archive) Record(ctx context.Context, sample inverter.Sample) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO sample_history (register, value, recorded_at) VALUES (?, ?, ?)`,
		sample.Key, sample.Value.String(), sample.At.UTC())
	if err != nil {
		return fmt.Errorf("archiving %s: %w", sample.Key, err)
	}
	return nil
}

// Recent returns up to limit entries for a register, newest first.
func (a *Archive) Recent(ctx context.Context, register string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, register, value, recorded_at
		 FROM sample_history
		 WHERE register = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		register, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", register, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Register, &e.Value, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the retention window and returns the
// number removed.
func (a *Archive) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	result, err := a.db.ExecContext(ctx,
		`DELETE FROM sample_history WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return result.RowsAffected()
}

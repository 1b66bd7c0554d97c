package persist

import (
	"context"
	"fmt"
	"time"
)

// History entry kinds.
const (
	HistoryStart = "start"
	HistoryEnd   = "end"
)

// HistoryEntry is one disaster lifecycle row.
type HistoryEntry struct {
	ID         int64
	RegionID   string
	DisasterID string
	Kind       string // HistoryStart or HistoryEnd
	Reason     string
	OccurredAt time.Time
	EndsAt     *time.Time // start rows only
}

// HistoryRepo is the append-only disaster history log. Runtime scheduler
// state is never read back from it.
type HistoryRepo struct {
	db *DB
}

func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Append writes a batch of entries in a single transaction.
func (r *HistoryRepo) Append(ctx context.Context, entries []HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("history begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO disaster_history (region_id, disaster_id, kind, reason, occurred_at, ends_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.RegionID, e.DisasterID, e.Kind, e.Reason, e.OccurredAt, e.EndsAt,
		); err != nil {
			return fmt.Errorf("history insert: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Recent returns up to limit entries, newest first. An empty regionID
// returns entries of every region.
func (r *HistoryRepo) Recent(ctx context.Context, regionID string, limit int) ([]HistoryEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, region_id, disaster_id, kind, reason, occurred_at, ends_at
		 FROM disaster_history
		 WHERE $1 = '' OR region_id = $1
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $2`,
		regionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.RegionID, &e.DisasterID, &e.Kind, &e.Reason, &e.OccurredAt, &e.EndsAt); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Event is one journaled provider operation: a read or a reset.
type Event struct {
	Time    time.Time `json:"time"`
	Path    string    `json:"path"`
	QID     string    `json:"qid"`
	Op      string    `json:"op"` // "read", "reset", "reset-all"
	Matched int       `json:"matched"`
	Bytes   int       `json:"bytes"`
	Partial bool      `json:"partial"`
	Outcome string    `json:"outcome"` // "ok" or an error summary
}

// RecordEvent appends one row to the read history.
func RecordEvent(db *sql.DB, ev Event) error {
	_, err := db.Exec(
		`INSERT INTO read_history (ts, path, qid, op, matched, bytes, partial, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Time.UTC().Format(time.RFC3339), ev.Path, ev.QID, ev.Op,
		ev.Matched, ev.Bytes, boolInt(ev.Partial), ev.Outcome,
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit history rows, newest first.
func RecentEvents(db *sql.DB, limit int) ([]Event, error) {
	rows, err := db.Query(
		`SELECT ts, path, qid, op, matched, bytes, partial, outcome
		 FROM read_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts string
		var partial int
		if err := rows.Scan(&ts, &ev.Path, &ev.QID, &ev.Op, &ev.Matched, &ev.Bytes, &partial, &ev.Outcome); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			ev.Time = t
		}
		ev.Partial = partial != 0
		events = append(events, ev)
	}
	return events, rows.Err()
}

// PruneEvents deletes history rows older than cutoff and returns how
// many were removed.
func PruneEvents(db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM read_history WHERE ts < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return res.RowsAffected()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

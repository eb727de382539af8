package db

import (
	"database/sql"
	"fmt"
)

const (
	createReadHistoryTable = `
CREATE TABLE IF NOT EXISTS read_history (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    ts      TEXT    NOT NULL,
    path    TEXT    NOT NULL,
    qid     TEXT    NOT NULL,
    op      TEXT    NOT NULL,
    matched INTEGER NOT NULL DEFAULT 0,
    bytes   INTEGER NOT NULL DEFAULT 0,
    partial INTEGER NOT NULL DEFAULT 0,
    outcome TEXT    NOT NULL DEFAULT 'ok'
)`

	createReadHistoryTsIndex = `CREATE INDEX IF NOT EXISTS idx_read_history_ts ON read_history(ts)`
)

// Migrate creates all tables and indexes if they don't exist.
func Migrate(db *sql.DB) error {
	statements := []string{
		createReadHistoryTable,
		createReadHistoryTsIndex,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

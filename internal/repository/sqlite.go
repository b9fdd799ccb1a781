// Package repository persists the credits ledger, download history, and
// API keys in SQLite.
package repository

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is the storage format for timestamps: fixed-width UTC
// RFC3339 so lexicographic comparison inside SQL matches chronological
// order.
const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// OpenDB opens (and bootstraps) the SQLite database at path. Use
// ":memory:" for tests.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credits (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			trans_no    TEXT NOT NULL UNIQUE,
			user_uuid   TEXT NOT NULL,
			trans_type  TEXT NOT NULL,
			credits     INTEGER NOT NULL,
			order_no    TEXT,
			expired_at  TEXT,
			description TEXT,
			resolution  TEXT,
			video_url   TEXT,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_credits_user ON credits(user_uuid);
		CREATE INDEX IF NOT EXISTS idx_credits_order ON credits(order_no);

		CREATE TABLE IF NOT EXISTS download_history (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			download_no      TEXT NOT NULL UNIQUE,
			user_uuid        TEXT,
			platform         TEXT NOT NULL,
			video_url        TEXT NOT NULL,
			original_url     TEXT,
			resolution       TEXT,
			quality          TEXT,
			file_name        TEXT,
			file_size        INTEGER,
			credits_consumed INTEGER NOT NULL,
			status           TEXT NOT NULL,
			username         TEXT,
			status_id        TEXT,
			video_id         TEXT,
			description      TEXT,
			created_at       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_user ON download_history(user_uuid);

		CREATE TABLE IF NOT EXISTS api_keys (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			key_id      TEXT NOT NULL UNIQUE,
			secret_hash TEXT NOT NULL,
			user_uuid   TEXT NOT NULL,
			title       TEXT,
			premium     INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			revoked_at  TEXT
		);
	`)
	return err
}

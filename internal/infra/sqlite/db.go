// Package sqlite implements the persistent history store for completed
// programming and scoring runs on an embedded SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; serialize access through a single
	// connection instead of racing on SQLITE_BUSY.
	handle.SetMaxOpenConns(1)

	db := &DB{db: handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error { return db.db.Close() }

// migrate applies the schema migration statements. Each string is a
// single SQL statement (SQLite executes one at a time).
func (db *DB) migrate() error {
	for _, stmt := range migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS programming_results (
			id                 TEXT PRIMARY KEY,
			channel_id         TEXT NOT NULL,
			profile_id         TEXT NOT NULL,
			programs_json      TEXT NOT NULL,
			total_score        REAL NOT NULL DEFAULT 0,
			average_score      REAL NOT NULL DEFAULT 0,
			total_duration_min REAL NOT NULL DEFAULT 0,
			iteration          INTEGER NOT NULL DEFAULT 0,
			total_iterations   INTEGER NOT NULL DEFAULT 0,
			iterations_json    TEXT,
			time_blocks_json   TEXT,
			ai_response        TEXT,
			created_at         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_channel ON programming_results(channel_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_results_created ON programming_results(created_at)`,
	}
}

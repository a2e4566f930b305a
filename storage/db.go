package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	conn *sql.DB
}

// Open opens the history database in dir and initializes the schema
func Open(dir string) (*DB, error) {
	dbPath := filepath.Join(dir, "history.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the database schema
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp_ms INTEGER NOT NULL,
		session_id TEXT NOT NULL,

		-- block, unblock or record
		kind TEXT NOT NULL,
		-- user or shortcut for block/unblock, empty for record
		cause TEXT NOT NULL DEFAULT '',

		-- recorded shortcut, zero for state changes
		shortcut TEXT NOT NULL DEFAULT '',
		modifiers INTEGER NOT NULL DEFAULT 0,
		key_code INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp_ms);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`

	_, err := db.conn.Exec(schema)
	return err
}

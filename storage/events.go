package storage

import (
	"fmt"
	"time"
)

// Event kinds
const (
	KindBlock   = "block"
	KindUnblock = "unblock"
	KindRecord  = "record"
)

// Event is one row of blocker history
type Event struct {
	ID        int64
	Timestamp time.Time
	SessionID string
	Kind      string
	Cause     string
	Shortcut  string
	Modifiers uint64
	KeyCode   uint16
}

// SaveEvent saves an event to the database
func (db *DB) SaveEvent(e *Event) error {
	query := `
		INSERT INTO events (timestamp_ms, session_id, kind, cause, shortcut, modifiers, key_code)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query,
		e.Timestamp.UnixMilli(), e.SessionID, e.Kind, e.Cause,
		e.Shortcut, int64(e.Modifiers), int64(e.KeyCode),
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	e.ID = id
	return nil
}

// GetEvents retrieves events newest first with pagination
func (db *DB) GetEvents(limit, offset int) ([]Event, error) {
	query := `
		SELECT id, timestamp_ms, session_id, kind, cause, shortcut, modifiers, key_code
		FROM events
		ORDER BY timestamp_ms DESC, id DESC
		LIMIT ? OFFSET ?
	`
	return db.queryEvents(query, limit, offset)
}

// GetEventsSince retrieves events at or after since, oldest first
func (db *DB) GetEventsSince(since time.Time) ([]Event, error) {
	query := `
		SELECT id, timestamp_ms, session_id, kind, cause, shortcut, modifiers, key_code
		FROM events
		WHERE timestamp_ms >= ?
		ORDER BY timestamp_ms ASC, id ASC
	`
	return db.queryEvents(query, since.UnixMilli())
}

func (db *DB) queryEvents(query string, args ...any) ([]Event, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts, mods, code int64

		err := rows.Scan(&e.ID, &ts, &e.SessionID, &e.Kind, &e.Cause, &e.Shortcut, &mods, &code)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		e.Timestamp = time.UnixMilli(ts)
		e.Modifiers = uint64(mods)
		e.KeyCode = uint16(code)
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetEventCount returns the total number of events
func (db *DB) GetEventCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM events").Scan(&count)
	return count, err
}

// PruneBefore deletes events older than cutoff and returns how many were
// removed
func (db *DB) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM events WHERE timestamp_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

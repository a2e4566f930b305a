package storage

import (
	"fmt"
	"time"
)

// DailyStats represents statistics for a single day
type DailyStats struct {
	Date             string
	Blocks           int
	ShortcutUnblocks int
	Recordings       int
}

// OverallStats represents statistics over a time range
type OverallStats struct {
	Blocks           int
	UserUnblocks     int
	ShortcutUnblocks int
	Recordings       int
	BlockedTime      time.Duration
	LastEvent        time.Time
}

// GetDailyStats retrieves statistics grouped by local date since the given time
func (db *DB) GetDailyStats(since time.Time) ([]DailyStats, error) {
	query := `
		SELECT
			date(timestamp_ms / 1000, 'unixepoch', 'localtime') AS day,
			SUM(CASE WHEN kind = 'block' THEN 1 ELSE 0 END) AS blocks,
			SUM(CASE WHEN kind = 'unblock' AND cause = 'shortcut' THEN 1 ELSE 0 END) AS shortcut_unblocks,
			SUM(CASE WHEN kind = 'record' THEN 1 ELSE 0 END) AS recordings
		FROM events
		WHERE timestamp_ms >= ?
		GROUP BY day
		ORDER BY day DESC
	`

	rows, err := db.conn.Query(query, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var s DailyStats
		if err := rows.Scan(&s.Date, &s.Blocks, &s.ShortcutUnblocks, &s.Recordings); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetOverallStats summarizes events since the given time. A block still
// open at the end of the range is counted up to now; one left open by a
// session that ended is closed at the next session's first event.
func (db *DB) GetOverallStats(since, now time.Time) (*OverallStats, error) {
	events, err := db.GetEventsSince(since)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}
	return summarize(events, now), nil
}

func summarize(events []Event, now time.Time) *OverallStats {
	var stats OverallStats
	var blockedSince time.Time
	var session string
	open := false

	for _, e := range events {
		if open && e.SessionID != session {
			stats.BlockedTime += e.Timestamp.Sub(blockedSince)
			open = false
		}
		session = e.SessionID
		stats.LastEvent = e.Timestamp

		switch e.Kind {
		case KindBlock:
			stats.Blocks++
			if !open {
				blockedSince = e.Timestamp
				open = true
			}
		case KindUnblock:
			if e.Cause == "shortcut" {
				stats.ShortcutUnblocks++
			} else {
				stats.UserUnblocks++
			}
			if open {
				stats.BlockedTime += e.Timestamp.Sub(blockedSince)
				open = false
			}
		case KindRecord:
			stats.Recordings++
		}
	}

	if open && now.After(blockedSince) {
		stats.BlockedTime += now.Sub(blockedSince)
	}

	return &stats
}

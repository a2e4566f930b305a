package storage

import (
	"testing"
	"time"

	"markestedt/keyblocker/keyboard"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndGetEvents(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := []Event{
		{Timestamp: base, SessionID: "s1", Kind: KindBlock, Cause: "user"},
		{Timestamp: base.Add(time.Minute), SessionID: "s1", Kind: KindRecord, Shortcut: "Ctrl+V",
			Modifiers: uint64(keyboard.ModControl), KeyCode: keyboard.KeyV},
	}
	for i := range in {
		if err := db.SaveEvent(&in[i]); err != nil {
			t.Fatalf("SaveEvent() error = %v", err)
		}
		if in[i].ID == 0 {
			t.Fatal("SaveEvent() did not set ID")
		}
	}

	got, err := db.GetEvents(10, 0)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetEvents() returned %d events, want 2", len(got))
	}
	// Newest first.
	if got[0].Kind != KindRecord || got[0].KeyCode != keyboard.KeyV || got[0].Modifiers != uint64(keyboard.ModControl) {
		t.Fatalf("GetEvents()[0] = %+v", got[0])
	}
	if !got[1].Timestamp.Equal(base) {
		t.Fatalf("GetEvents()[1].Timestamp = %v, want %v", got[1].Timestamp, base)
	}

	count, err := db.GetEventCount()
	if err != nil || count != 2 {
		t.Fatalf("GetEventCount() = %d, %v; want 2", count, err)
	}

	paged, err := db.GetEvents(1, 1)
	if err != nil || len(paged) != 1 || paged[0].Kind != KindBlock {
		t.Fatalf("GetEvents(1, 1) = %+v, %v", paged, err)
	}
}

func TestPruneBefore(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	for _, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour} {
		e := Event{Timestamp: now.Add(-age), SessionID: "s", Kind: KindBlock, Cause: "user"}
		if err := db.SaveEvent(&e); err != nil {
			t.Fatalf("SaveEvent() error = %v", err)
		}
	}

	n, err := db.PruneBefore(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("PruneBefore() removed %d, want 2", n)
	}
	if count, _ := db.GetEventCount(); count != 1 {
		t.Fatalf("GetEventCount() = %d after prune, want 1", count)
	}
}

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }

	events := []Event{
		{Timestamp: at(0), SessionID: "a", Kind: KindBlock, Cause: "user"},
		{Timestamp: at(10), SessionID: "a", Kind: KindUnblock, Cause: "shortcut"},
		{Timestamp: at(20), SessionID: "a", Kind: KindRecord},
		{Timestamp: at(30), SessionID: "a", Kind: KindBlock, Cause: "user"},
		{Timestamp: at(31), SessionID: "a", Kind: KindBlock, Cause: "user"},
		// session a ended while blocking; closed at b's first event
		{Timestamp: at(60), SessionID: "b", Kind: KindBlock, Cause: "user"},
		{Timestamp: at(65), SessionID: "b", Kind: KindUnblock, Cause: "user"},
		{Timestamp: at(70), SessionID: "b", Kind: KindBlock, Cause: "user"},
	}

	got := summarize(events, at(75))

	if got.Blocks != 5 || got.ShortcutUnblocks != 1 || got.UserUnblocks != 1 || got.Recordings != 1 {
		t.Fatalf("counts = %+v", got)
	}
	// 10 + 30 + 5 + 5 minutes
	if want := 50 * time.Minute; got.BlockedTime != want {
		t.Fatalf("BlockedTime = %v, want %v", got.BlockedTime, want)
	}
	if !got.LastEvent.Equal(at(70)) {
		t.Fatalf("LastEvent = %v, want %v", got.LastEvent, at(70))
	}
}

func TestGetDailyStats(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	for _, e := range []Event{
		{Timestamp: now, SessionID: "s", Kind: KindBlock, Cause: "user"},
		{Timestamp: now, SessionID: "s", Kind: KindUnblock, Cause: "shortcut"},
		{Timestamp: now, SessionID: "s", Kind: KindRecord},
	} {
		if err := db.SaveEvent(&e); err != nil {
			t.Fatalf("SaveEvent() error = %v", err)
		}
	}

	stats, err := db.GetDailyStats(now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetDailyStats() error = %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("GetDailyStats() returned %d days, want 1", len(stats))
	}
	s := stats[0]
	if s.Blocks != 1 || s.ShortcutUnblocks != 1 || s.Recordings != 1 {
		t.Fatalf("daily stats = %+v", s)
	}
}

func TestRecorderWritesNotifications(t *testing.T) {
	db := openTestDB(t)
	r := NewRecorder(db, "session-1")

	r.OnStateChanged(keyboard.StateChange{Blocking: true, Cause: keyboard.CauseUser, Changed: true})
	r.OnStateChanged(keyboard.StateChange{Blocking: false, Cause: keyboard.CauseShortcut, Changed: true})
	// Shortcut pressed while already unblocked.
	r.OnStateChanged(keyboard.StateChange{Blocking: false, Cause: keyboard.CauseShortcut, Changed: false})
	r.OnShortcutRecorded(keyboard.DefaultShortcut)
	r.Close()

	// Notifications after Close are dropped.
	r.OnStateChanged(keyboard.StateChange{Blocking: true, Changed: true})
	r.Close()

	events, err := db.GetEventsSince(time.Time{})
	if err != nil {
		t.Fatalf("GetEventsSince() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("recorded %d events, want 3", len(events))
	}

	want := []struct{ kind, cause, shortcut string }{
		{KindBlock, "user", ""},
		{KindUnblock, "shortcut", ""},
		{KindRecord, "", "Shift+Cmd+Q"},
	}
	for i, w := range want {
		e := events[i]
		if e.Kind != w.kind || e.Cause != w.cause || e.Shortcut != w.shortcut || e.SessionID != "session-1" {
			t.Errorf("event %d = %+v, want %+v", i, e, w)
		}
	}
}

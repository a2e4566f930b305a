package storage

import (
	"log/slog"
	"sync"
	"time"

	"markestedt/keyblocker/keyboard"
)

// Recorder writes blocker notifications to the history database. It
// implements keyboard.Notifier; notifications are queued and written on a
// background goroutine so the event tap thread never waits on SQLite.
type Recorder struct {
	db        *DB
	sessionID string
	now       func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewRecorder starts a recorder tagging rows with sessionID
func NewRecorder(db *DB, sessionID string) *Recorder {
	r := &Recorder{
		db:        db,
		sessionID: sessionID,
		now:       time.Now,
		queue:     make(chan Event, 64),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		if err := r.db.SaveEvent(&e); err != nil {
			slog.Error("Failed to record history event", "kind", e.Kind, "error", err)
		}
	}
}

// OnStateChanged records a block or unblock. Requests that left the state
// as it was are not recorded.
func (r *Recorder) OnStateChanged(c keyboard.StateChange) {
	if !c.Changed {
		return
	}
	kind := KindUnblock
	if c.Blocking {
		kind = KindBlock
	}
	r.push(Event{Kind: kind, Cause: c.Cause.String()})
}

// OnShortcutRecorded records a newly captured shortcut
func (r *Recorder) OnShortcutRecorded(s keyboard.Shortcut) {
	r.push(Event{
		Kind:      KindRecord,
		Shortcut:  s.String(),
		Modifiers: uint64(s.Modifiers),
		KeyCode:   s.KeyCode,
	})
}

func (r *Recorder) push(e Event) {
	e.Timestamp = r.now()
	e.SessionID = r.sessionID

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	select {
	case r.queue <- e:
	default:
		slog.Warn("History queue full, dropping event", "kind", e.Kind)
	}
}

// Close flushes queued events and stops the writer
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
}

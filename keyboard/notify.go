package keyboard

import "slices"

// Cause identifies what changed the blocking state
type Cause int

const (
	CauseUser     Cause = iota // explicit SetBlocking call
	CauseShortcut              // emergency shortcut pressed
)

func (c Cause) String() string {
	switch c {
	case CauseShortcut:
		return "shortcut"
	default:
		return "user"
	}
}

// StateChange describes a blocking state request. Changed is false when the
// blocker was already in the requested state.
type StateChange struct {
	Blocking bool
	Cause    Cause
	Changed  bool
}

// Notifier receives state notifications from the blocker. Notifications
// arrive one at a time in the order the state changed, possibly on the
// event tap thread or on a goroutine other than the one that made the
// change. Methods must return quickly; they may call back into the Blocker.
type Notifier interface {
	OnStateChanged(StateChange)
	OnShortcutRecorded(Shortcut)
}

// NotifierFuncs adapts plain functions to a Notifier. Nil fields are skipped.
type NotifierFuncs struct {
	StateChanged     func(StateChange)
	ShortcutRecorded func(Shortcut)
}

func (f NotifierFuncs) OnStateChanged(c StateChange) {
	if f.StateChanged != nil {
		f.StateChanged(c)
	}
}

func (f NotifierFuncs) OnShortcutRecorded(s Shortcut) {
	if f.ShortcutRecorded != nil {
		f.ShortcutRecorded(s)
	}
}

// queueLocked appends a delivery to the notification queue. b.mu must be held,
// so the queue order is the order of the state changes.
func (b *Blocker) queueLocked(deliver func()) {
	b.pending = append(b.pending, deliver)
}

// dispatch delivers queued notifications unless another goroutine already
// is. Deliveries run outside b.mu, so notifiers may call back in; anything
// they queue is delivered after the current notification returns.
func (b *Blocker) dispatch() {
	b.mu.Lock()
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true

	for len(b.pending) > 0 {
		deliver := b.pending[0]
		b.pending = slices.Delete(b.pending, 0, 1)
		b.mu.Unlock()
		deliver()
		b.mu.Lock()
	}

	b.dispatching = false
	b.mu.Unlock()
}

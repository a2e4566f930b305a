package keyboard

import (
	"log/slog"

	"markestedt/keyblocker/platform"
)

// handle is the platform.Handler installed on the tap. Notifications are
// dispatched after the gate is released.
func (b *Blocker) handle(evt platform.Event) platform.Decision {
	b.gate.RLock()
	if !b.open {
		b.gate.RUnlock()
		return platform.Pass
	}
	decision, notify := b.classify(evt)
	b.gate.RUnlock()

	if notify {
		b.dispatch()
	}
	return decision
}

// classify decides one event. Priority: recording, emergency shortcut,
// blocking disabled, blockable category. It reports whether notifications
// were queued.
func (b *Blocker) classify(evt platform.Event) (platform.Decision, bool) {
	b.mu.Lock()

	if b.recording {
		// Everything passes while recording; only a key-down completes it.
		if evt.Type != platform.KeyDown {
			b.mu.Unlock()
			return platform.Pass, false
		}

		recorded := Shortcut{
			Modifiers: Modifier(evt.Flags).Clean(),
			KeyCode:   evt.KeyCode,
		}
		b.shortcut = recorded
		b.recording = false
		snap := b.snapshotLocked()
		observers, onRecorded := b.observers, b.onRecorded
		b.queueLocked(func() {
			for _, n := range observers {
				n.OnShortcutRecorded(recorded)
			}
			if onRecorded != nil {
				onRecorded(recorded)
			}
		})
		b.mu.Unlock()

		b.saver.enqueue(snap)
		slog.Info("Shortcut recorded",
			"shortcut", recorded.String(),
			"flags", uint64(recorded.Modifiers),
			"keycode", recorded.KeyCode)
		return platform.Pass, true
	}

	if b.shortcutEnabled && evt.Type == platform.KeyDown &&
		Matches(Modifier(evt.Flags), evt.KeyCode, b.shortcut) {
		change := StateChange{Blocking: false, Cause: CauseShortcut, Changed: b.blocking}
		observers := b.observers
		b.queueLocked(func() {
			for _, n := range observers {
				n.OnStateChanged(change)
			}
		})

		if !change.Changed {
			b.mu.Unlock()
			slog.Debug("Emergency shortcut pressed while not blocking")
			return platform.Pass, true
		}

		b.blocking = false
		snap := b.snapshotLocked()
		slog.Info("Emergency shortcut detected, disabling block")
		b.mu.Unlock()

		b.saver.enqueue(snap)
		return platform.Pass, true
	}

	blocking := b.blocking
	b.mu.Unlock()

	if !blocking {
		return platform.Pass, false
	}

	switch evt.Type {
	case platform.KeyDown, platform.KeyUp, platform.FlagsChanged, platform.SystemDefined:
		slog.Debug("Keyboard event blocked", "type", evt.Type.String(), "keycode", evt.KeyCode)
		return platform.Suppress, false
	default:
		return platform.Pass, false
	}
}

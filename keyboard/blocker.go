// Package keyboard implements the keyboard blocking state machine: the
// interception context shared between the event tap thread and callers,
// per-event classification, the emergency shortcut and one-shot shortcut
// recording.
package keyboard

import (
	"fmt"
	"log/slog"
	"sync"

	"markestedt/keyblocker/platform"
)

// Blocker owns the interception state and exposes the control API. All
// methods are safe for concurrent use.
type Blocker struct {
	tap   platform.EventTap
	saver *saver

	// life serializes Start and Stop.
	life sync.Mutex

	// gate is held for reading while an event is classified. Stop takes it
	// for writing after the tap is unregistered, so no classification is in
	// flight once Stop returns.
	gate sync.RWMutex
	open bool

	mu              sync.Mutex
	started         bool
	blocking        bool
	shortcutEnabled bool
	shortcut        Shortcut
	recording       bool
	onRecorded      func(Shortcut)
	observers       []Notifier
	seq             uint64

	// pending holds notifications in state-change order; dispatching is
	// set while one goroutine drains it.
	pending     []func()
	dispatching bool
}

// New creates a blocker that intercepts events through tap and persists its
// settings in store. A nil store keeps settings in memory.
func New(tap platform.EventTap, store Store) *Blocker {
	if store == nil {
		store = newMemoryStore()
	}
	return &Blocker{
		tap:   tap,
		saver: newSaver(store),
	}
}

// Start loads persisted settings and registers the event tap. Blocking
// always starts disabled, whatever was saved.
func (b *Blocker) Start() error {
	b.life.Lock()
	defer b.life.Unlock()

	if b.running() {
		return ErrAlreadyRunning
	}

	s, err := b.saver.store.Load()
	if err != nil {
		slog.Error("Failed to load settings, using defaults", "error", err)
		s = DefaultSettings()
	}

	b.mu.Lock()
	b.blocking = false
	b.shortcutEnabled = s.ShortcutEnabled
	b.shortcut = s.Shortcut
	b.recording = false
	b.started = true
	b.mu.Unlock()

	b.saver.start()
	b.setGate(true)

	if err := b.tap.Start(b.handle); err != nil {
		b.setGate(false)
		b.saver.stop()
		b.mu.Lock()
		b.started = false
		b.mu.Unlock()
		return registrationError(err)
	}

	slog.Info("Keyboard event tap started",
		"shortcut", s.Shortcut.String(),
		"shortcut_enabled", s.ShortcutEnabled)
	return nil
}

// Stop unregisters the event tap, waits for any in-flight event, flushes
// pending saves and returns the blocker to its never-started condition.
// Stop must not be called from a Notifier.
func (b *Blocker) Stop() error {
	b.life.Lock()
	defer b.life.Unlock()

	if !b.running() {
		return nil
	}

	tapErr := b.tap.Stop()
	b.setGate(false)
	b.saver.stop()

	b.mu.Lock()
	b.started = false
	b.blocking = false
	b.recording = false
	b.mu.Unlock()

	if tapErr != nil {
		return fmt.Errorf("failed to stop event tap: %w", tapErr)
	}

	slog.Info("Keyboard blocker resources cleaned up")
	return nil
}

func (b *Blocker) running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

func (b *Blocker) setGate(open bool) {
	b.gate.Lock()
	b.open = open
	b.gate.Unlock()
}

// SetBlocking enables or disables suppression and saves the settings before
// returning. It is a no-op before Start.
func (b *Blocker) SetBlocking(enabled bool) {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	change := StateChange{Blocking: enabled, Cause: CauseUser, Changed: b.blocking != enabled}
	b.blocking = enabled
	snap := b.snapshotLocked()
	observers := b.observers
	b.queueLocked(func() {
		for _, n := range observers {
			n.OnStateChanged(change)
		}
	})
	slog.Info("Keyboard block status updated", "status", statusLabel(enabled))
	b.mu.Unlock()

	b.saver.write(snap)
	b.dispatch()
}

// IsBlocking reports whether events are being suppressed
func (b *Blocker) IsBlocking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started && b.blocking
}

// SetShortcutEnabled turns the emergency shortcut on or off
func (b *Blocker) SetShortcutEnabled(enabled bool) {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.shortcutEnabled = enabled
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.saver.write(snap)
	slog.Info("Emergency shortcut toggled", "enabled", enabled)
}

// IsShortcutEnabled reports whether the emergency shortcut is evaluated
func (b *Blocker) IsShortcutEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started && b.shortcutEnabled
}

// SetShortcut replaces the emergency shortcut
func (b *Blocker) SetShortcut(s Shortcut) {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.shortcut = s
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.saver.write(snap)
	slog.Info("Emergency shortcut updated", "shortcut", s.String())
}

// Shortcut returns the configured emergency shortcut, or the zero value
// before Start
func (b *Blocker) Shortcut() Shortcut {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return Shortcut{}
	}
	return b.shortcut
}

// Settings returns a consistent snapshot of the persisted fields
func (b *Blocker) Settings() Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return Settings{}
	}
	return b.settingsLocked()
}

// ApplySettings adopts externally edited shortcut fields without saving
// them back. The blocking field is ignored.
func (b *Blocker) ApplySettings(s Settings) {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	changed := b.shortcutEnabled != s.ShortcutEnabled || b.shortcut != s.Shortcut
	b.shortcutEnabled = s.ShortcutEnabled
	b.shortcut = s.Shortcut
	b.mu.Unlock()

	if changed {
		slog.Info("Settings reloaded",
			"shortcut", s.Shortcut.String(),
			"shortcut_enabled", s.ShortcutEnabled)
	}
}

// SetOnRecorded installs the callback invoked when a recording completes.
// The last call wins; it may be called before or after Start.
func (b *Blocker) SetOnRecorded(fn func(Shortcut)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRecorded = fn
}

// Subscribe adds an observer for state changes and recorded shortcuts
func (b *Blocker) Subscribe(n Notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	observers := make([]Notifier, len(b.observers), len(b.observers)+1)
	copy(observers, b.observers)
	b.observers = append(observers, n)
}

// StartRecording captures the next key-down as the new emergency shortcut.
// There is no timeout.
func (b *Blocker) StartRecording() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	b.recording = true
	slog.Debug("Recording mode: ON (one-shot)")
}

// IsRecording reports whether a recording is pending
func (b *Blocker) IsRecording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started && b.recording
}

func (b *Blocker) settingsLocked() Settings {
	return Settings{
		ShortcutEnabled: b.shortcutEnabled,
		Shortcut:        b.shortcut,
		BlockingEnabled: b.blocking,
	}
}

func (b *Blocker) snapshotLocked() snapshot {
	b.seq++
	return snapshot{seq: b.seq, settings: b.settingsLocked()}
}

func statusLabel(blocking bool) string {
	if blocking {
		return "ACTIVE"
	}
	return "INACTIVE"
}

package keyboard

import (
	"errors"
	"sync"
	"testing"

	"markestedt/keyblocker/platform"
)

// fakeTap records the installed handler so tests can deliver events
type fakeTap struct {
	mu       sync.Mutex
	handler  platform.Handler
	startErr error
	starts   int
	stops    int
}

func (f *fakeTap) Start(h platform.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.handler = h
	return nil
}

func (f *fakeTap) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.handler = nil
	return nil
}

func (f *fakeTap) deliver(t *testing.T, evt platform.Event) platform.Decision {
	t.Helper()
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		t.Fatalf("deliver(%v): tap not started", evt)
	}
	return h(evt)
}

// memStore is an in-memory Store that records every save
type memStore struct {
	mu      sync.Mutex
	loaded  Settings
	loadErr error
	saveErr error
	saves   []Settings
}

func (m *memStore) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return Settings{}, m.loadErr
	}
	return m.loaded, nil
}

func (m *memStore) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, s)
	return nil
}

func (m *memStore) last(t *testing.T) Settings {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saves) == 0 {
		t.Fatal("no settings saved")
	}
	return m.saves[len(m.saves)-1]
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

// recorder collects notifications
type recorder struct {
	mu       sync.Mutex
	changes  []StateChange
	recorded []Shortcut
}

func (r *recorder) OnStateChanged(c StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) OnShortcutRecorded(s Shortcut) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, s)
}

func (r *recorder) snapshot() ([]StateChange, []Shortcut) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StateChange(nil), r.changes...), append([]Shortcut(nil), r.recorded...)
}

func startBlocker(t *testing.T, loaded Settings) (*Blocker, *fakeTap, *memStore) {
	t.Helper()
	tap := &fakeTap{}
	store := &memStore{loaded: loaded}
	b := New(tap, store)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := b.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return b, tap, store
}

func keyDown(mods Modifier, code uint16) platform.Event {
	return platform.Event{Type: platform.KeyDown, KeyCode: code, Flags: uint64(mods)}
}

var errBoom = errors.New("boom")

package keyboard

import (
	"sync"
	"testing"

	"markestedt/keyblocker/platform"
)

const capsLockFlag = 0x00010000

var allEventTypes = []platform.EventType{
	platform.KeyDown,
	platform.KeyUp,
	platform.FlagsChanged,
	platform.SystemDefined,
	platform.Other,
}

func TestClassifyBlockingDisabledPassesEverything(t *testing.T) {
	b, tap, _ := startBlocker(t, DefaultSettings())
	b.SetShortcutEnabled(false)

	for _, typ := range allEventTypes {
		evt := platform.Event{Type: typ, KeyCode: KeyA, Flags: uint64(ModCommand)}
		if got := tap.deliver(t, evt); got != platform.Pass {
			t.Errorf("%v with blocking off: decision = %v, want pass", typ, got)
		}
	}
}

func TestClassifyBlockingEnabledSuppressesKeyboardCategories(t *testing.T) {
	b, tap, _ := startBlocker(t, DefaultSettings())
	b.SetBlocking(true)

	tests := []struct {
		typ  platform.EventType
		want platform.Decision
	}{
		{platform.KeyDown, platform.Suppress},
		{platform.KeyUp, platform.Suppress},
		{platform.FlagsChanged, platform.Suppress},
		{platform.SystemDefined, platform.Suppress},
		{platform.Other, platform.Pass},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			got := tap.deliver(t, platform.Event{Type: tt.typ, KeyCode: KeyA})
			if got != tt.want {
				t.Fatalf("decision = %v, want %v", got, tt.want)
			}
		})
	}
}

// Scenario A: the emergency shortcut unblocks even with CapsLock held.
func TestClassifyEmergencyShortcut(t *testing.T) {
	b, tap, _ := startBlocker(t, Settings{
		ShortcutEnabled: true,
		Shortcut:        Shortcut{Modifiers: ModCommand | ModShift, KeyCode: 12},
	})
	obs := &recorder{}
	b.SetBlocking(true)
	b.Subscribe(obs)

	evt := platform.Event{
		Type:    platform.KeyDown,
		KeyCode: 12,
		Flags:   uint64(ModCommand|ModShift) | capsLockFlag,
	}
	if got := tap.deliver(t, evt); got != platform.Pass {
		t.Fatalf("decision = %v, want pass", got)
	}
	if b.IsBlocking() {
		t.Fatal("IsBlocking() = true after emergency shortcut")
	}

	changes, _ := obs.snapshot()
	if len(changes) != 1 || changes[0] != (StateChange{Blocking: false, Cause: CauseShortcut, Changed: true}) {
		t.Fatalf("changes = %v, want one shortcut unblock", changes)
	}

	// Subsequent events pass.
	if got := tap.deliver(t, keyDown(0, KeyA)); got != platform.Pass {
		t.Fatalf("after unblock: decision = %v, want pass", got)
	}
}

func TestClassifyShortcutWhileNotBlocking(t *testing.T) {
	b, tap, store := startBlocker(t, DefaultSettings())
	obs := &recorder{}
	b.Subscribe(obs)

	if got := tap.deliver(t, keyDown(ModCommand|ModShift, KeyQ)); got != platform.Pass {
		t.Fatalf("decision = %v, want pass", got)
	}

	changes, _ := obs.snapshot()
	if len(changes) != 1 || changes[0] != (StateChange{Blocking: false, Cause: CauseShortcut, Changed: false}) {
		t.Fatalf("changes = %v, want one unchanged shortcut notification", changes)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if store.count() != 0 {
		t.Fatalf("store saved %d times, want 0", store.count())
	}
}

func TestClassifyShortcutRequiresExactModifiers(t *testing.T) {
	b, tap, _ := startBlocker(t, DefaultSettings())
	b.SetBlocking(true)

	tests := []struct {
		name string
		evt  platform.Event
	}{
		{"superset", keyDown(ModCommand|ModShift|ModOption, KeyQ)},
		{"subset", keyDown(ModCommand, KeyQ)},
		{"wrong key", keyDown(ModCommand|ModShift, KeyW)},
		{"key up", platform.Event{Type: platform.KeyUp, KeyCode: KeyQ, Flags: uint64(ModCommand | ModShift)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tap.deliver(t, tt.evt); got != platform.Suppress {
				t.Fatalf("decision = %v, want suppress", got)
			}
			if !b.IsBlocking() {
				t.Fatal("blocking cleared by non-matching event")
			}
		})
	}
}

// Scenario C: with the shortcut disabled nothing can unblock.
func TestClassifyShortcutDisabled(t *testing.T) {
	b, tap, _ := startBlocker(t, DefaultSettings())
	b.SetShortcutEnabled(false)
	b.SetBlocking(true)

	if got := tap.deliver(t, keyDown(0, 40)); got != platform.Suppress {
		t.Fatalf("decision = %v, want suppress", got)
	}
	if got := tap.deliver(t, keyDown(ModCommand|ModShift, KeyQ)); got != platform.Suppress {
		t.Fatalf("shortcut while disabled: decision = %v, want suppress", got)
	}
	if !b.IsBlocking() {
		t.Fatal("blocking cleared while shortcut disabled")
	}
}

// Scenario B: recording captures the next key-down and lets it through.
func TestClassifyRecording(t *testing.T) {
	b, tap, store := startBlocker(t, DefaultSettings())
	obs := &recorder{}
	b.Subscribe(obs)

	var calls []Shortcut
	b.SetOnRecorded(func(s Shortcut) { calls = append(calls, s) })

	b.StartRecording()
	b.StartRecording() // idempotent

	evt := platform.Event{Type: platform.KeyDown, KeyCode: KeyV, Flags: uint64(ModControl) | capsLockFlag}
	if got := tap.deliver(t, evt); got != platform.Pass {
		t.Fatalf("decision = %v, want pass", got)
	}

	want := Shortcut{Modifiers: ModControl, KeyCode: KeyV}
	if got := b.Shortcut(); got != want {
		t.Fatalf("Shortcut() = %v, want %v", got, want)
	}
	if b.IsRecording() {
		t.Fatal("IsRecording() = true after capture")
	}
	if len(calls) != 1 || calls[0] != want {
		t.Fatalf("onRecorded calls = %v, want [%v]", calls, want)
	}
	if _, recorded := obs.snapshot(); len(recorded) != 1 || recorded[0] != want {
		t.Fatalf("observer recorded = %v, want [%v]", recorded, want)
	}

	// The next key-down is evaluated normally again.
	tap.deliver(t, keyDown(ModCommand, KeyA))
	if len(calls) != 1 {
		t.Fatalf("onRecorded called %d times, want 1", len(calls))
	}

	// Stop flushes the hand-off queue.
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := store.last(t).Shortcut; got != want {
		t.Fatalf("saved shortcut = %v, want %v", got, want)
	}
}

func TestClassifyRecordingTakesPrecedence(t *testing.T) {
	b, tap, _ := startBlocker(t, DefaultSettings())
	b.SetBlocking(true)
	b.StartRecording()

	// Non key-down events pass while recording, even when blocking.
	for _, typ := range []platform.EventType{platform.KeyUp, platform.FlagsChanged, platform.SystemDefined} {
		if got := tap.deliver(t, platform.Event{Type: typ, KeyCode: KeyA}); got != platform.Pass {
			t.Fatalf("%v while recording: decision = %v, want pass", typ, got)
		}
	}
	if !b.IsRecording() {
		t.Fatal("recording ended by non key-down event")
	}

	// Pressing the current shortcut records it instead of unblocking.
	if got := tap.deliver(t, keyDown(ModCommand|ModShift, KeyQ)); got != platform.Pass {
		t.Fatalf("decision = %v, want pass", got)
	}
	if !b.IsBlocking() {
		t.Fatal("shortcut fired while recording")
	}
	if b.IsRecording() {
		t.Fatal("recording still pending")
	}

	// Blocking resumes for the following event.
	if got := tap.deliver(t, keyDown(0, KeyA)); got != platform.Suppress {
		t.Fatalf("after recording: decision = %v, want suppress", got)
	}
}

func TestSetOnRecordedLastWriterWins(t *testing.T) {
	tap := &fakeTap{}
	b := New(tap, nil)

	first, second := 0, 0
	b.SetOnRecorded(func(Shortcut) { first++ })
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	b.StartRecording()
	tap.deliver(t, keyDown(ModOption, KeyR))

	b.SetOnRecorded(func(Shortcut) { second++ })
	b.StartRecording()
	tap.deliver(t, keyDown(ModOption, KeyT))

	if first != 1 || second != 1 {
		t.Fatalf("first = %d, second = %d, want 1 and 1", first, second)
	}
}

func TestNotifierMayCallBack(t *testing.T) {
	b, tap, _ := startBlocker(t, DefaultSettings())

	var sawBlocking, sawRecording bool
	b.Subscribe(NotifierFuncs{
		StateChanged: func(StateChange) {
			sawBlocking = b.IsBlocking()
		},
		ShortcutRecorded: func(s Shortcut) {
			sawRecording = b.IsRecording()
			b.SetShortcutEnabled(true)
		},
	})

	b.SetBlocking(true)
	tap.deliver(t, keyDown(ModCommand|ModShift, KeyQ))
	if sawBlocking {
		t.Fatal("observer saw blocking still on after shortcut")
	}

	b.StartRecording()
	tap.deliver(t, keyDown(ModControl, KeyD))
	if sawRecording {
		t.Fatal("observer saw recording still pending")
	}
}

// Scenario D: concurrent toggling and delivery never tear state.
func TestClassifyConcurrentControl(t *testing.T) {
	b, tap, _ := startBlocker(t, DefaultSettings())

	tap.mu.Lock()
	h := tap.handler
	tap.mu.Unlock()

	const rounds = 500
	var wg sync.WaitGroup
	decisions := make([]platform.Decision, rounds)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			b.SetBlocking(i%2 == 0)
		}
		b.SetBlocking(false)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			decisions[i] = h(keyDown(ModCommand, KeyA))
		}
	}()
	wg.Wait()

	for i, d := range decisions {
		if d != platform.Pass && d != platform.Suppress {
			t.Fatalf("decision %d = %v", i, d)
		}
	}
	if b.IsBlocking() {
		t.Fatal("final IsBlocking() = true, want false")
	}
	if got := h(keyDown(ModCommand, KeyA)); got != platform.Pass {
		t.Fatalf("final decision = %v, want pass", got)
	}
	got := b.Settings()
	if got.Shortcut != DefaultShortcut || !got.ShortcutEnabled {
		t.Fatalf("Settings() = %+v, shortcut fields changed", got)
	}
}

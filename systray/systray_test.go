package systray

import (
	"testing"

	"markestedt/keyblocker/keyboard"
)

func TestLabels(t *testing.T) {
	if got := statusTitle(true); got != "🔒" {
		t.Errorf("statusTitle(true) = %q", got)
	}
	if got := statusTitle(false); got != "🔓" {
		t.Errorf("statusTitle(false) = %q", got)
	}

	got := recordLabel(keyboard.DefaultShortcut, false)
	if want := "Record Shortcut (current: Shift+Cmd+Q)"; got != want {
		t.Errorf("recordLabel() = %q, want %q", got, want)
	}
	if got := recordLabel(keyboard.DefaultShortcut, true); got == "" {
		t.Error("recordLabel() while recording is empty")
	}
}

func TestNotificationsBeforeReadyAreIgnored(t *testing.T) {
	m := NewManager(nil, nil)

	// Must not touch menu items that do not exist yet.
	m.OnStateChanged(keyboard.StateChange{Blocking: true, Cause: keyboard.CauseUser})
	m.OnShortcutRecorded(keyboard.DefaultShortcut)

	select {
	case <-m.WaitForQuit():
		t.Fatal("quit channel closed without Quit")
	default:
	}
}

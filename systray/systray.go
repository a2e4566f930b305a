package systray

import (
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"markestedt/keyblocker/keyboard"
)

// Controller is the part of the blocker the tray menu drives
type Controller interface {
	SetBlocking(enabled bool)
	IsBlocking() bool
	SetShortcutEnabled(enabled bool)
	IsShortcutEnabled() bool
	Shortcut() keyboard.Shortcut
	StartRecording()
}

// Manager manages the system tray icon and menu. It implements
// keyboard.Notifier so the menu follows changes made elsewhere.
type Manager struct {
	ctrl     Controller
	iconData []byte
	quit     chan struct{}
	quitOnce sync.Once

	mu        sync.Mutex
	ready     bool
	mBlock    *systray.MenuItem
	mShortcut *systray.MenuItem
	mRecord   *systray.MenuItem
}

// NewManager creates a new systray manager
func NewManager(ctrl Controller, iconData []byte) *Manager {
	return &Manager{
		ctrl:     ctrl,
		iconData: iconData,
		quit:     make(chan struct{}),
	}
}

// Run starts the system tray (blocking call)
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *Manager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *Manager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// onReady is called when the systray is ready
func (m *Manager) onReady() {
	if len(m.iconData) > 0 {
		systray.SetIcon(m.iconData)
	}

	blocking := m.ctrl.IsBlocking()
	systray.SetTitle(statusTitle(blocking))
	systray.SetTooltip(tooltip(blocking))

	mBlock := systray.AddMenuItemCheckbox("Block Keyboard", "Suppress all keyboard input", blocking)
	mShortcut := systray.AddMenuItemCheckbox("Emergency Shortcut", "Allow the shortcut to unblock the keyboard", m.ctrl.IsShortcutEnabled())
	mRecord := systray.AddMenuItem(recordLabel(m.ctrl.Shortcut(), false), "Press a new key combination to use as the shortcut")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit KeyBlocker")

	m.mu.Lock()
	m.mBlock, m.mShortcut, m.mRecord = mBlock, mShortcut, mRecord
	m.ready = true
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-mBlock.ClickedCh:
				m.ctrl.SetBlocking(!m.ctrl.IsBlocking())
			case <-mShortcut.ClickedCh:
				enabled := !m.ctrl.IsShortcutEnabled()
				m.ctrl.SetShortcutEnabled(enabled)
				setChecked(mShortcut, enabled)
			case <-mRecord.ClickedCh:
				slog.Info("Recording new shortcut, press a key combination")
				mRecord.SetTitle(recordLabel(m.ctrl.Shortcut(), true))
				m.ctrl.StartRecording()
			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				m.quitOnce.Do(func() { close(m.quit) })
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the systray is exiting
func (m *Manager) onExit() {
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
	slog.Info("System tray exited")
}

func (m *Manager) OnStateChanged(c keyboard.StateChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return
	}
	systray.SetTitle(statusTitle(c.Blocking))
	systray.SetTooltip(tooltip(c.Blocking))
	setChecked(m.mBlock, c.Blocking)
}

func (m *Manager) OnShortcutRecorded(s keyboard.Shortcut) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return
	}
	m.mRecord.SetTitle(recordLabel(s, false))
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

func statusTitle(blocking bool) string {
	if blocking {
		return "🔒"
	}
	return "🔓"
}

func tooltip(blocking bool) string {
	if blocking {
		return "KeyBlocker - keyboard blocked"
	}
	return "KeyBlocker - keyboard active"
}

func recordLabel(s keyboard.Shortcut, recording bool) string {
	if recording {
		return "Recording... press new shortcut"
	}
	return "Record Shortcut (current: " + s.String() + ")"
}

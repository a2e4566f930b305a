// Package settings persists the keyboard blocker settings in a small
// line-oriented key=value file.
package settings

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"markestedt/keyblocker/keyboard"
)

const (
	// AppFolder is the folder created inside the user config directory
	AppFolder = "KeyBlocker"

	// FileName is the settings file name
	FileName = "settings.conf"
)

const (
	keyShortcutEnabled = "shortcut_enabled"
	keyShortcutFlags   = "shortcut_flags"
	keyShortcutKeyCode = "shortcut_keycode"
	keyBlockingEnabled = "blocking_enabled"
)

// DefaultDir returns ~/Library/Application Support/KeyBlocker on macOS and
// the equivalent user config directory elsewhere
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		// $HOME is unset; fall back to the passwd entry.
		u, uerr := user.Current()
		if uerr != nil {
			return "", fmt.Errorf("failed to resolve config directory: %w", errors.Join(err, uerr))
		}
		base = filepath.Join(u.HomeDir, "Library", "Application Support")
	}
	return filepath.Join(base, AppFolder), nil
}

// File implements keyboard.Store on top of settings.conf
type File struct {
	path string

	mu        sync.Mutex
	lastSaved []byte
}

// NewFile returns a store for dir/settings.conf, creating dir if needed
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	return &File{path: filepath.Join(dir, FileName)}, nil
}

// Path returns the settings file path
func (f *File) Path() string {
	return f.path
}

// Load reads the settings file. A missing file yields defaults. Unknown keys
// and malformed values are ignored, and the blocking state is never
// restored.
func (f *File) Load() (keyboard.Settings, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("No settings file found, using defaults", "path", f.path)
		return keyboard.DefaultSettings(), nil
	}
	if err != nil {
		return keyboard.DefaultSettings(), fmt.Errorf("failed to read settings: %w", err)
	}

	s := Parse(data)
	slog.Info("Settings loaded successfully", "path", f.path)
	return s, nil
}

// Save writes all four fields, replacing the file atomically
func (f *File) Save(s keyboard.Settings) error {
	data := Format(s)

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), FileName+".*")
	if err != nil {
		return fmt.Errorf("failed to open settings file for writing: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	f.lastSaved = data
	slog.Debug("Settings saved", "path", f.path)
	return nil
}

// loadExternal reads the file and reports whether its content differs from
// what this process last wrote
func (f *File) loadExternal() (keyboard.Settings, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return keyboard.Settings{}, false, err
	}

	f.mu.Lock()
	own := f.lastSaved != nil && bytes.Equal(data, f.lastSaved)
	f.mu.Unlock()

	if own {
		return keyboard.Settings{}, false, nil
	}
	return Parse(data), true, nil
}

// Parse decodes settings.conf content on top of the defaults
func Parse(data []byte) keyboard.Settings {
	s := keyboard.DefaultSettings()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case keyShortcutEnabled:
			if b, err := parseBool(val); err == nil {
				s.ShortcutEnabled = b
			} else {
				slog.Warn("Ignoring malformed setting", "key", key, "value", val)
			}
		case keyShortcutFlags:
			if n, err := strconv.ParseUint(val, 10, 64); err == nil {
				s.Shortcut.Modifiers = keyboard.Modifier(n)
			} else {
				slog.Warn("Ignoring malformed setting", "key", key, "value", val)
			}
		case keyShortcutKeyCode:
			if n, err := strconv.ParseUint(val, 10, 16); err == nil {
				s.Shortcut.KeyCode = uint16(n)
			} else {
				slog.Warn("Ignoring malformed setting", "key", key, "value", val)
			}
		case keyBlockingEnabled:
			// Never restored; a crash while blocking must not lock the
			// user out on the next launch.
			s.BlockingEnabled = false
		}
	}

	return s
}

// Format encodes settings in the key=value layout Parse reads
func Format(s keyboard.Settings) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s=%d\n", keyShortcutEnabled, boolInt(s.ShortcutEnabled))
	fmt.Fprintf(&buf, "%s=%d\n", keyShortcutFlags, uint64(s.Shortcut.Modifiers))
	fmt.Fprintf(&buf, "%s=%d\n", keyShortcutKeyCode, s.Shortcut.KeyCode)
	fmt.Fprintf(&buf, "%s=%d\n", keyBlockingEnabled, boolInt(s.BlockingEnabled))
	return buf.Bytes()
}

func parseBool(val string) (bool, error) {
	if n, err := strconv.Atoi(val); err == nil {
		return n != 0, nil
	}
	return strconv.ParseBool(val)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

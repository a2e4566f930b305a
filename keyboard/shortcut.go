package keyboard

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier is a bitset of held modifier keys. Bit values follow the
// CGEventFlags layout so raw flags from the tap can be masked directly.
type Modifier uint64

const (
	ModShift   Modifier = 0x00020000
	ModControl Modifier = 0x00040000
	ModOption  Modifier = 0x00080000
	ModCommand Modifier = 0x00100000

	// ModifierMask covers the modifiers that take part in shortcut matching.
	ModifierMask = ModShift | ModControl | ModOption | ModCommand
)

// Clean drops every bit outside ModifierMask (CapsLock, Fn, device bits).
func (m Modifier) Clean() Modifier {
	return m & ModifierMask
}

// Shortcut is a single key plus an exact set of modifiers
type Shortcut struct {
	Modifiers Modifier
	KeyCode   uint16
}

// DefaultShortcut is Cmd+Shift+Q.
var DefaultShortcut = Shortcut{
	Modifiers: ModCommand | ModShift,
	KeyCode:   KeyQ,
}

// Matches reports whether a captured modifier set and key code equal the
// configured shortcut. Only the captured flags are cleaned; they must equal
// the configured modifiers exactly, so a superset does not match and neither
// does a configured value carrying bits outside ModifierMask.
func Matches(captured Modifier, keyCode uint16, configured Shortcut) bool {
	return captured.Clean() == configured.Modifiers && keyCode == configured.KeyCode
}

// modifierOrder is the order modifiers are written in, ⌃⌥⇧⌘.
var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModControl, "Ctrl"},
	{ModOption, "Opt"},
	{ModShift, "Shift"},
	{ModCommand, "Cmd"},
}

// String renders the shortcut as "Ctrl+Opt+Shift+Cmd+Q"
func (s Shortcut) String() string {
	var parts []string
	for _, m := range modifierOrder {
		if s.Modifiers&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	parts = append(parts, KeyName(s.KeyCode))
	return strings.Join(parts, "+")
}

// ParseShortcut parses a combo string like "cmd+shift+q" or "ctrl+key130"
func ParseShortcut(combo string) (Shortcut, error) {
	var s Shortcut

	normalized := strings.TrimSpace(strings.ReplaceAll(combo, " ", ""))
	if normalized == "" {
		return s, fmt.Errorf("empty shortcut")
	}

	parts := strings.Split(strings.ToLower(normalized), "+")
	keySeen := false

	for i, part := range parts {
		switch part {
		case "cmd", "command", "super", "meta":
			s.Modifiers |= ModCommand
			continue
		case "shift":
			s.Modifiers |= ModShift
			continue
		case "opt", "option", "alt":
			s.Modifiers |= ModOption
			continue
		case "ctrl", "control":
			s.Modifiers |= ModControl
			continue
		}

		if i != len(parts)-1 {
			return Shortcut{}, fmt.Errorf("unknown modifier: %s", part)
		}

		code, err := parseKey(part)
		if err != nil {
			return Shortcut{}, err
		}
		s.KeyCode = code
		keySeen = true
	}

	if !keySeen {
		return Shortcut{}, fmt.Errorf("no key specified in shortcut %q", combo)
	}

	return s, nil
}

func parseKey(name string) (uint16, error) {
	if code, ok := keyCodes[name]; ok {
		return code, nil
	}
	if raw, ok := strings.CutPrefix(name, "key"); ok && raw != "" {
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
		code, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid key code %q: %w", raw, err)
		}
		return uint16(code), nil
	}
	return 0, fmt.Errorf("unknown key: %s", name)
}

package keyboard

import (
	"fmt"
	"strings"
)

// macOS virtual key codes (ANSI layout)
const (
	KeyA      uint16 = 0
	KeyS      uint16 = 1
	KeyD      uint16 = 2
	KeyF      uint16 = 3
	KeyH      uint16 = 4
	KeyG      uint16 = 5
	KeyZ      uint16 = 6
	KeyX      uint16 = 7
	KeyC      uint16 = 8
	KeyV      uint16 = 9
	KeyB      uint16 = 11
	KeyQ      uint16 = 12
	KeyW      uint16 = 13
	KeyE      uint16 = 14
	KeyR      uint16 = 15
	KeyY      uint16 = 16
	KeyT      uint16 = 17
	KeyO      uint16 = 31
	KeyU      uint16 = 32
	KeyI      uint16 = 34
	KeyP      uint16 = 35
	KeyReturn uint16 = 36
	KeyL      uint16 = 37
	KeyJ      uint16 = 38
	KeyK      uint16 = 40
	KeyN      uint16 = 45
	KeyM      uint16 = 46
	KeyTab    uint16 = 48
	KeySpace  uint16 = 49
	KeyDelete uint16 = 51
	KeyEscape uint16 = 53
)

// keyNames maps key codes to their display name
var keyNames = map[uint16]string{
	KeyA: "A", KeyS: "S", KeyD: "D", KeyF: "F", KeyH: "H", KeyG: "G",
	KeyZ: "Z", KeyX: "X", KeyC: "C", KeyV: "V", KeyB: "B", KeyQ: "Q",
	KeyW: "W", KeyE: "E", KeyR: "R", KeyY: "Y", KeyT: "T", KeyO: "O",
	KeyU: "U", KeyI: "I", KeyP: "P", KeyL: "L", KeyJ: "J", KeyK: "K",
	KeyN: "N", KeyM: "M",
	18: "1", 19: "2", 20: "3", 21: "4", 23: "5",
	22: "6", 26: "7", 28: "8", 25: "9", 29: "0",
	24: "=", 27: "-", 30: "]", 33: "[", 39: "'", 41: ";",
	42: "\\", 43: ",", 44: "/", 47: ".", 50: "`",
	KeyReturn: "Return", KeyTab: "Tab", KeySpace: "Space",
	KeyDelete: "Delete", KeyEscape: "Escape",
	117: "ForwardDelete", 115: "Home", 119: "End", 116: "PageUp", 121: "PageDown",
	123: "Left", 124: "Right", 125: "Down", 126: "Up",
	122: "F1", 120: "F2", 99: "F3", 118: "F4", 96: "F5", 97: "F6",
	98: "F7", 100: "F8", 101: "F9", 109: "F10", 103: "F11", 111: "F12",
}

// keyCodes is the lowercase reverse of keyNames plus a few aliases
var keyCodes = func() map[string]uint16 {
	m := make(map[string]uint16, len(keyNames)+4)
	for code, name := range keyNames {
		m[strings.ToLower(name)] = code
	}
	m["enter"] = KeyReturn
	m["esc"] = KeyEscape
	m["backspace"] = KeyDelete
	m["pgup"] = 116
	m["pgdown"] = 121
	return m
}()

// KeyName returns the display name for a key code, or "Key(n)" when the code
// has no name
func KeyName(code uint16) string {
	if name, ok := keyNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Key(%d)", code)
}

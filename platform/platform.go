package platform

import (
	"errors"
)

var (
	// ErrPermissionDenied is returned when the OS refuses to install the
	// event tap because the process lacks accessibility access.
	ErrPermissionDenied = errors.New("accessibility permission denied")

	// ErrUnsupported is returned on platforms without an event tap backend.
	ErrUnsupported = errors.New("keyboard interception not supported on this platform")
)

// EventType represents the category of an intercepted keyboard event
type EventType int

const (
	KeyDown EventType = iota
	KeyUp
	FlagsChanged  // modifier keys
	SystemDefined // media, brightness and other vendor keys
	Other
)

func (t EventType) String() string {
	switch t {
	case KeyDown:
		return "key-down"
	case KeyUp:
		return "key-up"
	case FlagsChanged:
		return "flags-changed"
	case SystemDefined:
		return "system-defined"
	default:
		return "other"
	}
}

// Event represents one keyboard event delivered by the tap
type Event struct {
	Type    EventType
	KeyCode uint16 // hardware key code
	Flags   uint64 // raw modifier flags as reported by the OS
}

// Decision tells the tap what to do with an event
type Decision int

const (
	Pass Decision = iota
	Suppress
)

func (d Decision) String() string {
	if d == Suppress {
		return "suppress"
	}
	return "pass"
}

// Handler classifies a single event. It runs on the tap's own thread and
// must not block.
type Handler func(Event) Decision

// EventTap intercepts system-wide keyboard events before normal delivery
type EventTap interface {
	// Start registers for key-down, key-up, flags-changed and
	// system-defined events and begins delivering them to h.
	Start(h Handler) error

	// Stop unregisters the tap. No call to the handler starts after Stop
	// returns.
	Stop() error
}

package keyboard

import (
	"errors"
	"fmt"

	"markestedt/keyblocker/platform"
)

var (
	// ErrAlreadyRunning is returned by Start when a listener is active.
	// Callers can treat it as success.
	ErrAlreadyRunning = errors.New("keyboard blocker already running")

	// ErrPermissionDenied is returned by Start when the OS refused the tap
	// for lack of accessibility access.
	ErrPermissionDenied = errors.New("accessibility permission missing")

	// ErrRegistrationFailed is returned by Start for any other tap failure.
	ErrRegistrationFailed = errors.New("failed to register keyboard event tap")
)

// registrationError maps a platform tap error onto the blocker's taxonomy
func registrationError(err error) error {
	if errors.Is(err, platform.ErrPermissionDenied) {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
}

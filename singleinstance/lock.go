package singleinstance

import "errors"

// ErrAlreadyRunning is returned by TryLock when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// FileName is the lock file created in the settings directory
const FileName = "keyblocker.lock"

//go:build !unix

package singleinstance

// Lock is a no-op on platforms without flock.
type Lock struct{}

// TryLock always succeeds on platforms without flock.
func TryLock(_ string) (*Lock, error) { return &Lock{}, nil }

// Release is a no-op on platforms without flock.
func (l *Lock) Release() error { return nil }

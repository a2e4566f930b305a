//go:build !darwin

package platform

// stubEventTap is used on platforms without an interception backend
type stubEventTap struct{}

// NewEventTap returns a tap that always fails to start
func NewEventTap() EventTap {
	return stubEventTap{}
}

func (stubEventTap) Start(Handler) error { return ErrUnsupported }

func (stubEventTap) Stop() error { return nil }

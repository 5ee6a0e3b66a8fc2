package device

import "errors"

var (
	// ErrClosed indicates the actuator hardware has been released
	ErrClosed = errors.New("actuator closed")

	// ErrNotConnected indicates the hardware or channel is unavailable
	ErrNotConnected = errors.New("not connected")
)

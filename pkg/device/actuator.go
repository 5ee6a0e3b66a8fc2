package device

// Actuator drives the physical lock. Implementations must treat SetLocked
// as idempotent: repeating a state is not an error.
type Actuator interface {
	// SetLocked engages (true) or releases (false) the lock
	SetLocked(locked bool) error

	// Locked reports the last state successfully applied
	Locked() bool

	// Close releases the underlying hardware
	Close() error
}

// Indicator shows a status color. It is fire-and-forget: implementations
// must not block and report no errors.
type Indicator interface {
	Show(c Color)
}

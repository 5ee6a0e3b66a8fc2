package device

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// MemoryActuator is an in-process lock used when no relay hardware is
// attached. It starts locked.
type MemoryActuator struct {
	mu     sync.Mutex
	locked bool
	closed bool
	calls  int
}

// NewMemoryActuator creates a new MemoryActuator in the locked state.
func NewMemoryActuator() *MemoryActuator {
	return &MemoryActuator{locked: true}
}

func (a *MemoryActuator) SetLocked(locked bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.locked = locked
	a.calls++
	log.Debug().Bool("locked", locked).Msg("Memory actuator set")
	return nil
}

func (a *MemoryActuator) Locked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locked
}

// Calls returns how many times SetLocked succeeded.
func (a *MemoryActuator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *MemoryActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// LogIndicator writes status colors to the log instead of an LED strip.
type LogIndicator struct{}

// NewLogIndicator creates a new LogIndicator.
func NewLogIndicator() *LogIndicator {
	return &LogIndicator{}
}

func (LogIndicator) Show(c Color) {
	log.Debug().Str("color", c.Hex()).Msg("Status indicator")
}

// Package relay drives the door strike through a serial USB relay board.
// The strike is wired fail-secure: the relay is energized to unlock, so a
// released relay (power loss, closed port) leaves the door locked.
package relay

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/doorlock/pkg/device"
)

const frameStart = 0xA0

// Frame builds the 4-byte command for channel: start, channel, state, checksum.
func Frame(channel uint8, energize bool) []byte {
	var state uint8
	if energize {
		state = 1
	}
	return []byte{frameStart, channel, state, frameStart + channel + state}
}

// Actuator implements device.Actuator on one relay channel.
type Actuator struct {
	port    io.WriteCloser
	channel uint8

	mu     sync.Mutex
	locked bool
	closed bool
}

var _ device.Actuator = (*Actuator)(nil)

// NewActuator takes ownership of port and immediately releases the relay so
// the lock starts engaged.
func NewActuator(port io.WriteCloser, channel uint8) (*Actuator, error) {
	if channel == 0 {
		channel = 1
	}
	a := &Actuator{port: port, channel: channel}
	if err := a.SetLocked(true); err != nil {
		return nil, fmt.Errorf("engage lock: %w", err)
	}
	return a, nil
}

// Open opens the serial port at portPath and returns a locked Actuator.
func Open(portPath string, baud int, channel uint8) (*Actuator, error) {
	port, err := OpenSerial(portPath, baud)
	if err != nil {
		return nil, err
	}
	a, err := NewActuator(port, channel)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return a, nil
}

func (a *Actuator) SetLocked(locked bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return device.ErrClosed
	}
	if _, err := a.port.Write(Frame(a.channel, !locked)); err != nil {
		return fmt.Errorf("write relay frame: %w", err)
	}
	a.locked = locked

	log.Info().Uint8("channel", a.channel).Bool("locked", locked).Msg("Relay set")
	return nil
}

func (a *Actuator) Locked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locked
}

// Close releases the relay and closes the port.
func (a *Actuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if _, err := a.port.Write(Frame(a.channel, false)); err != nil {
		log.Warn().Err(err).Msg("Failed to release relay on close")
	}
	a.locked = true
	return a.port.Close()
}

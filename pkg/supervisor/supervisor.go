// Package supervisor keeps the device associated with its network and
// connected to the coordinator, escalating to a restart when a bounded
// retry budget runs out.
//
// The supervisor never blocks: Tick performs at most one attempt and
// returns, so the control loop can keep serving messages between attempts.
// It is not safe for concurrent use.
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Network associates the device with its configured network.
type Network interface {
	Associate(ctx context.Context) error
	IsUp(ctx context.Context) bool
}

// Channel is the control channel to the coordinator.
type Channel interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Ping() error
	Close() error
}

// Restarter schedules a full device restart.
type Restarter interface {
	RequestRestart(reason string)
}

// Config holds the retry policy.
type Config struct {
	NetworkRetryBudget int
	ChannelRetryBudget int
	NetworkRetryDelay  time.Duration
	ChannelRetryDelay  time.Duration
}

// DefaultConfig returns the retry policy of the device firmware.
func DefaultConfig() Config {
	return Config{
		NetworkRetryBudget: 20,
		ChannelRetryBudget: 10,
		NetworkRetryDelay:  500 * time.Millisecond,
		ChannelRetryDelay:  time.Second,
	}
}

// Supervisor drives the connectivity state machine.
type Supervisor struct {
	cfg       Config
	network   Network
	channel   Channel
	restarter Restarter
	onChange  func(from, to State)

	state        State
	since        time.Time
	netFailures  int
	chanFailures int
	restarts     int
	nextAttempt  time.Time
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStateChange registers fn to be called on every transition.
func WithStateChange(fn func(from, to State)) Option {
	return func(s *Supervisor) { s.onChange = fn }
}

// New creates a supervisor in NETWORK_DOWN.
func New(cfg Config, network Network, channel Channel, restarter Restarter, opts ...Option) *Supervisor {
	def := DefaultConfig()
	if cfg.NetworkRetryBudget <= 0 {
		cfg.NetworkRetryBudget = def.NetworkRetryBudget
	}
	if cfg.ChannelRetryBudget <= 0 {
		cfg.ChannelRetryBudget = def.ChannelRetryBudget
	}
	if cfg.NetworkRetryDelay < 0 {
		cfg.NetworkRetryDelay = 0
	}
	if cfg.ChannelRetryDelay < 0 {
		cfg.ChannelRetryDelay = 0
	}

	s := &Supervisor{
		cfg:       cfg,
		network:   network,
		channel:   channel,
		restarter: restarter,
		state:     NetworkDown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Supervisor) State() State {
	return s.state
}

// Connected reports whether both network and channel are up.
func (s *Supervisor) Connected() bool {
	return s.state == ChannelUp
}

// Snapshot returns the current connection state.
func (s *Supervisor) Snapshot() ConnectionState {
	failures := s.chanFailures
	if s.state == NetworkDown {
		failures = s.netFailures
	}
	return ConnectionState{
		State:               s.state,
		NetworkUp:           s.state != NetworkDown,
		ChannelUp:           s.state == ChannelUp,
		ConsecutiveFailures: failures,
		Restarts:            s.restarts,
		Since:               s.since,
	}
}

// Tick performs at most one connection attempt if one is due.
func (s *Supervisor) Tick(ctx context.Context, now time.Time) {
	if now.Before(s.nextAttempt) {
		return
	}

	switch s.state {
	case NetworkDown:
		s.attemptNetwork(ctx, now)
	case NetworkUp, ChannelDown:
		s.attemptChannel(ctx, now)
	}
}

func (s *Supervisor) attemptNetwork(ctx context.Context, now time.Time) {
	err := s.network.Associate(ctx)
	if err == nil {
		s.netFailures = 0
		s.nextAttempt = now
		s.transition(NetworkUp, now)
		log.Info().Msg("Network associated")
		return
	}

	s.netFailures++
	log.Warn().
		Err(err).
		Int("attempt", s.netFailures).
		Int("budget", s.cfg.NetworkRetryBudget).
		Msg("Network association failed")

	if s.netFailures > s.cfg.NetworkRetryBudget {
		s.escalate("network retry budget exhausted")
		return
	}
	s.nextAttempt = now.Add(s.cfg.NetworkRetryDelay)
}

func (s *Supervisor) attemptChannel(ctx context.Context, now time.Time) {
	if !s.network.IsUp(ctx) {
		s.networkLost(now)
		return
	}

	err := s.channel.Connect(ctx)
	if err == nil {
		s.chanFailures = 0
		s.transition(ChannelUp, now)
		log.Info().Msg("Channel connected")
		return
	}

	s.chanFailures++
	s.transition(ChannelDown, now)
	log.Warn().
		Err(err).
		Int("attempt", s.chanFailures).
		Int("budget", s.cfg.ChannelRetryBudget).
		Msg("Channel handshake failed")

	if s.chanFailures > s.cfg.ChannelRetryBudget {
		s.escalate("channel retry budget exhausted")
		return
	}
	s.nextAttempt = now.Add(s.cfg.ChannelRetryDelay)
}

// Reconcile re-checks network and channel liveness and re-enters the retry
// path when either has dropped.
func (s *Supervisor) Reconcile(ctx context.Context, now time.Time) {
	if s.state == NetworkDown {
		return
	}
	if !s.network.IsUp(ctx) {
		s.networkLost(now)
		return
	}
	if s.state == ChannelUp && !s.channel.IsConnected() {
		s.channelLost(now)
	}
}

// NotifyChannelLost reports a read or write failure on the channel.
func (s *Supervisor) NotifyChannelLost(now time.Time) {
	if s.state == ChannelUp {
		s.channelLost(now)
	}
}

// Heartbeat pings the coordinator when the channel is up. It reports
// whether a ping was sent.
func (s *Supervisor) Heartbeat(now time.Time) bool {
	if s.state != ChannelUp {
		return false
	}
	if err := s.channel.Ping(); err != nil {
		log.Warn().Err(err).Msg("Heartbeat failed")
		s.channelLost(now)
		return false
	}
	return true
}

func (s *Supervisor) networkLost(now time.Time) {
	log.Warn().Str("from", s.state.String()).Msg("Network lost")
	if err := s.channel.Close(); err != nil {
		log.Debug().Err(err).Msg("Closing channel after network loss")
	}
	// chanFailures survives the drop: only a handshake or a restart clears it.
	s.netFailures = 0
	s.nextAttempt = now
	s.transition(NetworkDown, now)
}

func (s *Supervisor) channelLost(now time.Time) {
	log.Warn().Msg("Channel lost")
	if err := s.channel.Close(); err != nil {
		log.Debug().Err(err).Msg("Closing lost channel")
	}
	s.chanFailures = 0
	s.nextAttempt = now
	s.transition(ChannelDown, now)
}

func (s *Supervisor) escalate(reason string) {
	log.Error().Str("reason", reason).Str("state", s.state.String()).Msg("Escalating to restart")
	s.netFailures = 0
	s.chanFailures = 0
	s.restarts++
	s.restarter.RequestRestart(reason)
}

func (s *Supervisor) transition(to State, now time.Time) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.since = now
	log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Connectivity state changed")
	if s.onChange != nil {
		s.onChange(from, to)
	}
}

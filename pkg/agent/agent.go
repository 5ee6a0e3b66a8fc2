// Package agent runs the device control loop. One goroutine owns the
// device state: it drains inbound channel frames, fires the heartbeat and
// reconcile timers, and steps the connectivity supervisor.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/doorlock/pkg/channel"
	"github.com/urmzd/doorlock/pkg/command"
	"github.com/urmzd/doorlock/pkg/db"
	"github.com/urmzd/doorlock/pkg/device"
	"github.com/urmzd/doorlock/pkg/device/schema"
	"github.com/urmzd/doorlock/pkg/keys"
	"github.com/urmzd/doorlock/pkg/supervisor"
)

// ErrRestartRequested is returned by Run when the device must restart to
// apply new settings or recover connectivity.
var ErrRestartRequested = errors.New("restart requested")

const minRetryInterval = 50 * time.Millisecond

// Channel is the control channel as the agent uses it.
type Channel interface {
	supervisor.Channel
	command.Sender
	Messages() <-chan string
}

// DeviceContext is the state owned by the control loop for the lifetime
// of the process.
type DeviceContext struct {
	Identity  db.Identity
	Settings  *db.DeviceSettings
	Keys      *keys.Manager
	Actuator  device.Actuator
	Indicator device.Indicator
}

// Config holds the loop timing and policy.
type Config struct {
	Supervisor        supervisor.Config
	HeartbeatInterval time.Duration
	ReconcileInterval time.Duration
	ReplayWindow      time.Duration

	// RelockAfter re-engages the lock this long after an unlock. Zero
	// leaves the door unlocked until a lock command arrives.
	RelockAfter time.Duration
}

// DefaultConfig returns the firmware timing.
func DefaultConfig() Config {
	return Config{
		Supervisor:        supervisor.DefaultConfig(),
		HeartbeatInterval: 10 * time.Second,
		ReconcileInterval: 30 * time.Second,
		ReplayWindow:      command.DefaultReplayWindow,
	}
}

// Status is a snapshot of the agent for local diagnostics.
type Status struct {
	DoorID         string                     `json:"door_id"`
	Locked         bool                       `json:"locked"`
	Connection     supervisor.ConnectionState `json:"connection"`
	LastOutcome    string                     `json:"last_outcome,omitempty"`
	LastMessageAt  time.Time                  `json:"last_message_at,omitempty"`
	RestartPending bool                       `json:"restart_pending"`
	StartedAt      time.Time                  `json:"started_at"`
}

// Agent wires the dispatcher and supervisor around one control loop.
type Agent struct {
	dc         DeviceContext
	cfg        Config
	channel    Channel
	supervisor *supervisor.Supervisor
	dispatcher *command.Dispatcher

	restartReason string
	relock        *time.Timer

	mu     sync.RWMutex
	status Status
}

// New creates an agent. network joins the configured network and ch
// carries frames to and from the coordinator.
func New(dc DeviceContext, network supervisor.Network, ch Channel, cfg Config) *Agent {
	def := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = def.ReconcileInterval
	}
	if dc.Indicator == nil {
		dc.Indicator = device.NewLogIndicator()
	}

	a := &Agent{
		dc:      dc,
		cfg:     cfg,
		channel: ch,
		status:  Status{DoorID: dc.Identity.DoorID, Locked: true},
	}

	a.supervisor = supervisor.New(cfg.Supervisor, network, ch, a,
		supervisor.WithStateChange(a.onStateChange))

	a.dispatcher = command.NewDispatcher(command.Deps{
		DoorID:    dc.Identity.DoorID,
		Codec:     channel.NewCodec(dc.Keys),
		Validator: schema.NewValidator(),
		Settings:  dc.Settings,
		Actuator:  dc.Actuator,
		Sender:    ch,
		Restarter: a,
		Status:    a.supervisor,
		PublicKey: dc.Keys,
	}, command.WithReplayWindow(cfg.ReplayWindow))

	return a
}

// RequestRestart records that the loop must stop before the next message.
func (a *Agent) RequestRestart(reason string) {
	if a.restartReason == "" {
		a.restartReason = reason
	}
	log.Warn().Str("reason", reason).Msg("Restart requested")
}

// Status returns the latest snapshot. It is safe to call from any
// goroutine.
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Run drives the device until ctx is canceled or a restart is required.
// The lock is engaged before any network activity.
func (a *Agent) Run(ctx context.Context) error {
	a.dc.Indicator.Show(device.ColorBooting)
	if err := a.dc.Actuator.SetLocked(true); err != nil {
		return fmt.Errorf("failed to engage lock: %w", err)
	}

	if _, err := a.dc.Keys.EnsureKeyPair(ctx); err != nil {
		return fmt.Errorf("failed to ensure key pair: %w", err)
	}

	a.mu.Lock()
	a.status.StartedAt = time.Now()
	a.mu.Unlock()

	heartbeat := time.NewTicker(a.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	reconcile := time.NewTicker(a.cfg.ReconcileInterval)
	defer reconcile.Stop()
	retry := time.NewTicker(a.retryInterval())
	defer retry.Stop()
	defer a.stopRelock()

	log.Info().Str("door_id", a.dc.Identity.DoorID).Msg("Control loop started")

	a.supervisor.Tick(ctx, time.Now())
	a.publish()

	for {
		if a.restartReason != "" {
			log.Info().Str("reason", a.restartReason).Msg("Control loop stopping for restart")
			return ErrRestartRequested
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case text := <-a.channel.Messages():
			a.handle(ctx, text)

		case now := <-heartbeat.C:
			a.supervisor.Heartbeat(now)

		case now := <-reconcile.C:
			a.supervisor.Reconcile(ctx, now)

		case now := <-retry.C:
			if !a.channel.IsConnected() {
				a.supervisor.NotifyChannelLost(now)
			}
			a.supervisor.Tick(ctx, now)

		case <-a.relockC():
			a.relock = nil
			if err := a.dc.Actuator.SetLocked(true); err != nil {
				log.Error().Err(err).Msg("Failed to relock")
			} else {
				log.Info().Msg("Relocked")
			}
		}

		a.publish()
	}
}

func (a *Agent) handle(ctx context.Context, text string) {
	a.dc.Indicator.Show(device.ColorMessageReceived)

	out := a.dispatcher.HandleEnvelope(ctx, text)

	switch {
	case out.OK() && out.Action == command.ActionUnlock:
		a.dc.Indicator.Show(device.ColorUnlocked)
		a.startRelock()
	case out.OK() && out.Action == command.ActionLock:
		a.stopRelock()
		a.dc.Indicator.Show(device.ColorWaiting)
	case out.OK():
		a.dc.Indicator.Show(device.ColorWaiting)
	default:
		a.dc.Indicator.Show(device.ColorRejected)
	}

	a.mu.Lock()
	a.status.LastOutcome = out.Kind.String()
	a.status.LastMessageAt = time.Now()
	a.mu.Unlock()
}

func (a *Agent) startRelock() {
	if a.cfg.RelockAfter <= 0 {
		return
	}
	a.stopRelock()
	a.relock = time.NewTimer(a.cfg.RelockAfter)
}

func (a *Agent) stopRelock() {
	if a.relock != nil {
		a.relock.Stop()
		a.relock = nil
	}
}

// relockC returns nil when no relock is pending, so its select case never
// fires.
func (a *Agent) relockC() <-chan time.Time {
	if a.relock == nil {
		return nil
	}
	return a.relock.C
}

func (a *Agent) onStateChange(_, to supervisor.State) {
	switch to {
	case supervisor.NetworkUp:
		a.dc.Indicator.Show(device.ColorNetworkUp)
	case supervisor.ChannelUp:
		a.dc.Indicator.Show(device.ColorChannelUp)
	case supervisor.NetworkDown, supervisor.ChannelDown:
		a.dc.Indicator.Show(device.ColorBooting)
	}
}

func (a *Agent) publish() {
	snap := a.supervisor.Snapshot()
	locked := a.dc.Actuator.Locked()

	a.mu.Lock()
	a.status.Connection = snap
	a.status.Locked = locked
	a.status.RestartPending = a.restartReason != ""
	a.mu.Unlock()
}

func (a *Agent) retryInterval() time.Duration {
	d := a.cfg.Supervisor.NetworkRetryDelay
	if c := a.cfg.Supervisor.ChannelRetryDelay; c < d {
		d = c
	}
	if d < minRetryInterval {
		d = minRetryInterval
	}
	return d
}

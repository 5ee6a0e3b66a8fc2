// Package command authenticates decrypted commands and dispatches them to
// the lock actuator and device settings.
package command

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/doorlock/pkg/channel"
	"github.com/urmzd/doorlock/pkg/device"
	"github.com/urmzd/doorlock/pkg/device/schema"
)

// DefaultReplayWindow is the maximum accepted distance between a command's
// timestamp and the device clock.
const DefaultReplayWindow = 300 * time.Second

// Settings is the mutable device configuration the dispatcher reads and
// updates.
type Settings interface {
	PresetPassword() string
	UpdateWiFi(ctx context.Context, ssid, password string) error
	UpdateServer(ctx context.Context, address string) error
	UpdatePresetPassword(ctx context.Context, password string) error
}

// Sender writes a reply to the control channel.
type Sender interface {
	Send(text string) error
}

// Restarter schedules a full device restart.
type Restarter interface {
	RequestRestart(reason string)
}

// ConnectionStatus reports whether both network and channel are up.
type ConnectionStatus interface {
	Connected() bool
}

// PublicKeySource exposes the device public key.
type PublicKeySource interface {
	PublicKeyPEM() []byte
}

// Dispatcher runs the gate sequence for each inbound message.
type Dispatcher struct {
	doorID    string
	codec     *channel.Codec
	validator *schema.Validator
	settings  Settings
	actuator  device.Actuator
	sender    Sender
	restarter Restarter
	status    ConnectionStatus
	publicKey PublicKeySource
	window    time.Duration
	now       func() time.Time
}

// Deps groups the dispatcher collaborators.
type Deps struct {
	// DoorID, when set, rejects commands addressed to another door.
	DoorID    string
	Codec     *channel.Codec
	Validator *schema.Validator
	Settings  Settings
	Actuator  device.Actuator
	Sender    Sender
	Restarter Restarter
	Status    ConnectionStatus
	PublicKey PublicKeySource
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithReplayWindow overrides DefaultReplayWindow.
func WithReplayWindow(window time.Duration) Option {
	return func(d *Dispatcher) {
		if window > 0 {
			d.window = window
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher over deps.
func NewDispatcher(deps Deps, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		doorID:    deps.DoorID,
		codec:     deps.Codec,
		validator: deps.Validator,
		settings:  deps.Settings,
		actuator:  deps.Actuator,
		sender:    deps.Sender,
		restarter: deps.Restarter,
		status:    deps.Status,
		publicKey: deps.PublicKey,
		window:    DefaultReplayWindow,
		now:       time.Now,
	}
	if d.validator == nil {
		d.validator = schema.NewValidator()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleEnvelope decodes a wire frame and handles the resulting command.
func (d *Dispatcher) HandleEnvelope(ctx context.Context, text string) Outcome {
	plaintext, err := d.codec.DecodeEnvelope(text)
	if err != nil {
		log.Debug().Err(err).Msg("Dropping undecodable envelope")
		return d.report(Outcome{Kind: OutcomeCodecError})
	}
	return d.Handle(ctx, plaintext)
}

// Handle authenticates plaintext and executes the requested action. Each
// gate failure returns without touching the lock or the settings.
func (d *Dispatcher) Handle(ctx context.Context, plaintext []byte) Outcome {
	cmd, err := Parse(d.validator, plaintext)
	if err != nil {
		return d.report(Outcome{Kind: OutcomeParseError})
	}

	if cmd.DoorID != "" && d.doorID != "" && cmd.DoorID != d.doorID {
		return d.report(Outcome{Kind: OutcomeMisaddressed})
	}

	if !passwordsMatch(cmd.Password, d.settings.PresetPassword()) {
		return d.report(Outcome{Kind: OutcomeAuthFailed})
	}

	ts, err := cmd.Timestamp()
	if err != nil {
		return d.report(Outcome{Kind: OutcomeBadTimestamp})
	}
	if skew := d.now().Sub(ts); skew > d.window || skew < -d.window {
		return d.report(Outcome{Kind: OutcomeExpired})
	}

	return d.report(d.dispatch(ctx, cmd))
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd *Command) Outcome {
	out := Outcome{Action: cmd.Action}

	switch cmd.Action {
	case ActionUnlock, ActionLock:
		if err := d.actuator.SetLocked(cmd.Action == ActionLock); err != nil {
			log.Error().Err(err).Str("action", cmd.Action.String()).Msg("Actuator failed")
			out.Kind = OutcomeActuatorFailed
			return out
		}

	case ActionUpdateWiFi, ActionUpdateServer, ActionUpdatePresetPassword:
		var err error
		switch cmd.Action {
		case ActionUpdateWiFi:
			err = d.settings.UpdateWiFi(ctx, cmd.NewSSID, cmd.NewPassword)
		case ActionUpdateServer:
			err = d.settings.UpdateServer(ctx, cmd.NewServerAddress)
		default:
			err = d.settings.UpdatePresetPassword(ctx, cmd.NewPresetPassword)
		}
		if err != nil {
			log.Error().Err(err).Str("action", cmd.Action.String()).Msg("Failed to persist settings")
			out.Kind = OutcomePersistFailed
			return out
		}
		d.restarter.RequestRestart(cmd.Action.String())
		out.Kind = OutcomeRestartPending
		return out

	case ActionGetPublicKey:
		if err := d.reply(d.publicKey.PublicKeyPEM()); err != nil {
			out.Kind = OutcomeSendFailed
			return out
		}

	case ActionGetStatus:
		connected := d.status != nil && d.status.Connected()
		if err := d.reply(channel.StatusMessage(connected)); err != nil {
			out.Kind = OutcomeSendFailed
			return out
		}

	default:
		out.Kind = OutcomeUnknownCommand
		return out
	}

	out.Kind = OutcomeExecuted
	return out
}

func (d *Dispatcher) reply(body []byte) error {
	if d.sender == nil {
		return device.ErrNotConnected
	}
	if err := d.sender.Send(d.codec.EncodeOutgoing(body)); err != nil {
		log.Warn().Err(err).Msg("Failed to send reply")
		return err
	}
	return nil
}

func (d *Dispatcher) report(o Outcome) Outcome {
	ev := log.Info()
	if !o.OK() {
		ev = log.Warn()
	}
	ev.Str("outcome", o.Kind.String()).Str("action", o.Action.String()).Msg("Command handled")
	return o
}

// passwordsMatch compares fixed-size digests so the comparison time does
// not depend on either length.
func passwordsMatch(given, want string) bool {
	a := sha256.Sum256([]byte(given))
	b := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

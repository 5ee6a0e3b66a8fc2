package command

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/doorlock/pkg/channel"
	"github.com/urmzd/doorlock/pkg/db"
	"github.com/urmzd/doorlock/pkg/device"
	"github.com/urmzd/doorlock/pkg/keys"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fakeSettings struct {
	password string
	ssid     string
	wifiPass string
	server   string
	writes   int
	err      error
}

func (f *fakeSettings) PresetPassword() string { return f.password }

func (f *fakeSettings) UpdateWiFi(_ context.Context, ssid, password string) error {
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.ssid, f.wifiPass = ssid, password
	return nil
}

func (f *fakeSettings) UpdateServer(_ context.Context, address string) error {
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.server = address
	return nil
}

func (f *fakeSettings) UpdatePresetPassword(_ context.Context, password string) error {
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.password = password
	return nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

type fakeRestarter struct {
	reasons []string
}

func (f *fakeRestarter) RequestRestart(reason string) {
	f.reasons = append(f.reasons, reason)
}

type staticStatus bool

func (s staticStatus) Connected() bool { return bool(s) }

type staticKey []byte

func (k staticKey) PublicKeyPEM() []byte { return k }

type fixture struct {
	d         *Dispatcher
	settings  *fakeSettings
	actuator  *device.MemoryActuator
	sender    *fakeSender
	restarter *fakeRestarter
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		settings:  &fakeSettings{password: "s3cret"},
		actuator:  device.NewMemoryActuator(),
		sender:    &fakeSender{},
		restarter: &fakeRestarter{},
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	f.d = NewDispatcher(Deps{
		DoorID:    "door-1",
		Codec:     channel.NewCodec(nil),
		Settings:  f.settings,
		Actuator:  f.actuator,
		Sender:    f.sender,
		Restarter: f.restarter,
		Status:    staticStatus(true),
		PublicKey: staticKey("-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n"),
	}, opts...)
	return f
}

func commandJSON(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	return b
}

func valid(action string, extra map[string]any) map[string]any {
	m := map[string]any{
		"command":   action,
		"timestamp": testNow.Unix(),
		"password":  "s3cret",
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func TestHandle_UnlockAndLock(t *testing.T) {
	f := newFixture(t)

	out := f.d.Handle(context.Background(), commandJSON(t, valid("unlock", nil)))
	assert.Equal(t, Outcome{Kind: OutcomeExecuted, Action: ActionUnlock}, out)
	assert.False(t, f.actuator.Locked())

	out = f.d.Handle(context.Background(), commandJSON(t, valid("LOCK", nil)))
	assert.Equal(t, Outcome{Kind: OutcomeExecuted, Action: ActionLock}, out)
	assert.True(t, f.actuator.Locked())

	assert.Equal(t, 2, f.actuator.Calls())
	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.restarter.reasons)
	assert.Zero(t, f.settings.writes)
}

func TestHandle_RepeatedCommandsAreIdempotent(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		require.True(t, f.d.Handle(context.Background(), commandJSON(t, valid("unlock", nil))).OK())
		assert.False(t, f.actuator.Locked())
	}
	for i := 0; i < 3; i++ {
		require.True(t, f.d.Handle(context.Background(), commandJSON(t, valid("lock", nil))).OK())
		assert.True(t, f.actuator.Locked())
	}
}

func TestHandle_WrongPasswordNeverMutates(t *testing.T) {
	f := newFixture(t)

	payloads := []map[string]any{
		{"command": "unlock", "timestamp": testNow.Unix(), "password": "wrong"},
		{"command": "unlock", "timestamp": testNow.Unix(), "password": ""},
		{"command": "unlock", "timestamp": testNow.Unix(), "password": "s3cret "},
		{"command": "updateWifi", "timestamp": testNow.Unix(), "password": "S3CRET", "newSSID": "evil", "newPassword": "x"},
		{"command": "updateServer", "timestamp": "not a time", "password": "nope", "newServerAddress": "ws://evil/"},
		{"command": "bogus", "timestamp": testNow.Unix(), "password": "nope"},
	}
	for _, p := range payloads {
		out := f.d.Handle(context.Background(), commandJSON(t, p))
		assert.Equal(t, OutcomeAuthFailed, out.Kind, "payload %v", p)
		assert.True(t, out.Rejected())
	}

	assert.True(t, f.actuator.Locked())
	assert.Zero(t, f.actuator.Calls())
	assert.Zero(t, f.settings.writes)
	assert.Empty(t, f.restarter.reasons)
	assert.Empty(t, f.sender.sent)
}

func TestHandle_ParseErrors(t *testing.T) {
	f := newFixture(t)

	for _, text := range []string{
		``,
		`not json`,
		`[]`,
		`{"command":"unlock","password":"s3cret"}`,
		`{"command":"","timestamp":1,"password":"s3cret"}`,
		`{"command":"unlock","timestamp":true,"password":"s3cret"}`,
		`{"command":"updateWifi","timestamp":1,"password":"s3cret"}`,
		`{"command":"updateServer","timestamp":1,"password":"s3cret"}`,
		`{"command":"UPDATEPRESETPASSWORD","timestamp":1,"password":"s3cret"}`,
		`{"command":"updateWifi","timestamp":1,"password":"s3cret","newSSID":"","newPassword":"x"}`,
		`{"command":"updateServer","timestamp":1,"password":"s3cret","newServerAddress":""}`,
		`{"command":"unlock","timestamp":1,"password":"s3cret","newSSID":7}`,
	} {
		out := f.d.Handle(context.Background(), []byte(text))
		assert.Equal(t, OutcomeParseError, out.Kind, "input %q", text)
	}
	assert.Zero(t, f.actuator.Calls())
}

func TestHandle_IgnoresStrayUpdateFields(t *testing.T) {
	f := newFixture(t)

	out := f.d.Handle(context.Background(), commandJSON(t, valid("unlock", map[string]any{
		"newSSID":           "",
		"newPassword":       "",
		"newServerAddress":  "",
		"newPresetPassword": "",
	})))
	assert.Equal(t, Outcome{Kind: OutcomeExecuted, Action: ActionUnlock}, out)
	assert.False(t, f.actuator.Locked())

	out = f.d.Handle(context.Background(), commandJSON(t, valid("lock", map[string]any{"newSSID": ""})))
	assert.Equal(t, Outcome{Kind: OutcomeExecuted, Action: ActionLock}, out)
	assert.Zero(t, f.settings.writes)
}

func TestHandle_ReplayWindow(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		timestamp any
		want      OutcomeKind
	}{
		{"now epoch seconds", testNow.Unix(), OutcomeExecuted},
		{"now epoch millis", testNow.UnixMilli(), OutcomeExecuted},
		{"numeric string", fmt.Sprint(testNow.Unix()), OutcomeExecuted},
		{"iso string", testNow.Format(time.RFC3339), OutcomeExecuted},
		{"iso with offset", testNow.In(time.FixedZone("EST", -5*3600)).Format(time.RFC3339), OutcomeExecuted},
		{"exactly window past", testNow.Add(-300 * time.Second).Unix(), OutcomeExecuted},
		{"exactly window future", testNow.Add(300 * time.Second).Unix(), OutcomeExecuted},
		{"just past window", testNow.Add(-301 * time.Second).Unix(), OutcomeExpired},
		{"just future window", testNow.Add(301 * time.Second).Unix(), OutcomeExpired},
		{"far past millis", testNow.Add(-time.Hour).UnixMilli(), OutcomeExpired},
		{"iso expired", testNow.Add(-10 * time.Minute).Format(time.RFC3339), OutcomeExpired},
		{"garbage", "yesterday", OutcomeBadTimestamp},
		{"empty", "", OutcomeBadTimestamp},
		{"negative", -5, OutcomeBadTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid("lock", map[string]any{"timestamp": tt.timestamp})
			out := f.d.Handle(context.Background(), commandJSON(t, p))
			assert.Equal(t, tt.want, out.Kind)
		})
	}
}

func TestHandle_CustomReplayWindow(t *testing.T) {
	f := newFixture(t, WithReplayWindow(30*time.Second))

	p := valid("unlock", map[string]any{"timestamp": testNow.Add(-time.Minute).Unix()})
	assert.Equal(t, OutcomeExpired, f.d.Handle(context.Background(), commandJSON(t, p)).Kind)
	assert.True(t, f.actuator.Locked())
}

func TestHandle_UpdateWiFiPersistsThenRestarts(t *testing.T) {
	f := newFixture(t)

	p := valid("updateWifi", map[string]any{"newSSID": "office", "newPassword": "hunter22"})
	out := f.d.Handle(context.Background(), commandJSON(t, p))

	assert.Equal(t, Outcome{Kind: OutcomeRestartPending, Action: ActionUpdateWiFi}, out)
	assert.True(t, out.OK())
	assert.Equal(t, "office", f.settings.ssid)
	assert.Equal(t, "hunter22", f.settings.wifiPass)
	assert.Equal(t, []string{"updateWifi"}, f.restarter.reasons)
	assert.True(t, f.actuator.Locked())
}

func TestHandle_UpdateServerAndPresetPassword(t *testing.T) {
	f := newFixture(t)

	p := valid("updateServer", map[string]any{"newServerAddress": "ws://10.0.0.2:9000/"})
	require.Equal(t, OutcomeRestartPending, f.d.Handle(context.Background(), commandJSON(t, p)).Kind)
	assert.Equal(t, "ws://10.0.0.2:9000/", f.settings.server)

	p = valid("updatePresetPassword", map[string]any{"newPresetPassword": "rotated"})
	require.Equal(t, OutcomeRestartPending, f.d.Handle(context.Background(), commandJSON(t, p)).Kind)
	assert.Equal(t, "rotated", f.settings.password)

	// The old password no longer authenticates.
	assert.Equal(t, OutcomeAuthFailed, f.d.Handle(context.Background(), commandJSON(t, valid("lock", nil))).Kind)
	assert.Len(t, f.restarter.reasons, 2)
}

func TestHandle_PersistFailureDoesNotRestart(t *testing.T) {
	f := newFixture(t)
	f.settings.err = errors.New("disk full")

	p := valid("updateServer", map[string]any{"newServerAddress": "ws://10.0.0.2/"})
	out := f.d.Handle(context.Background(), commandJSON(t, p))

	assert.Equal(t, OutcomePersistFailed, out.Kind)
	assert.False(t, out.OK())
	assert.False(t, out.Rejected())
	assert.Empty(t, f.restarter.reasons)
}

func TestHandle_GetStatus(t *testing.T) {
	f := newFixture(t)

	out := f.d.Handle(context.Background(), commandJSON(t, valid("getStatus", nil)))
	assert.Equal(t, Outcome{Kind: OutcomeExecuted, Action: ActionGetStatus}, out)
	assert.Equal(t, []string{`{"status":"connected"}`}, f.sender.sent)

	f.d.status = staticStatus(false)
	f.d.Handle(context.Background(), commandJSON(t, valid("getstatus", nil)))
	assert.Equal(t, `{"status":"disconnected"}`, f.sender.sent[1])
	assert.Zero(t, f.actuator.Calls())
}

func TestHandle_GetPublicKey(t *testing.T) {
	f := newFixture(t)

	out := f.d.Handle(context.Background(), commandJSON(t, valid("getPublicKey", nil)))
	assert.Equal(t, OutcomeExecuted, out.Kind)
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0], "BEGIN PUBLIC KEY")
}

func TestHandle_SendFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("broken pipe")

	out := f.d.Handle(context.Background(), commandJSON(t, valid("getStatus", nil)))
	assert.Equal(t, OutcomeSendFailed, out.Kind)
}

func TestHandle_Misaddressed(t *testing.T) {
	f := newFixture(t)

	out := f.d.Handle(context.Background(), commandJSON(t, valid("unlock", map[string]any{"doorId": "door-2"})))
	assert.Equal(t, OutcomeMisaddressed, out.Kind)
	assert.True(t, f.actuator.Locked())

	out = f.d.Handle(context.Background(), commandJSON(t, valid("unlock", map[string]any{"doorId": "door-1"})))
	assert.Equal(t, OutcomeExecuted, out.Kind)
	assert.False(t, f.actuator.Locked())
}

func TestHandle_UnknownCommand(t *testing.T) {
	f := newFixture(t)

	out := f.d.Handle(context.Background(), commandJSON(t, valid("openSesame", nil)))
	assert.Equal(t, Outcome{Kind: OutcomeUnknownCommand, Action: ActionUnknown}, out)
	assert.True(t, out.Rejected())
	assert.Zero(t, f.actuator.Calls())
	assert.Empty(t, f.sender.sent)
}

type failingActuator struct{ device.MemoryActuator }

func (a *failingActuator) SetLocked(bool) error { return device.ErrClosed }

func TestHandle_ActuatorFailure(t *testing.T) {
	f := newFixture(t)
	f.d.actuator = &failingActuator{}

	out := f.d.Handle(context.Background(), commandJSON(t, valid("unlock", nil)))
	assert.Equal(t, OutcomeActuatorFailed, out.Kind)
}

func TestHandleEnvelope_EndToEnd(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "dispatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx))

	km := keys.NewManager(database.Settings())
	_, err = km.EnsureKeyPair(ctx)
	require.NoError(t, err)

	defaults := db.DefaultDeviceConfig()
	defaults.PresetPassword = "s3cret"
	settings, err := db.LoadDeviceSettings(ctx, database.Settings(), defaults)
	require.NoError(t, err)

	actuator := device.NewMemoryActuator()
	restarter := &fakeRestarter{}
	d := NewDispatcher(Deps{
		Codec:     channel.NewCodec(km),
		Settings:  settings,
		Actuator:  actuator,
		Sender:    &fakeSender{},
		Restarter: restarter,
		PublicKey: km,
	}, WithClock(func() time.Time { return testNow }))

	envelope, err := channel.Seal(km.PublicKeyPEM(), commandJSON(t, valid("unlock", nil)), km.Padding())
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, d.HandleEnvelope(ctx, envelope).Kind)
	assert.False(t, actuator.Locked())

	// Corrupted middle byte: decodes as base64, fails decryption.
	ciphertext, err := base64.StdEncoding.DecodeString(envelope)
	require.NoError(t, err)
	ciphertext[len(ciphertext)/2] ^= 0xff
	require.NoError(t, actuator.SetLocked(true))
	calls := actuator.Calls()

	out := d.HandleEnvelope(ctx, base64.StdEncoding.EncodeToString(ciphertext))
	assert.Equal(t, OutcomeCodecError, out.Kind)
	assert.True(t, actuator.Locked())
	assert.Equal(t, calls, actuator.Calls())

	assert.Equal(t, OutcomeCodecError, d.HandleEnvelope(ctx, "!!!").Kind)

	// updateWifi persists to the store before restarting.
	wifi := valid("updateWifi", map[string]any{"newSSID": "lab", "newPassword": "pw123456"})
	envelope, err = channel.Seal(km.PublicKeyPEM(), commandJSON(t, wifi), km.Padding())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRestartPending, d.HandleEnvelope(ctx, envelope).Kind)
	assert.Equal(t, []string{"updateWifi"}, restarter.reasons)

	ssid, err := database.Settings().Get(ctx, db.KeyWiFiSSID)
	require.NoError(t, err)
	assert.Equal(t, "lab", ssid)
}

func TestParseAction(t *testing.T) {
	assert.Equal(t, ActionUpdateWiFi, ParseAction("UpdateWiFi"))
	assert.Equal(t, ActionGetPublicKey, ParseAction("getpublickey"))
	assert.Equal(t, ActionUnknown, ParseAction("reboot"))
	assert.True(t, ActionUpdateServer.RequiresRestart())
	assert.False(t, ActionUnlock.RequiresRestart())
	assert.Equal(t, "unknown", ActionUnknown.String())
}

func TestPasswordsMatch(t *testing.T) {
	assert.True(t, passwordsMatch("abc", "abc"))
	assert.False(t, passwordsMatch("abc", "abd"))
	assert.False(t, passwordsMatch("", "abc"))
	assert.True(t, passwordsMatch("", ""))
}

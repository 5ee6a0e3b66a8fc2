package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

type fakeNetwork struct {
	failAssociate int // remaining failures, -1 for always
	associations  int
	up            bool
}

func (n *fakeNetwork) Associate(context.Context) error {
	n.associations++
	if n.failAssociate != 0 {
		if n.failAssociate > 0 {
			n.failAssociate--
		}
		return errDown
	}
	n.up = true
	return nil
}

func (n *fakeNetwork) IsUp(context.Context) bool { return n.up }

type fakeChannel struct {
	failConnect int
	connects    int
	connected   bool
	pings       int
	pingErr     error
	closes      int
}

func (c *fakeChannel) Connect(context.Context) error {
	c.connects++
	if c.failConnect != 0 {
		if c.failConnect > 0 {
			c.failConnect--
		}
		return errDown
	}
	c.connected = true
	return nil
}

func (c *fakeChannel) IsConnected() bool { return c.connected }

func (c *fakeChannel) Ping() error {
	if c.pingErr != nil {
		return c.pingErr
	}
	c.pings++
	return nil
}

func (c *fakeChannel) Close() error {
	c.closes++
	c.connected = false
	return nil
}

type countingRestarter struct {
	reasons []string
}

func (r *countingRestarter) RequestRestart(reason string) {
	r.reasons = append(r.reasons, reason)
}

type harness struct {
	sup       *Supervisor
	net       *fakeNetwork
	ch        *fakeChannel
	restarter *countingRestarter
	now       time.Time
}

func newHarness(cfg Config, opts ...Option) *harness {
	h := &harness{
		net:       &fakeNetwork{},
		ch:        &fakeChannel{},
		restarter: &countingRestarter{},
		now:       time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
	}
	h.sup = New(cfg, h.net, h.ch, h.restarter, opts...)
	return h
}

// step advances the clock past any retry delay and ticks once.
func (h *harness) step() {
	h.now = h.now.Add(5 * time.Second)
	h.sup.Tick(context.Background(), h.now)
}

func TestSupervisor_InitialState(t *testing.T) {
	h := newHarness(DefaultConfig())

	assert.Equal(t, NetworkDown, h.sup.State())
	assert.False(t, h.sup.Connected())
	snap := h.sup.Snapshot()
	assert.False(t, snap.NetworkUp)
	assert.False(t, snap.ChannelUp)
}

func TestSupervisor_HappyPath(t *testing.T) {
	var transitions []string
	h := newHarness(DefaultConfig(), WithStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))

	h.step()
	assert.Equal(t, NetworkUp, h.sup.State())
	h.step()
	assert.Equal(t, ChannelUp, h.sup.State())
	assert.True(t, h.sup.Connected())

	h.step()
	assert.Equal(t, 1, h.net.associations)
	assert.Equal(t, 1, h.ch.connects)
	assert.Equal(t, []string{"NETWORK_DOWN->NETWORK_UP", "NETWORK_UP->CHANNEL_UP"}, transitions)
	assert.Empty(t, h.restarter.reasons)
}

func TestSupervisor_NetworkBudgetExhaustion(t *testing.T) {
	h := newHarness(Config{NetworkRetryBudget: 20, ChannelRetryBudget: 10})
	h.net.failAssociate = -1

	for i := 1; i <= 20; i++ {
		h.step()
		require.Empty(t, h.restarter.reasons, "restart after %d failures", i)
		assert.Equal(t, i, h.sup.Snapshot().ConsecutiveFailures)
	}

	h.step()
	assert.Equal(t, 21, h.net.associations)
	assert.Equal(t, []string{"network retry budget exhausted"}, h.restarter.reasons)
	assert.Equal(t, 1, h.sup.Snapshot().Restarts)
	assert.Zero(t, h.sup.Snapshot().ConsecutiveFailures)
	assert.Equal(t, NetworkDown, h.sup.State())
}

func TestSupervisor_NetworkRecoversWithinBudget(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.net.failAssociate = 20

	for i := 0; i < 21; i++ {
		h.step()
	}
	assert.Equal(t, NetworkUp, h.sup.State())
	assert.Empty(t, h.restarter.reasons)
	assert.Zero(t, h.sup.Snapshot().ConsecutiveFailures)
}

func TestSupervisor_ChannelBudgetExhaustion(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.ch.failConnect = -1

	h.step()
	require.Equal(t, NetworkUp, h.sup.State())

	for i := 1; i <= 10; i++ {
		h.step()
		require.Equal(t, ChannelDown, h.sup.State())
		require.Empty(t, h.restarter.reasons, "restart after %d failures", i)
	}

	h.step()
	assert.Equal(t, []string{"channel retry budget exhausted"}, h.restarter.reasons)
	assert.Equal(t, 1, h.net.associations)
}

func TestSupervisor_ChannelBudgetSurvivesNetworkFlaps(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.ch.failConnect = -1

	for i := 1; i <= 200 && len(h.restarter.reasons) == 0; i++ {
		h.step()
		if i%4 == 0 {
			h.net.up = false
		}
	}

	assert.Equal(t, []string{"channel retry budget exhausted"}, h.restarter.reasons)
	assert.Equal(t, 11, h.ch.connects)
	assert.Greater(t, h.net.associations, 1)
	assert.Zero(t, h.sup.Snapshot().ConsecutiveFailures)
}

func TestSupervisor_RetryDelay(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.net.failAssociate = -1
	ctx := context.Background()

	h.sup.Tick(ctx, h.now)
	require.Equal(t, 1, h.net.associations)

	h.sup.Tick(ctx, h.now.Add(499*time.Millisecond))
	assert.Equal(t, 1, h.net.associations)

	h.sup.Tick(ctx, h.now.Add(500*time.Millisecond))
	assert.Equal(t, 2, h.net.associations)
}

func TestSupervisor_ChannelDownChecksNetwork(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.ch.failConnect = 1

	h.step()
	h.step()
	require.Equal(t, ChannelDown, h.sup.State())

	h.net.up = false
	h.step()
	assert.Equal(t, NetworkDown, h.sup.State())
	assert.Equal(t, 1, h.ch.connects)
}

func TestSupervisor_ReconcileDetectsDrops(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.step()
	h.step()
	require.Equal(t, ChannelUp, h.sup.State())

	// Nothing has changed.
	h.sup.Reconcile(context.Background(), h.now)
	assert.Equal(t, ChannelUp, h.sup.State())

	// Channel silently dropped.
	h.ch.connected = false
	h.sup.Reconcile(context.Background(), h.now)
	assert.Equal(t, ChannelDown, h.sup.State())

	h.step()
	require.Equal(t, ChannelUp, h.sup.State())

	// Network silently dropped.
	h.net.up = false
	h.sup.Reconcile(context.Background(), h.now)
	assert.Equal(t, NetworkDown, h.sup.State())
	assert.False(t, h.ch.connected)

	h.step()
	h.step()
	assert.Equal(t, ChannelUp, h.sup.State())
	assert.Equal(t, 2, h.net.associations)
}

func TestSupervisor_HeartbeatOnlyWhenChannelUp(t *testing.T) {
	h := newHarness(DefaultConfig())

	assert.False(t, h.sup.Heartbeat(h.now))
	h.step()
	assert.False(t, h.sup.Heartbeat(h.now))
	h.step()
	assert.True(t, h.sup.Heartbeat(h.now))
	assert.Equal(t, 1, h.ch.pings)

	h.ch.pingErr = errDown
	assert.False(t, h.sup.Heartbeat(h.now))
	assert.Equal(t, ChannelDown, h.sup.State())
	assert.Equal(t, 1, h.ch.pings)
}

func TestSupervisor_NotifyChannelLost(t *testing.T) {
	h := newHarness(DefaultConfig())

	h.sup.NotifyChannelLost(h.now)
	assert.Equal(t, NetworkDown, h.sup.State())

	h.step()
	h.step()
	h.sup.NotifyChannelLost(h.now)
	assert.Equal(t, ChannelDown, h.sup.State())
	assert.Equal(t, 1, h.ch.closes)
}

func TestSupervisor_EscalationResetsCounters(t *testing.T) {
	h := newHarness(Config{NetworkRetryBudget: 2, ChannelRetryBudget: 1})
	h.net.failAssociate = -1

	for i := 0; i < 6; i++ {
		h.step()
	}
	assert.Len(t, h.restarter.reasons, 2)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "CHANNEL_UP", ChannelUp.String())
	text, err := NetworkDown.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "NETWORK_DOWN", string(text))
}

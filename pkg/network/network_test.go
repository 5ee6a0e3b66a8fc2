package network

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls  [][]string
	output string
	err    error
}

func (r *recorder) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return []byte(r.output), r.err
}

func TestNMCLI_Associate(t *testing.T) {
	r := &recorder{}
	n := NewNMCLI("wlan0", WithRunner(r.run))

	require.NoError(t, n.Associate(context.Background(), Credentials{SSID: "office", Password: "pw"}))
	require.Len(t, r.calls, 1)
	assert.Equal(t, "nmcli device wifi connect office password pw ifname wlan0", strings.Join(r.calls[0], " "))
}

func TestNMCLI_AssociateOpenNetwork(t *testing.T) {
	r := &recorder{}
	n := NewNMCLI("", WithRunner(r.run))

	require.NoError(t, n.Associate(context.Background(), Credentials{SSID: "guest"}))
	assert.Equal(t, []string{"nmcli", "device", "wifi", "connect", "guest"}, r.calls[0])
}

func TestNMCLI_AssociateErrors(t *testing.T) {
	r := &recorder{output: "Error: secrets were required for pw", err: errors.New("exit status 4")}
	n := NewNMCLI("wlan0", WithRunner(r.run))

	err := n.Associate(context.Background(), Credentials{SSID: "office", Password: "pw"})
	assert.ErrorIs(t, err, ErrAssociation)
	assert.NotContains(t, err.Error(), "pw ")

	assert.ErrorIs(t, n.Associate(context.Background(), Credentials{}), ErrNoSSID)
}

func TestNMCLI_IsUp(t *testing.T) {
	tests := []struct {
		name   string
		iface  string
		output string
		err    error
		want   bool
	}{
		{"global connected", "", "connected\n", nil, true},
		{"global connecting", "", "connecting\n", nil, false},
		{"global limited", "", "connected (site only)\n", nil, false},
		{"device connected", "wlan0", "GENERAL.STATE:100 (connected)\n", nil, true},
		{"device disconnected", "wlan0", "GENERAL.STATE:30 (disconnected)\n", nil, false},
		{"command failed", "wlan0", "", errors.New("not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{output: tt.output, err: tt.err}
			n := NewNMCLI(tt.iface, WithRunner(r.run))
			assert.Equal(t, tt.want, n.IsUp(context.Background()))
		})
	}
}

func TestLink(t *testing.T) {
	r := &recorder{output: "connected"}
	l := NewLink(NewNMCLI("", WithRunner(r.run)), Credentials{SSID: "lab", Password: "secret"})

	require.NoError(t, l.Associate(context.Background()))
	assert.True(t, l.IsUp(context.Background()))
	assert.Contains(t, r.calls[0], "lab")

	s := NewLink(Static{}, Credentials{})
	require.NoError(t, s.Associate(context.Background()))
	assert.True(t, s.IsUp(context.Background()))
}

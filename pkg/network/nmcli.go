package network

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NMCLI manages WiFi through NetworkManager's command-line client.
type NMCLI struct {
	iface string
	run   Runner
}

// NMCLIOption configures an NMCLI.
type NMCLIOption func(*NMCLI)

// WithRunner replaces the command runner.
func WithRunner(r Runner) NMCLIOption {
	return func(n *NMCLI) { n.run = r }
}

// NewNMCLI creates an NMCLI bound to iface. An empty iface lets
// NetworkManager choose.
func NewNMCLI(iface string, opts ...NMCLIOption) *NMCLI {
	n := &NMCLI{iface: iface, run: execRunner}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Associate connects to the network named by creds.
func (n *NMCLI) Associate(ctx context.Context, creds Credentials) error {
	if creds.SSID == "" {
		return ErrNoSSID
	}

	args := []string{"device", "wifi", "connect", creds.SSID}
	if creds.Password != "" {
		args = append(args, "password", creds.Password)
	}
	if n.iface != "" {
		args = append(args, "ifname", n.iface)
	}

	out, err := n.run(ctx, "nmcli", args...)
	if err != nil {
		// Output may echo the command line; keep it out of the error.
		log.Debug().Str("ssid", creds.SSID).Str("output", redact(string(out), creds.Password)).Msg("nmcli connect failed")
		return fmt.Errorf("%w: %s: %v", ErrAssociation, creds.SSID, err)
	}
	return nil
}

// IsUp reports whether NetworkManager has full connectivity on the
// interface, or globally when no interface is set.
func (n *NMCLI) IsUp(ctx context.Context) bool {
	if n.iface != "" {
		out, err := n.run(ctx, "nmcli", "-t", "-f", "GENERAL.STATE", "device", "show", n.iface)
		if err != nil {
			return false
		}
		// GENERAL.STATE:100 (connected)
		return strings.Contains(string(out), ":100")
	}

	out, err := n.run(ctx, "nmcli", "-t", "-f", "STATE", "general")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "connected"
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "****")
}

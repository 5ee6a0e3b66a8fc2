// Package network associates the device with its configured network.
package network

import (
	"context"
	"errors"
)

var (
	// ErrNoSSID indicates credentials without a network name
	ErrNoSSID = errors.New("no SSID configured")

	// ErrAssociation indicates the network manager rejected the connection
	ErrAssociation = errors.New("network association failed")
)

// Credentials identify the network to join.
type Credentials struct {
	SSID     string
	Password string
}

// Network joins a network and reports link state.
type Network interface {
	Associate(ctx context.Context, creds Credentials) error
	IsUp(ctx context.Context) bool
}

// Link binds a Network to fixed credentials.
type Link struct {
	net   Network
	creds Credentials
}

// NewLink creates a link that joins net with creds.
func NewLink(net Network, creds Credentials) *Link {
	return &Link{net: net, creds: creds}
}

// Associate joins the configured network.
func (l *Link) Associate(ctx context.Context) error {
	return l.net.Associate(ctx, l.creds)
}

// IsUp reports whether the network is connected.
func (l *Link) IsUp(ctx context.Context) bool {
	return l.net.IsUp(ctx)
}

// Static is a Network for hosts whose connectivity is managed elsewhere,
// such as wired installs and development machines.
type Static struct{}

func (Static) Associate(context.Context, Credentials) error { return nil }

func (Static) IsUp(context.Context) bool { return true }


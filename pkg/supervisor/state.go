package supervisor

import "time"

// State is the connectivity state of the device.
type State uint8

const (
	NetworkDown State = iota
	NetworkUp
	ChannelDown
	ChannelUp
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NetworkDown:
		return "NETWORK_DOWN"
	case NetworkUp:
		return "NETWORK_UP"
	case ChannelDown:
		return "CHANNEL_DOWN"
	case ChannelUp:
		return "CHANNEL_UP"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnectionState is a point-in-time view of the supervisor.
type ConnectionState struct {
	State               State     `json:"state"`
	NetworkUp           bool      `json:"network_up"`
	ChannelUp           bool      `json:"channel_up"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Restarts            int       `json:"restarts"`
	Since               time.Time `json:"since"`
}

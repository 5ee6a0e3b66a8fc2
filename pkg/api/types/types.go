package types

import "time"

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Network   string    `json:"network"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionResponse describes the connectivity supervisor state
type ConnectionResponse struct {
	State               string    `json:"state"`
	NetworkUp           bool      `json:"network_up"`
	ChannelUp           bool      `json:"channel_up"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Restarts            int       `json:"restarts"`
	Since               time.Time `json:"since"`
}

// StatusResponse is returned from GET /status
type StatusResponse struct {
	DoorID         string             `json:"door_id"`
	Locked         bool               `json:"locked"`
	Connection     ConnectionResponse `json:"connection"`
	LastOutcome    string             `json:"last_outcome,omitempty"`
	LastMessageAt  *time.Time         `json:"last_message_at,omitempty"`
	RestartPending bool               `json:"restart_pending"`
	StartedAt      time.Time          `json:"started_at"`
	Timestamp      time.Time          `json:"timestamp"`
}

// PublicKeyResponse is returned from GET /public-key
type PublicKeyResponse struct {
	DoorID    string `json:"door_id"`
	PublicKey string `json:"public_key"`
	Padding   string `json:"padding"`
}

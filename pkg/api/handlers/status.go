package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/doorlock/pkg/agent"
	"github.com/urmzd/doorlock/pkg/api/types"
	"github.com/urmzd/doorlock/pkg/keys"
)

// StatusSource provides agent snapshots
type StatusSource interface {
	Status() agent.Status
}

// PublicKeySource provides the device public key
type PublicKeySource interface {
	PublicKeyPEM() []byte
	Padding() keys.Padding
}

// StatusHandler handles read-only device state endpoints
type StatusHandler struct {
	source StatusSource
	keys   PublicKeySource
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(source StatusSource, keys PublicKeySource) *StatusHandler {
	return &StatusHandler{source: source, keys: keys}
}

// GetStatus handles GET /status
// @Summary      Device status
// @Description  Returns lock state, connectivity and the outcome of the last command
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *StatusHandler) GetStatus(c *gin.Context) {
	s := h.source.Status()

	resp := types.StatusResponse{
		DoorID: s.DoorID,
		Locked: s.Locked,
		Connection: types.ConnectionResponse{
			State:               s.Connection.State.String(),
			NetworkUp:           s.Connection.NetworkUp,
			ChannelUp:           s.Connection.ChannelUp,
			ConsecutiveFailures: s.Connection.ConsecutiveFailures,
			Restarts:            s.Connection.Restarts,
			Since:               s.Connection.Since,
		},
		LastOutcome:    s.LastOutcome,
		RestartPending: s.RestartPending,
		StartedAt:      s.StartedAt,
		Timestamp:      time.Now(),
	}
	if !s.LastMessageAt.IsZero() {
		at := s.LastMessageAt
		resp.LastMessageAt = &at
	}

	c.JSON(http.StatusOK, resp)
}

// GetPublicKey handles GET /public-key
// @Summary      Device public key
// @Description  Returns the PEM public key coordinators encrypt commands to
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.PublicKeyResponse
// @Failure      503  {object}  types.ErrorResponse  "Key pair not loaded yet"
// @Router       /public-key [get]
func (h *StatusHandler) GetPublicKey(c *gin.Context) {
	pem := h.keys.PublicKeyPEM()
	if len(pem) == 0 {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "key_unavailable",
			Message: "Key pair has not been loaded yet",
		})
		return
	}

	c.JSON(http.StatusOK, types.PublicKeyResponse{
		DoorID:    h.source.Status().DoorID,
		PublicKey: string(pem),
		Padding:   h.keys.Padding().String(),
	})
}

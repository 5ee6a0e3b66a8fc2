package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/doorlock/pkg/api/types"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	source StatusSource
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(source StatusSource) *HealthHandler {
	return &HealthHandler{source: source}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns healthy when the device is connected to its coordinator
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Channel is up"
// @Failure      503  {object}  types.HealthResponse  "Network or channel is down"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	conn := h.source.Status().Connection

	network := "disconnected"
	if conn.NetworkUp {
		network = "connected"
	}
	channel := "disconnected"
	if conn.ChannelUp {
		channel = "connected"
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if !conn.ChannelUp {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:    status,
		Network:   network,
		Channel:   channel,
		Timestamp: time.Now(),
	})
}

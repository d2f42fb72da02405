package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/byhat/loracore/pkg/api/types"
	"github.com/byhat/loracore/pkg/link"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	link link.Link
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(lnk link.Link) *HealthHandler {
	return &HealthHandler{link: lnk}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns the health status of the API and the radio link
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Service is healthy"
// @Failure      503  {object}  types.HealthResponse  "Service is degraded"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	linkStatus := "disconnected"
	if h.link.IsConnected() {
		linkStatus = "connected"
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if linkStatus != "connected" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:    status,
		Link:      linkStatus,
		Timestamp: time.Now(),
	})
}

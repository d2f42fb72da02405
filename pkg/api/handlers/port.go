package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/byhat/loracore/pkg/api/types"
	"github.com/byhat/loracore/pkg/link"
	"github.com/byhat/loracore/pkg/lora"
)

// PortHandler handles serial port lifecycle endpoints
type PortHandler struct {
	link link.Link
}

// NewPortHandler creates a new port handler
func NewPortHandler(lnk link.Link) *PortHandler {
	return &PortHandler{link: lnk}
}

func portResponse(s link.Status) types.PortResponse {
	return types.PortResponse{
		Device:    s.Device,
		Baud:      s.Baud,
		Connected: s.Connected,
		Sending:   s.Sending,
	}
}

// Status handles GET /port
// @Summary      Port status
// @Description  Returns the serial port and transport status
// @Tags         port
// @Produce      json
// @Success      200  {object}  types.PortResponse
// @Router       /port [get]
func (h *PortHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, portResponse(h.link.Status()))
}

// Open handles POST /port/open
// @Summary      Open the serial port
// @Description  Opens the serial device and binds the transport to it
// @Tags         port
// @Accept       json
// @Produce      json
// @Param        request  body      types.OpenPortRequest  true  "Device path and baud rate"
// @Success      200      {object}  types.PortResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      409      {object}  types.ErrorResponse  "Port already open"
// @Failure      500      {object}  types.ErrorResponse  "Open failed"
// @Router       /port/open [post]
func (h *PortHandler) Open(c *gin.Context) {
	var req types.OpenPortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Request must include a device path",
		})
		return
	}
	if req.Baud == 0 {
		req.Baud = lora.DefaultBaud
	}

	if err := h.link.OpenPort(c.Request.Context(), req.Device, req.Baud); err != nil {
		if errors.Is(err, link.ErrPortOpen) {
			c.JSON(http.StatusConflict, types.ErrorResponse{
				Error:   "port_open",
				Message: "A port is already open; close it first",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "open_failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, portResponse(h.link.Status()))
}

// Close handles POST /port/close
// @Summary      Close the serial port
// @Description  Closes the serial device. Closing a closed port is a no-op.
// @Tags         port
// @Produce      json
// @Success      200  {object}  types.PortResponse
// @Failure      500  {object}  types.ErrorResponse  "Close failed"
// @Router       /port/close [post]
func (h *PortHandler) Close(c *gin.Context) {
	if err := h.link.ClosePort(); err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "close_failed",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, portResponse(h.link.Status()))
}

// Stats handles GET /port/stats
// @Summary      Link statistics
// @Description  Returns the transport's monotonic counters
// @Tags         port
// @Produce      json
// @Success      200  {object}  types.StatsResponse
// @Router       /port/stats [get]
func (h *PortHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, types.StatsResponse{
		Stats:     h.link.Stats(),
		Timestamp: time.Now(),
	})
}

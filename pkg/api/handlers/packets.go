package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/byhat/loracore/pkg/api/types"
	"github.com/byhat/loracore/pkg/link"
)

// PacketsHandler handles packet send and event stream endpoints
type PacketsHandler struct {
	link       link.Link
	subscriber link.EventSubscriber
}

// NewPacketsHandler creates a new packets handler
func NewPacketsHandler(lnk link.Link, subscriber link.EventSubscriber) *PacketsHandler {
	return &PacketsHandler{
		link:       lnk,
		subscriber: subscriber,
	}
}

// Send handles POST /packets
// @Summary      Send a packet
// @Description  Begins a reliable send of the base64-encoded payload. The outcome arrives on the event stream.
// @Tags         packets
// @Accept       json
// @Produce      json
// @Param        request  body      types.SendPacketRequest  true  "Packet payload (base64)"
// @Success      202      {object}  types.SendPacketResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      409      {object}  types.ErrorResponse  "A send is already in flight"
// @Failure      503      {object}  types.ErrorResponse  "No port open"
// @Router       /packets [post]
func (h *PacketsHandler) Send(c *gin.Context) {
	var req types.SendPacketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Request must include base64 packet data",
		})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_payload",
			Message: "Packet data is not valid base64",
		})
		return
	}

	if err := h.link.SendPacket(c.Request.Context(), data); err != nil {
		switch {
		case errors.Is(err, link.ErrBusy):
			c.JSON(http.StatusConflict, types.ErrorResponse{
				Error:   "busy",
				Message: "A packet is already in flight",
			})
		case errors.Is(err, link.ErrNotConnected):
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Error:   "not_connected",
				Message: "No serial port is open",
			})
		default:
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Error:   "send_failed",
				Message: err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, types.SendPacketResponse{
		Status:    "accepted",
		SizeBytes: len(data),
	})
}

// Events handles GET /packets/events (SSE stream)
// @Summary      Subscribe to link events
// @Description  Server-Sent Events stream of packet, progress and error notifications
// @Tags         packets
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /packets/events [get]
func (h *PacketsHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// Subscribe to events
	eventChan := h.subscriber.Subscribe()
	defer h.subscriber.Unsubscribe(eventChan)

	// Send initial connection event
	sendSSEEvent(c.Writer, "connected", map[string]any{
		"timestamp": time.Now(),
		"message":   "Connected to link event stream",
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	// Heartbeat ticker
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, event.Type, event)
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	io.WriteString(w, "event: "+eventType+"\n")
	io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}

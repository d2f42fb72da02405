package types

import (
	"time"

	"github.com/byhat/loracore/pkg/db"
	"github.com/byhat/loracore/pkg/link"
)

// --- Request DTOs ---

// OpenPortRequest is the request body for POST /port/open
type OpenPortRequest struct {
	Device string `json:"device" binding:"required"`
	Baud   int    `json:"baud"`
}

// SendPacketRequest is the request body for POST /packets
type SendPacketRequest struct {
	// Data is the packet payload, base64-encoded
	Data string `json:"data" binding:"required"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Link      string    `json:"link"`
	Timestamp time.Time `json:"timestamp"`
}

// PortResponse is returned from GET /port and POST /port/open
type PortResponse struct {
	Device    string `json:"device,omitempty"`
	Baud      int    `json:"baud,omitempty"`
	Connected bool   `json:"connected"`
	Sending   bool   `json:"sending"`
}

// SendPacketResponse is returned from POST /packets
type SendPacketResponse struct {
	Status    string `json:"status"`
	SizeBytes int    `json:"size_bytes"`
}

// TransfersResponse is returned from GET /transfers
type TransfersResponse struct {
	Transfers []*db.Transfer `json:"transfers"`
	Count     int            `json:"count"`
}

// TransferResponse is returned from GET /transfers/:id
type TransferResponse struct {
	Transfer *db.Transfer `json:"transfer"`
}

// ConfigResponse is returned from GET/PUT /config
type ConfigResponse struct {
	Config *db.LinkConfig `json:"config"`
}

// StatsResponse is returned from GET /port/stats
type StatsResponse struct {
	Stats     link.Stats `json:"stats"`
	Timestamp time.Time  `json:"timestamp"`
}

package mcp

import (
	"github.com/byhat/loracore/pkg/db"
	"github.com/byhat/loracore/pkg/link"
)

// --- Health Tool ---

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status    string `json:"status" jsonschema:"description=Overall health status (healthy or unhealthy)"`
	Link      string `json:"link" jsonschema:"description=Radio link connection status"`
	Timestamp string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// --- Link Status Tool ---

// GetLinkStatusOutput is the output for the get_link_status tool
type GetLinkStatusOutput struct {
	Device    string `json:"device,omitempty" jsonschema:"description=Serial device path"`
	Baud      int    `json:"baud,omitempty" jsonschema:"description=Serial baud rate"`
	Connected bool   `json:"connected" jsonschema:"description=Whether a port is open"`
	Sending   bool   `json:"sending" jsonschema:"description=Whether a send is in flight"`
}

// --- Link Stats Tool ---

// GetLinkStatsOutput is the output for the get_link_stats tool
type GetLinkStatsOutput struct {
	Stats link.Stats `json:"stats" jsonschema:"description=Monotonic transport counters"`
}

// --- Open Port Tool ---

// OpenPortOutput is the output for the open_port tool
type OpenPortOutput struct {
	Success bool   `json:"success" jsonschema:"description=Whether the port was opened"`
	Message string `json:"message" jsonschema:"description=Status message"`
}

// --- Close Port Tool ---

// ClosePortOutput is the output for the close_port tool
type ClosePortOutput struct {
	Success bool   `json:"success" jsonschema:"description=Whether the port was closed"`
	Message string `json:"message" jsonschema:"description=Status message"`
}

// --- Send Packet Tool ---

// SendPacketOutput is the output for the send_packet tool
type SendPacketOutput struct {
	Accepted  bool `json:"accepted" jsonschema:"description=Whether the transport accepted the packet"`
	SizeBytes int  `json:"size_bytes" jsonschema:"description=Packet payload size in bytes"`
}

// --- Transfers Tools ---

// ListTransfersOutput is the output for the list_transfers tool
type ListTransfersOutput struct {
	Transfers []*db.Transfer `json:"transfers" jsonschema:"description=Recent packet transfers"`
	Count     int            `json:"count" jsonschema:"description=Number of transfers returned"`
}

// GetTransferOutput is the output for the get_transfer tool
type GetTransferOutput struct {
	Transfer *db.Transfer `json:"transfer" jsonschema:"description=Transfer record"`
}

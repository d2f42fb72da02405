package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	// Health check
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check the health status of the LoRaCore service and radio link connectivity"),
		),
		s.handleGetHealth,
	)

	// Link status
	s.mcpServer.AddTool(
		mcp.NewTool("get_link_status",
			mcp.WithDescription("Get the serial port and transport status (device, baud rate, send in progress)"),
		),
		s.handleGetLinkStatus,
	)

	// Link statistics
	s.mcpServer.AddTool(
		mcp.NewTool("get_link_stats",
			mcp.WithDescription("Get the transport's monotonic counters (frames, retransmits, packets, bytes)"),
		),
		s.handleGetLinkStats,
	)

	// Open port
	s.mcpServer.AddTool(
		mcp.NewTool("open_port",
			mcp.WithDescription("Open the serial device and bind the reliable transport to it"),
			mcp.WithString("device",
				mcp.Required(),
				mcp.Description("Serial device path (e.g. /dev/ttyUSB0)"),
			),
			mcp.WithNumber("baud",
				mcp.Description("Baud rate (default 9600, the radio's factory UART rate)"),
			),
		),
		s.handleOpenPort,
	)

	// Close port
	s.mcpServer.AddTool(
		mcp.NewTool("close_port",
			mcp.WithDescription("Close the serial device. Closing a closed port is a no-op."),
		),
		s.handleClosePort,
	)

	// Send packet
	s.mcpServer.AddTool(
		mcp.NewTool("send_packet",
			mcp.WithDescription("Send a packet over the radio link with reliable delivery. Returns once the transport accepts the packet; delivery is confirmed asynchronously."),
			mcp.WithString("data",
				mcp.Required(),
				mcp.Description("Packet payload, base64-encoded"),
			),
		),
		s.handleSendPacket,
	)

	// List transfers
	s.mcpServer.AddTool(
		mcp.NewTool("list_transfers",
			mcp.WithDescription("List recent packet transfers for the active profile"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum rows to return (default 100, max 500)"),
			),
		),
		s.handleListTransfers,
	)

	// Get transfer
	s.mcpServer.AddTool(
		mcp.NewTool("get_transfer",
			mcp.WithDescription("Get a single transfer record by ID"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Transfer ID"),
			),
		),
		s.handleGetTransfer,
	)
}

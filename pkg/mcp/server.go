package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/byhat/loracore/pkg/db"
	"github.com/byhat/loracore/pkg/link"
)

// Server wraps the MCP server with LoRaCore's link control functionality
type Server struct {
	mcpServer *server.MCPServer
	link      link.Link
	database  *db.DB
}

// NewServer creates a new MCP server for link control
func NewServer(lnk link.Link, database *db.DB) *Server {
	s := &Server{
		link:     lnk,
		database: database,
	}

	// Create MCP server
	s.mcpServer = server.NewMCPServer(
		"loracore",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Register all tools
	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

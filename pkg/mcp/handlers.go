package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/byhat/loracore/pkg/db"
	"github.com/byhat/loracore/pkg/link"
	"github.com/byhat/loracore/pkg/lora"
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	linkStatus := "disconnected"
	if s.link.IsConnected() {
		linkStatus = "connected"
	}

	status := "healthy"
	if linkStatus != "connected" {
		status = "unhealthy"
	}

	out := GetHealthOutput{
		Status:    status,
		Link:      linkStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetLinkStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.link.Status()
	out := GetLinkStatusOutput{
		Device:    st.Device,
		Baud:      st.Baud,
		Connected: st.Connected,
		Sending:   st.Sending,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetLinkStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := GetLinkStatsOutput{Stats: s.link.Stats()}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleOpenPort(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	device, err := requiredString(request, "device")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	baud := lora.DefaultBaud
	if v, ok := request.GetArguments()["baud"].(float64); ok && v > 0 {
		baud = int(v)
	}

	if err := s.link.OpenPort(ctx, device, baud); err != nil {
		if errors.Is(err, link.ErrPortOpen) {
			return mcp.NewToolResultError("a port is already open; close it first"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to open port: %s", err)), nil
	}

	out := OpenPortOutput{
		Success: true,
		Message: fmt.Sprintf("Port %s open at %d baud", device, baud),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleClosePort(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.link.ClosePort(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to close port: %s", err)), nil
	}

	out := ClosePortOutput{
		Success: true,
		Message: "Port closed",
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSendPacket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	encoded, err := requiredString(request, "data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError("packet data is not valid base64"), nil
	}

	if err := s.link.SendPacket(ctx, data); err != nil {
		switch {
		case errors.Is(err, link.ErrBusy):
			return mcp.NewToolResultError("a packet is already in flight"), nil
		case errors.Is(err, link.ErrNotConnected):
			return mcp.NewToolResultError("no serial port is open"), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("failed to send packet: %s", err)), nil
		}
	}

	out := SendPacketOutput{
		Accepted:  true,
		SizeBytes: len(data),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListTransfers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, err := s.database.Profiles().GetActive(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load active profile: %s", err)), nil
	}

	limit := 100
	if v, ok := request.GetArguments()["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	transfers, err := s.database.Transfers().List(ctx, profile.ID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list transfers: %s", err)), nil
	}

	out := ListTransfersOutput{
		Transfers: transfers,
		Count:     len(transfers),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetTransfer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	transfer, err := s.database.Transfers().Get(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrTransferNotFound) {
			return mcp.NewToolResultError("transfer not found"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to get transfer: %s", err)), nil
	}

	out := GetTransferOutput{Transfer: transfer}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// --- Helpers ---

// requiredString extracts a required string argument from the request.
func requiredString(request mcp.CallToolRequest, name string) (string, error) {
	v, ok := request.GetArguments()[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	return v, nil
}

// formatJSON renders a tool output struct as indented JSON.
func formatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

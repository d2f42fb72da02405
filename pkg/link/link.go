package link

import "context"

// Link defines the interface for a reliable point-to-point radio link.
// This abstraction lets the API and MCP servers work against either the
// real LoRa transport or the no-op fallback.
type Link interface {
	// OpenPort opens the serial device and binds the transport to it
	OpenPort(ctx context.Context, device string, baud int) error

	// ClosePort closes the serial device. Closing a closed port is a no-op.
	ClosePort() error

	// SendPacket begins a reliable send. It returns immediately; the
	// outcome is reported through a packet_sent event. Returns ErrBusy
	// while a previous send is still in flight.
	SendPacket(ctx context.Context, data []byte) error

	// Status returns the current link status
	Status() Status

	// Stats returns a snapshot of the link counters
	Stats() Stats

	// IsConnected returns true if a port is open
	IsConnected() bool

	// Close releases the link and the underlying port
	Close()
}

// EventSubscriber defines the interface for subscribing to link events
type EventSubscriber interface {
	// Subscribe returns a channel that receives link events
	Subscribe() chan Event

	// Unsubscribe removes a subscription
	Unsubscribe(ch chan Event)
}

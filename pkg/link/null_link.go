package link

import "context"

// NullLink is a no-op link used when no radio is attached. It allows the
// API and MCP servers to run in limited mode.
type NullLink struct{}

// NewNullLink creates a new NullLink.
func NewNullLink() *NullLink {
	return &NullLink{}
}

func (l *NullLink) OpenPort(ctx context.Context, device string, baud int) error {
	return ErrNotConnected
}

func (l *NullLink) ClosePort() error {
	return nil
}

func (l *NullLink) SendPacket(ctx context.Context, data []byte) error {
	return ErrNotConnected
}

func (l *NullLink) Status() Status {
	return Status{}
}

func (l *NullLink) Stats() Stats {
	return Stats{}
}

func (l *NullLink) IsConnected() bool {
	return false
}

func (l *NullLink) Close() {}

// NullEventSubscriber is a no-op event subscriber used when no radio is attached.
type NullEventSubscriber struct{}

// NewNullEventSubscriber creates a new NullEventSubscriber.
func NewNullEventSubscriber() *NullEventSubscriber {
	return &NullEventSubscriber{}
}

func (s *NullEventSubscriber) Subscribe() chan Event {
	ch := make(chan Event)
	// Channel is never sent to; callers should check IsConnected() on the link
	return ch
}

func (s *NullEventSubscriber) Unsubscribe(ch chan Event) {
	close(ch)
}

package lora

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/byhat/loracore/pkg/link"
)

// Radio implements link.Link and link.EventSubscriber over a serial
// LoRa modem. It owns the serial port and the retransmission timer, and
// runs the single event loop that serialises all engine access: serial
// bytes, timer fires and send requests are separate deliveries into
// that loop, so the engine itself needs no locking.
type Radio struct {
	mu     sync.RWMutex
	port   *SerialPort
	engine *Engine
	timer  *wallTimer
	device string
	baud   int

	readCh chan []byte
	sendCh chan sendRequest
	stopCh chan struct{}
	doneCh chan struct{}

	subscribers   []chan link.Event
	subscribersMu sync.Mutex
}

type sendRequest struct {
	data  []byte
	reply chan error
}

// NewRadio creates a radio with no port bound. Call OpenPort before
// sending.
func NewRadio() *Radio {
	return &Radio{}
}

// OpenPort opens the serial device and starts the transport. Returns
// link.ErrPortOpen if a port is already bound.
func (r *Radio) OpenPort(_ context.Context, device string, baud int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port != nil {
		return link.ErrPortOpen
	}

	port, err := OpenSerial(device, baud)
	if err != nil {
		r.publish(link.Event{Type: link.EventPortOpened, OK: false, Message: err.Error()})
		return err
	}

	r.port = port
	r.device = device
	r.baud = baud
	r.timer = newWallTimer()
	r.engine = NewEngine(port, r.timer, Events{
		PacketSent: func(ok bool, size, chunks, retries int, started time.Time) {
			r.publish(link.Event{
				Type:       link.EventPacketSent,
				OK:         ok,
				Sent:       size,
				ChunkCount: chunks,
				Retries:    retries,
				StartedAt:  started,
				FinishedAt: time.Now(),
			})
		},
		PacketReceived: func(data []byte, chunks int, started time.Time) {
			r.publish(link.Event{
				Type:       link.EventPacketReceived,
				Data:       data,
				Received:   len(data),
				ChunkCount: chunks,
				StartedAt:  started,
				FinishedAt: time.Now(),
			})
		},
		SendProgress: func(sent, total int) {
			r.publish(link.Event{Type: link.EventSendProgress, Sent: sent, Total: total})
		},
		ReceiveProgress: func(received, estimate int) {
			r.publish(link.Event{Type: link.EventReceiveProgress, Received: received, Total: estimate})
		},
		Error: func(msg string) {
			r.publish(link.Event{Type: link.EventError, Message: msg})
		},
	})

	r.readCh = make(chan []byte, 16)
	r.sendCh = make(chan sendRequest)
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.readLoop(port, r.readCh, r.stopCh)
	go r.eventLoop()

	r.publish(link.Event{Type: link.EventPortOpened, OK: true})
	return nil
}

// ClosePort stops the transport and releases the serial device. The
// engine is torn down before the port closes; in-flight packets are
// abandoned without terminal events. Closing a closed port is a no-op.
func (r *Radio) ClosePort() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port == nil {
		return nil
	}

	close(r.stopCh)
	<-r.doneCh

	// The loop has exited; engine state is ours to tear down now.
	r.engine.Reset()

	err := r.port.Close()
	r.port = nil

	log.Info().Str("device", r.device).Msg("Serial port closed")
	r.publish(link.Event{Type: link.EventPortClosed})
	return err
}

// SendPacket hands a packet to the event loop. The call returns once the
// engine has accepted (primed) or rejected the send; delivery itself is
// reported later through a packet_sent event.
func (r *Radio) SendPacket(ctx context.Context, data []byte) error {
	r.mu.RLock()
	sendCh, stopCh := r.sendCh, r.stopCh
	connected := r.port != nil
	r.mu.RUnlock()

	if !connected {
		return link.ErrNotConnected
	}

	// The engine keeps a reference until the final ACK; the caller may
	// reuse its buffer as soon as we return.
	buf := make([]byte, len(data))
	copy(buf, data)

	req := sendRequest{data: buf, reply: make(chan error, 1)}
	select {
	case sendCh <- req:
	case <-stopCh:
		return link.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-stopCh:
		return link.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current link status.
func (r *Radio) Status() link.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := link.Status{
		Device:    r.device,
		Baud:      r.baud,
		Connected: r.port != nil,
	}
	if r.engine != nil {
		s.Sending = r.engine.Sending()
	}
	return s
}

// Stats returns a snapshot of the link counters. Counters survive a
// port close and reset on the next open.
func (r *Radio) Stats() link.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.engine == nil {
		return link.Stats{}
	}
	return r.engine.Stats()
}

// IsConnected returns true while a port is open.
func (r *Radio) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.port != nil
}

// Close releases the link.
func (r *Radio) Close() {
	if err := r.ClosePort(); err != nil {
		log.Warn().Err(err).Msg("Failed to close serial port")
	}
}

// eventLoop is the transport's single thread of control.
func (r *Radio) eventLoop() {
	defer close(r.doneCh)
	for {
		select {
		case <-r.stopCh:
			return
		case data := <-r.readCh:
			r.engine.HandleReadable(data)
		case gen := <-r.timer.C:
			if gen == r.timer.current() {
				r.engine.HandleTimeout()
			}
		case req := <-r.sendCh:
			req.reply <- r.engine.SendPacket(req.data)
		}
	}
}

// readLoop pumps available serial bytes into the event loop. It exits
// when the port read fails after close or the stop channel fires.
func (r *Radio) readLoop(port *SerialPort, readCh chan<- []byte, stopCh <-chan struct{}) {
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if err != nil {
			select {
			case <-stopCh:
			default:
				log.Error().Err(err).Msg("Serial read error")
				r.publish(link.Event{Type: link.EventError, Message: "serial read failed: " + err.Error()})
			}
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case readCh <- data:
		case <-stopCh:
			return
		}
	}
}

// --- link.EventSubscriber ---

// Subscribe returns a channel that receives link events.
func (r *Radio) Subscribe() chan link.Event {
	ch := make(chan link.Event, 16)
	r.subscribersMu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.subscribersMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription.
func (r *Radio) Unsubscribe(ch chan link.Event) {
	r.subscribersMu.Lock()
	defer r.subscribersMu.Unlock()

	for i, sub := range r.subscribers {
		if sub == ch {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// publish fans an event out to all subscribers. Slow subscribers drop
// events rather than stall the transport.
func (r *Radio) publish(evt link.Event) {
	evt.Timestamp = time.Now()

	r.subscribersMu.Lock()
	defer r.subscribersMu.Unlock()

	for _, ch := range r.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

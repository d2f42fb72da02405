package lora

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/byhat/loracore/pkg/link"
)

// Retransmission policy for one chunk.
const (
	maxRetries = 5
	ackTimeout = 1000 * time.Millisecond
)

// Port is the byte pipe the engine writes frames to. The real port is a
// *SerialPort; tests substitute an in-memory fake.
type Port interface {
	Write(data []byte) (int, error)
}

// Events are the engine's outbound callbacks. Nil fields are skipped.
// Callbacks run synchronously on whatever goroutine drives the engine.
// The terminal callbacks carry the per-transfer accounting (size, chunk
// count, retransmissions, start time) so the facade can hand complete
// records to the transfer log.
type Events struct {
	PacketSent      func(ok bool, size, chunks, retries int, started time.Time)
	PacketReceived  func(data []byte, chunks int, started time.Time)
	SendProgress    func(sent, total int)
	ReceiveProgress func(received, totalEstimate int)
	Error           func(msg string)
}

// Engine is the reliable-delivery core: it fragments outbound packets
// into acknowledged DATA frames and reassembles inbound frames into
// packets, over a shared full-duplex byte stream.
//
// The engine is synchronous and not goroutine-safe. All state is mutated
// by SendPacket, HandleReadable, HandleTimeout and Reset, which must be
// called from a single goroutine; the Radio facade serialises them on
// its event loop. Asynchrony lives outside: the timer fires and new
// serial bytes arrive as separate deliveries into that loop.
type Engine struct {
	port  Port
	timer Timer
	ev    Events
	stats engineStats

	// sending is observable from other goroutines for status reporting.
	sending atomic.Bool

	// Sender: the in-flight packet. cursor is -1 when idle.
	// sendRetransmits accumulates across chunks for the whole packet;
	// retries is the per-chunk budget.
	chunks          []chunk
	cursor          int
	retries         int
	totalBytes      int
	sentBytes       int
	sendRetransmits int
	sendStarted     time.Time

	// Receiver: the packet under reassembly. rxTotal is 0 when idle.
	// After a packet completes the record is retained (rxComplete) so
	// retransmitted chunks of the delivered packet are re-ACKed without
	// being delivered twice.
	rxTotal    int
	rxChunks   map[uint8][]byte
	rxBytes    int
	rxComplete bool
	rxAcked    bool
	rxStarted  time.Time

	// Bytes read from the port but not yet consumed as a complete frame.
	acc []byte
}

// NewEngine binds an engine to an open port and a fresh timer.
func NewEngine(port Port, timer Timer, ev Events) *Engine {
	return &Engine{
		port:   port,
		timer:  timer,
		ev:     ev,
		cursor: -1,
	}
}

// SendPacket fragments p and begins transmitting it chunk by chunk.
// It primes the sender state and returns without waiting for any ACK.
// Returns link.ErrBusy while a previous send is still in flight; any
// later failure is reported through the Error and PacketSent events.
func (e *Engine) SendPacket(p []byte) error {
	if e.cursor >= 0 {
		return link.ErrBusy
	}
	e.chunks = fragment(p)
	e.cursor = 0
	e.retries = 0
	e.totalBytes = len(p)
	e.sentBytes = 0
	e.sendRetransmits = 0
	e.sendStarted = time.Now()
	e.sending.Store(true)

	log.Debug().Int("bytes", len(p)).Int("chunks", len(e.chunks)).Msg("LoRa TX packet")

	e.transmitChunk()
	return nil
}

// Sending reports whether a send is in flight. Safe to call from any
// goroutine.
func (e *Engine) Sending() bool {
	return e.sending.Load()
}

// Stats returns a snapshot of the link counters. Safe to call from any
// goroutine.
func (e *Engine) Stats() link.Stats {
	return e.stats.snapshot()
}

// HandleReadable appends freshly read serial bytes to the accumulator
// and greedily extracts frames. A candidate that fails length or CRC
// checks costs one dropped byte and a rescan, so a corrupted byte can
// never permanently desynchronise the receiver.
func (e *Engine) HandleReadable(data []byte) {
	e.acc = append(e.acc, data...)
	for {
		if len(e.acc) < frameOverhead {
			return
		}
		plen := int(e.acc[3])
		if plen > maxPayload {
			// First byte cannot start a valid frame.
			e.stats.framesRejected.Add(1)
			e.dropByte()
			continue
		}
		need := frameOverhead + plen
		if len(e.acc) < need {
			return
		}
		f, err := DecodeFrame(e.acc[:need])
		if err != nil {
			e.stats.framesRejected.Add(1)
			log.Debug().Err(err).Msg("LoRa frame rejected, resyncing")
			e.dropByte()
			continue
		}
		e.acc = append(e.acc[:0], e.acc[need:]...)
		e.dispatch(f)
	}
}

// HandleTimeout retransmits the current chunk, or aborts the send once
// the retry budget is exhausted. A fire with no send in flight is stale
// and ignored.
func (e *Engine) HandleTimeout() {
	if e.cursor < 0 {
		return
	}
	if e.retries+1 > maxRetries {
		e.stats.sendFailures.Add(1)
		log.Warn().Int("seq", e.cursor).Msg("LoRa chunk retries exhausted")
		e.failSend(fmt.Sprintf("send timeout after %d retries", maxRetries))
		return
	}
	e.retries++
	e.sendRetransmits++
	e.stats.retransmits.Add(1)
	log.Debug().Int("seq", e.cursor).Int("retry", e.retries).Msg("LoRa retransmit")
	e.transmitChunk()
}

// Reset abandons any in-flight send and partial reassembly without
// emitting terminal events. Used on external close.
func (e *Engine) Reset() {
	e.timer.Stop()
	e.resetSender()
	e.resetReceiver()
	e.acc = nil
}

func (e *Engine) dropByte() {
	e.acc = append(e.acc[:0], e.acc[1:]...)
}

func (e *Engine) dispatch(f Frame) {
	switch f.Type {
	case frameData:
		e.handleData(f)
	case frameACK:
		e.stats.acksReceived.Add(1)
		e.handleChunkAck(f.Seq)
	case framePacketACK:
		// The send already completed on the final chunk ACK; the
		// whole-packet acknowledgement is informational here.
		log.Debug().Msg("LoRa RX PACKET_ACK")
	case frameNACK:
		// Reserved on the wire, never acted on.
		log.Debug().Uint8("seq", f.Seq).Msg("LoRa RX NACK (ignored)")
	}
}

// --- Sender ---

// transmitChunk writes the chunk at the cursor and arms the ACK timer.
func (e *Engine) transmitChunk() {
	c := e.chunks[e.cursor]
	raw := EncodeFrame(frameData, c.seq, c.total, c.payload)
	if _, err := e.port.Write(raw); err != nil {
		e.stats.sendFailures.Add(1)
		log.Error().Err(err).Uint8("seq", c.seq).Msg("LoRa DATA write failed")
		e.failSend(fmt.Sprintf("serial write failed: %s", err))
		return
	}
	e.stats.dataFramesSent.Add(1)
	log.Debug().
		Uint8("seq", c.seq).
		Uint8("total", c.total).
		Int("len", len(c.payload)).
		Msg("LoRa TX DATA")
	e.timer.Start(ackTimeout)
}

// handleChunkAck advances the sender on the ACK for the current chunk.
// ACKs for any other sequence number are stale and ignored.
func (e *Engine) handleChunkAck(seq uint8) {
	if e.cursor < 0 {
		return
	}
	c := e.chunks[e.cursor]
	if seq != c.seq {
		log.Debug().Uint8("got", seq).Uint8("want", c.seq).Msg("LoRa stale ACK")
		return
	}
	e.timer.Stop()
	e.sentBytes += len(c.payload)
	e.emitSendProgress(e.sentBytes, e.totalBytes)

	if e.cursor+1 < len(e.chunks) {
		e.cursor++
		e.retries = 0
		e.transmitChunk()
		return
	}

	// Final chunk acknowledged: the packet is delivered.
	size, chunks, retries, started := e.totalBytes, len(e.chunks), e.sendRetransmits, e.sendStarted
	e.stats.packetsSent.Add(1)
	e.stats.bytesSent.Add(uint64(size))
	log.Debug().Int("bytes", size).Int("retransmits", retries).Msg("LoRa packet delivered")
	e.resetSender()
	e.emitPacketSent(true, size, chunks, retries, started)
}

// failSend aborts the in-flight packet and reports the failure.
func (e *Engine) failSend(msg string) {
	size, chunks, retries, started := e.totalBytes, len(e.chunks), e.sendRetransmits, e.sendStarted
	e.timer.Stop()
	e.resetSender()
	e.emitError(msg)
	e.emitPacketSent(false, size, chunks, retries, started)
}

func (e *Engine) resetSender() {
	e.chunks = nil
	e.cursor = -1
	e.retries = 0
	e.totalBytes = 0
	e.sentBytes = 0
	e.sendRetransmits = 0
	e.sendStarted = time.Time{}
	e.sending.Store(false)
}

// --- Receiver ---

// handleData stores an inbound chunk, acknowledges it, and delivers the
// packet once every sequence number has arrived.
func (e *Engine) handleData(f Frame) {
	e.stats.dataFramesReceived.Add(1)

	total := int(f.Total)
	if total < 1 || int(f.Seq) >= total {
		log.Debug().Uint8("seq", f.Seq).Uint8("total", f.Total).Msg("LoRa DATA out of range, dropped")
		return
	}

	if e.rxComplete {
		if total == e.rxTotal {
			if stored, ok := e.rxChunks[f.Seq]; ok && bytes.Equal(stored, f.Payload) {
				// Retransmit of the already-delivered packet: its ACK
				// was lost, so acknowledge again without redelivering.
				e.writeAck(f.Seq, f.Total)
				return
			}
		}
		e.resetReceiver()
	}

	if e.rxTotal != 0 && total != e.rxTotal {
		log.Warn().Int("have", e.rxTotal).Int("got", total).Msg("LoRa reassembly abandoned, new packet geometry")
		e.resetReceiver()
	}

	if e.rxTotal == 0 {
		e.rxTotal = total
		e.rxChunks = make(map[uint8][]byte, total)
		e.rxBytes = 0
		e.rxAcked = false
		e.rxStarted = time.Now()
	}

	if _, ok := e.rxChunks[f.Seq]; ok {
		// Duplicate chunk mid-assembly: re-ACK, do not double-count.
		e.writeAck(f.Seq, f.Total)
		return
	}

	e.rxChunks[f.Seq] = f.Payload
	e.rxBytes += len(f.Payload)
	e.writeAck(f.Seq, f.Total)

	estimate := e.rxTotal * maxPayload
	if len(e.rxChunks) == e.rxTotal {
		estimate = e.rxBytes
	}
	e.emitReceiveProgress(e.rxBytes, estimate)

	if len(e.rxChunks) == e.rxTotal {
		e.completeReceive()
	}
}

// completeReceive reassembles the chunks in sequence order and delivers
// the packet. The reassembly record is kept so late retransmits of this
// packet are recognised as duplicates.
func (e *Engine) completeReceive() {
	packet := make([]byte, 0, e.rxBytes)
	for i := 0; i < e.rxTotal; i++ {
		packet = append(packet, e.rxChunks[uint8(i)]...)
	}

	e.stats.packetsReceived.Add(1)
	e.stats.bytesReceived.Add(uint64(len(packet)))
	log.Debug().Int("bytes", len(packet)).Int("chunks", e.rxTotal).Msg("LoRa RX packet")

	e.rxComplete = true
	e.emitPacketReceived(packet, e.rxTotal, e.rxStarted)

	if !e.rxAcked {
		e.writePacketAck()
		e.rxAcked = true
	}
}

func (e *Engine) resetReceiver() {
	e.rxTotal = 0
	e.rxChunks = nil
	e.rxBytes = 0
	e.rxComplete = false
	e.rxAcked = false
	e.rxStarted = time.Time{}
}

// writeAck acknowledges one chunk. A failed ACK write is recovered by
// the peer's retransmission, so it is logged and not fatal; no counter
// records the failure.
func (e *Engine) writeAck(seq, total uint8) {
	raw := EncodeFrame(frameACK, seq, total, nil)
	if _, err := e.port.Write(raw); err != nil {
		log.Warn().Err(err).Uint8("seq", seq).Msg("LoRa ACK write failed")
		return
	}
	e.stats.acksSent.Add(1)
	log.Debug().Uint8("seq", seq).Msg("LoRa TX ACK")
}

func (e *Engine) writePacketAck() {
	raw := EncodeFrame(framePacketACK, 0, 0, nil)
	if _, err := e.port.Write(raw); err != nil {
		log.Warn().Err(err).Msg("LoRa PACKET_ACK write failed")
		return
	}
	log.Debug().Msg("LoRa TX PACKET_ACK")
}

// --- Event emission ---

func (e *Engine) emitPacketSent(ok bool, size, chunks, retries int, started time.Time) {
	if e.ev.PacketSent != nil {
		e.ev.PacketSent(ok, size, chunks, retries, started)
	}
}

func (e *Engine) emitPacketReceived(data []byte, chunks int, started time.Time) {
	if e.ev.PacketReceived != nil {
		e.ev.PacketReceived(data, chunks, started)
	}
}

func (e *Engine) emitSendProgress(sent, total int) {
	if e.ev.SendProgress != nil {
		e.ev.SendProgress(sent, total)
	}
}

func (e *Engine) emitReceiveProgress(received, estimate int) {
	if e.ev.ReceiveProgress != nil {
		e.ev.ReceiveProgress(received, estimate)
	}
}

func (e *Engine) emitError(msg string) {
	if e.ev.Error != nil {
		e.ev.Error(msg)
	}
}

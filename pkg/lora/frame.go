package lora

import (
	"errors"
	"fmt"
)

// Frame types on the wire.
const (
	frameData      = 0x10
	frameACK       = 0x20
	frameNACK      = 0x30 // reserved; never emitted, ignored on receipt
	framePacketACK = 0x50
)

// Wire format limits. A frame is type(1) + seq(1) + total(1) + len(1) +
// payload(len) + crc(1).
const (
	frameHeaderLen = 4
	frameOverhead  = 5
	maxPayload     = 26
	maxFrameLen    = frameOverhead + maxPayload
)

// Frame decode errors. All of them are recoverable: the byte scanner
// treats a rejected candidate as a resynchronisation signal.
var (
	errFrameShort   = errors.New("frame truncated")
	errFrameCRC     = errors.New("frame CRC mismatch")
	errFrameLen     = errors.New("frame length field out of range")
	errFrameUnknown = errors.New("unknown frame type")
)

// Frame is one decoded unit on the serial wire.
type Frame struct {
	Type    byte
	Seq     uint8
	Total   uint8
	Payload []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("type=0x%02X seq=%d total=%d len=%d", f.Type, f.Seq, f.Total, len(f.Payload))
}

// EncodeFrame builds a wire frame. Payloads longer than the chunk limit
// are clamped to their first 26 bytes.
func EncodeFrame(typ byte, seq, total uint8, payload []byte) []byte {
	if len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}
	buf := make([]byte, 0, frameOverhead+len(payload))
	buf = append(buf, typ, seq, total, byte(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, Checksum(buf))
	return buf
}

// DecodeFrame parses and validates one frame from raw. raw must hold the
// complete frame: 5 + raw[3] bytes.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < frameOverhead {
		return Frame{}, errFrameShort
	}
	plen := int(raw[3])
	if plen > maxPayload {
		return Frame{}, errFrameLen
	}
	if len(raw) < frameOverhead+plen {
		return Frame{}, errFrameShort
	}
	body := raw[:frameHeaderLen+plen]
	if Checksum(body) != raw[frameHeaderLen+plen] {
		return Frame{}, errFrameCRC
	}
	switch raw[0] {
	case frameData, frameACK, frameNACK, framePacketACK:
	default:
		return Frame{}, errFrameUnknown
	}
	f := Frame{
		Type:  raw[0],
		Seq:   raw[1],
		Total: raw[2],
	}
	if plen > 0 {
		f.Payload = make([]byte, plen)
		copy(f.Payload, raw[frameHeaderLen:frameHeaderLen+plen])
	}
	return f, nil
}

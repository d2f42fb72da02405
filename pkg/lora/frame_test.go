package lora

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeFrameLayout(t *testing.T) {
	raw := EncodeFrame(frameData, 0, 1, []byte("Hi"))

	want := []byte{0x10, 0x00, 0x01, 0x02, 'H', 'i'}
	want = append(want, Checksum(want))

	if !bytes.Equal(raw, want) {
		t.Errorf("EncodeFrame = % X, want % X", raw, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		typ     byte
		seq     uint8
		total   uint8
		payload []byte
	}{
		{"data empty", frameData, 0, 1, nil},
		{"data short", frameData, 2, 5, []byte{0xDE, 0xAD}},
		{"data full", frameData, 0, 1, bytes.Repeat([]byte{0x55}, maxPayload)},
		{"ack", frameACK, 3, 4, nil},
		{"nack", frameNACK, 0, 1, nil},
		{"packet ack", framePacketACK, 0, 0, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw := EncodeFrame(tc.typ, tc.seq, tc.total, tc.payload)
			if len(raw) != frameOverhead+len(tc.payload) {
				t.Fatalf("frame length = %d, want %d", len(raw), frameOverhead+len(tc.payload))
			}

			f, err := DecodeFrame(raw)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if f.Type != tc.typ || f.Seq != tc.seq || f.Total != tc.total {
				t.Errorf("decoded header = %v, want type=0x%02X seq=%d total=%d", f, tc.typ, tc.seq, tc.total)
			}
			if !bytes.Equal(f.Payload, tc.payload) {
				t.Errorf("decoded payload = % X, want % X", f.Payload, tc.payload)
			}

			// A valid frame re-encodes to the same bytes.
			again := EncodeFrame(f.Type, f.Seq, f.Total, f.Payload)
			if !bytes.Equal(again, raw) {
				t.Errorf("re-encoded frame = % X, want % X", again, raw)
			}
		})
	}
}

func TestEncodeFrameClampsPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAA}, maxPayload+10)
	raw := EncodeFrame(frameData, 0, 1, payload)

	if len(raw) != maxFrameLen {
		t.Fatalf("frame length = %d, want %d", len(raw), maxFrameLen)
	}

	f, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !bytes.Equal(f.Payload, payload[:maxPayload]) {
		t.Errorf("payload not clamped to first %d bytes", maxPayload)
	}
}

func TestDecodeFrameRejects(t *testing.T) {
	valid := EncodeFrame(frameData, 0, 1, []byte("Hi"))

	corruptCRC := append([]byte(nil), valid...)
	corruptCRC[len(corruptCRC)-1] ^= 0xFF

	unknownType := EncodeFrame(frameData, 0, 1, nil)
	unknownType[0] = 0x99
	unknownType[len(unknownType)-1] = Checksum(unknownType[:len(unknownType)-1])

	badLen := append([]byte(nil), valid...)
	badLen[3] = maxPayload + 1

	testCases := []struct {
		name string
		raw  []byte
		want error
	}{
		{"too short", valid[:4], errFrameShort},
		{"truncated payload", valid[:6], errFrameShort},
		{"bad crc", corruptCRC, errFrameCRC},
		{"unknown type", unknownType, errFrameUnknown},
		{"length out of range", badLen, errFrameLen},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeFrame(tc.raw); !errors.Is(err, tc.want) {
				t.Errorf("DecodeFrame error = %v, want %v", err, tc.want)
			}
		})
	}
}

package lora

import (
	"sync/atomic"

	"github.com/byhat/loracore/pkg/link"
)

// engineStats holds the link counters. Counters are atomics because the
// metrics collector and the API snapshot them from other goroutines
// while the event loop is incrementing.
type engineStats struct {
	dataFramesSent     atomic.Uint64
	dataFramesReceived atomic.Uint64
	acksSent           atomic.Uint64
	acksReceived       atomic.Uint64
	retransmits        atomic.Uint64
	framesRejected     atomic.Uint64
	packetsSent        atomic.Uint64
	packetsReceived    atomic.Uint64
	bytesSent          atomic.Uint64
	bytesReceived      atomic.Uint64
	sendFailures       atomic.Uint64
}

// snapshot copies the counters into the exported form.
func (s *engineStats) snapshot() link.Stats {
	return link.Stats{
		DataFramesSent:     s.dataFramesSent.Load(),
		DataFramesReceived: s.dataFramesReceived.Load(),
		AcksSent:           s.acksSent.Load(),
		AcksReceived:       s.acksReceived.Load(),
		Retransmits:        s.retransmits.Load(),
		FramesRejected:     s.framesRejected.Load(),
		PacketsSent:        s.packetsSent.Load(),
		PacketsReceived:    s.packetsReceived.Load(),
		BytesSent:          s.bytesSent.Load(),
		BytesReceived:      s.bytesReceived.Load(),
		SendFailures:       s.sendFailures.Load(),
	}
}

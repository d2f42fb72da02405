// Package metrics exposes the link counters as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/byhat/loracore/pkg/link"
)

// StatsSource supplies a point-in-time snapshot of the link counters.
type StatsSource interface {
	Stats() link.Stats
	Status() link.Status
}

type counterSpec struct {
	description *prometheus.Desc
	supplier    func(s link.Stats) float64
}

// LinkCollector implements prometheus.Collector over a StatsSource.
// Snapshots are taken at scrape time, so the collector adds no load to
// the transport's event loop.
type LinkCollector struct {
	source   StatsSource
	counters []counterSpec
	upDesc   *prometheus.Desc
}

// NewLinkCollector creates a collector with the given metric prefix
// (e.g. "loracore").
func NewLinkCollector(prefix string, source StatsSource) *LinkCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prefix+"_"+name, help, nil, nil)
	}

	return &LinkCollector{
		source: source,
		upDesc: desc("link_up", "Whether a serial port is currently open."),
		counters: []counterSpec{
			{desc("data_frames_sent_total", "DATA frames written to the serial port."),
				func(s link.Stats) float64 { return float64(s.DataFramesSent) }},
			{desc("data_frames_received_total", "DATA frames decoded from the serial port."),
				func(s link.Stats) float64 { return float64(s.DataFramesReceived) }},
			{desc("acks_sent_total", "Chunk acknowledgements written."),
				func(s link.Stats) float64 { return float64(s.AcksSent) }},
			{desc("acks_received_total", "Chunk acknowledgements received."),
				func(s link.Stats) float64 { return float64(s.AcksReceived) }},
			{desc("retransmits_total", "Chunk retransmissions after ACK timeout."),
				func(s link.Stats) float64 { return float64(s.Retransmits) }},
			{desc("frames_rejected_total", "Candidate frames dropped by CRC, length or type checks."),
				func(s link.Stats) float64 { return float64(s.FramesRejected) }},
			{desc("packets_sent_total", "Packets fully acknowledged by the peer."),
				func(s link.Stats) float64 { return float64(s.PacketsSent) }},
			{desc("packets_received_total", "Packets fully reassembled and delivered."),
				func(s link.Stats) float64 { return float64(s.PacketsReceived) }},
			{desc("bytes_sent_total", "Payload bytes in fully acknowledged packets."),
				func(s link.Stats) float64 { return float64(s.BytesSent) }},
			{desc("bytes_received_total", "Payload bytes in delivered packets."),
				func(s link.Stats) float64 { return float64(s.BytesReceived) }},
			{desc("send_failures_total", "Sends aborted by write errors or retry exhaustion."),
				func(s link.Stats) float64 { return float64(s.SendFailures) }},
		},
	}
}

func (c *LinkCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.upDesc
	for _, spec := range c.counters {
		descs <- spec.description
	}
}

func (c *LinkCollector) Collect(metrics chan<- prometheus.Metric) {
	up := 0.0
	if c.source.Status().Connected {
		up = 1.0
	}
	metrics <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, up)

	stats := c.source.Stats()
	for _, spec := range c.counters {
		metrics <- prometheus.MustNewConstMetric(spec.description, prometheus.CounterValue, spec.supplier(stats))
	}
}

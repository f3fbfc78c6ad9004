package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PublishedTotal       prometheus.Counter
	DroppedTotal         prometheus.Counter
	PublishFailuresTotal prometheus.Counter
	BufferDepth          prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		PublishedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_audit_publisher_published_total",
			Help: "Total number of security events delivered to the Kafka topic",
		}),
		DroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_audit_publisher_dropped_total",
			Help: "Total number of security events dropped because the buffer was full",
		}),
		PublishFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_audit_publisher_publish_failures_total",
			Help: "Total number of security events that failed to produce",
		}),
		BufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "palisade_audit_publisher_buffer_depth",
			Help: "Number of security events currently waiting in the buffer",
		}),
	}
}

func (m *Metrics) RecordPublished(n int) {
	m.PublishedTotal.Add(float64(n))
}

func (m *Metrics) RecordDrop() {
	m.DroppedTotal.Inc()
}

func (m *Metrics) RecordPublishFailures(n int) {
	m.PublishFailuresTotal.Add(float64(n))
}

func (m *Metrics) SetBufferDepth(n int) {
	m.BufferDepth.Set(float64(n))
}

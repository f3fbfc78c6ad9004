package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsTotal          *prometheus.CounterVec
	PersistFailuresTotal prometheus.Counter
	CleanupDeletedTotal  prometheus.Counter
	CleanupFailuresTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_audit_events_total",
			Help: "Total number of audit events logged, by category and severity",
		}, []string{"category", "severity"}),
		PersistFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_audit_persist_failures_total",
			Help: "Total number of audit events that failed to persist and fell back to the application log",
		}),
		CleanupDeletedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_audit_cleanup_deleted_total",
			Help: "Total number of audit events removed by retention cleanup",
		}),
		CleanupFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_audit_cleanup_failures_total",
			Help: "Total number of failed retention cleanup runs",
		}),
	}
}

func (m *Metrics) RecordEvent(category Category, severity Severity) {
	m.EventsTotal.WithLabelValues(string(category), string(severity)).Inc()
}

func (m *Metrics) RecordPersistFailure() {
	m.PersistFailuresTotal.Inc()
}

func (m *Metrics) RecordCleanup(deleted int64) {
	m.CleanupDeletedTotal.Add(float64(deleted))
}

func (m *Metrics) RecordCleanupFailure() {
	m.CleanupFailuresTotal.Inc()
}

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveManagers  prometheus.Gauge
	ExpiredTotal    *prometheus.CounterVec
	WarningsTotal   prometheus.Counter
	ExtensionsTotal prometheus.Counter
	RotationsTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		ActiveManagers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "palisade_session_active_managers",
			Help: "Number of session managers currently tracked by the registry",
		}),
		ExpiredTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_session_expired_total",
			Help: "Total number of sessions expired by the lifecycle manager, by reason",
		}, []string{"reason"}),
		WarningsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_session_warnings_total",
			Help: "Total number of pre-expiry warnings fired",
		}),
		ExtensionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_session_extensions_total",
			Help: "Total number of explicit session extensions",
		}),
		RotationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_session_rotations_total",
			Help: "Total number of token rotation attempts, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ManagerStarted() {
	m.ActiveManagers.Inc()
}

func (m *Metrics) ManagerStopped() {
	m.ActiveManagers.Dec()
}

func (m *Metrics) RecordExpired(reason string) {
	m.ExpiredTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordWarning() {
	m.WarningsTotal.Inc()
}

func (m *Metrics) RecordExtension() {
	m.ExtensionsTotal.Inc()
}

func (m *Metrics) RecordRotation(outcome string) {
	m.RotationsTotal.WithLabelValues(outcome).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal       *prometheus.CounterVec
	StoreErrorsTotal  prometheus.Counter
	BreakerOpensTotal prometheus.Counter
	FallbackActive    prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_ratelimit_checks_total",
			Help: "Total number of rate limit checks by endpoint class, identifier tier, and outcome",
		}, []string{"class", "tier", "outcome"}),
		StoreErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_ratelimit_store_errors_total",
			Help: "Total number of counter store failures during rate limit checks",
		}),
		BreakerOpensTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_ratelimit_breaker_opens_total",
			Help: "Total number of times the counter store circuit breaker opened",
		}),
		FallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "palisade_ratelimit_fallback_active",
			Help: "Whether checks are currently served by the in-memory fallback (1) or the primary store (0)",
		}),
	}
}

func (m *Metrics) RecordCheck(class, tier, outcome string) {
	m.ChecksTotal.WithLabelValues(class, tier, outcome).Inc()
}

func (m *Metrics) RecordStoreError() {
	m.StoreErrorsTotal.Inc()
}

func (m *Metrics) RecordBreakerOpen() {
	m.BreakerOpensTotal.Inc()
}

func (m *Metrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}

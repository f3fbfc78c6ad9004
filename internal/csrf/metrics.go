package csrf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	IssuedTotal  prometheus.Counter
	DenialsTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		IssuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_csrf_tokens_issued_total",
			Help: "Total number of CSRF tokens issued",
		}),
		DenialsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_csrf_denials_total",
			Help: "Total number of requests denied by CSRF validation, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) RecordIssued() {
	m.IssuedTotal.Inc()
}

func (m *Metrics) RecordDenial(reason Reason) {
	m.DenialsTotal.WithLabelValues(string(reason)).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejections  *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_ratelimit_rejections_total",
			Help: "Requests refused by the rate limiter, by policy",
		}, []string{"policy"}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the store was unreachable",
		}),
	}
}

func (m *Metrics) IncrementRejection(policy string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(policy).Inc()
}

func (m *Metrics) IncrementStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

package request

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registrar_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) ObserveEndpointLatency(route string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(route).Observe(durationSeconds)
}

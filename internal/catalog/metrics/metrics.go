package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh results.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultInvalid = "invalid"
)

// Metrics provides observability for catalog refreshes.
type Metrics struct {
	Refreshes      *prometheus.CounterVec
	RefreshLatency prometheus.Histogram
	Courses        prometheus.Gauge
}

// New creates a new Metrics instance with all catalog metrics registered.
func New() *Metrics {
	return &Metrics{
		Refreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_catalog_refreshes_total",
			Help: "Catalog refresh attempts by result",
		}, []string{"result"}),
		RefreshLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_catalog_refresh_duration_seconds",
			Help:    "Duration of successful catalog refreshes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		Courses: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_catalog_courses",
			Help: "Number of courses in the active catalog snapshot",
		}),
	}
}

func (m *Metrics) IncrementRefresh(result string) {
	if m != nil {
		m.Refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveRefreshLatency(d time.Duration) {
	if m != nil {
		m.RefreshLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) SetCourses(n int) {
	if m != nil {
		m.Courses.Set(float64(n))
	}
}

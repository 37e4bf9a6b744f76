package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration engine.
type Metrics struct {
	// Submission verdicts by outcome and rejection reason
	Outcomes *prometheus.CounterVec

	// Resolver attempts per submission (1 = no contention)
	Attempts prometheus.Histogram

	// Appends refused because another writer committed first
	VersionConflicts *prometheus.CounterVec

	// Token replays answered from the ledger
	Replays prometheus.Counter

	SubmitLatency prometheus.Histogram

	StatusCacheHits   prometheus.Counter
	StatusCacheMisses prometheus.Counter
}

// New creates a new Metrics instance with all registration metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_submissions_total",
			Help: "Registration submissions by outcome and reason",
		}, []string{"outcome", "reason"}),

		Attempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_resolver_attempts",
			Help:    "Resolver attempts per submission",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
		}),

		VersionConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_version_conflicts_total",
			Help: "Ledger appends rejected by a stale version token, by course",
		}, []string{"course_id"}),

		Replays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_idempotent_replays_total",
			Help: "Submissions answered from an already-committed idempotency token",
		}),

		SubmitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_submit_duration_seconds",
			Help:    "End-to-end submission duration including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		StatusCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_status_cache_hits_total",
			Help: "Course status reads served from cache",
		}),
		StatusCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_status_cache_misses_total",
			Help: "Course status reads that went to the ledger",
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome, reason string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome, reason).Inc()
	}
}

func (m *Metrics) ObserveAttempts(n int) {
	if m != nil {
		m.Attempts.Observe(float64(n))
	}
}

func (m *Metrics) IncrementVersionConflict(courseID string) {
	if m != nil {
		m.VersionConflicts.WithLabelValues(courseID).Inc()
	}
}

func (m *Metrics) IncrementReplay() {
	if m != nil {
		m.Replays.Inc()
	}
}

// ObserveSubmit records the duration of a Submit call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	if m != nil {
		m.SubmitLatency.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncrementStatusCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.StatusCacheHits.Inc()
	} else {
		m.StatusCacheMisses.Inc()
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AssignmentMetrics records outcomes of the auto-assignment engine.
type AssignmentMetrics struct {
	outcomes    *prometheus.CounterVec
	commitRetry prometheus.Counter
	poolBatch   *prometheus.HistogramVec
	poolEntries *prometheus.CounterVec
	escalations prometheus.Counter
	poolDepth   prometheus.Gauge
}

// NewAssignmentMetrics registers the engine metrics on the provided registerer.
func NewAssignmentMetrics(reg prometheus.Registerer) *AssignmentMetrics {
	if reg == nil {
		return &AssignmentMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_outcomes",
		Help: "Assignment attempts partitioned by terminal outcome.",
	}, []string{"outcome", "mode"})
	commitRetry := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_commit_retries",
		Help: "Commit attempts that lost the pre-commit re-validation race.",
	})
	poolBatch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pool_batch_duration_seconds",
		Help:    "Duration of pool batch runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	poolEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_entries_processed",
		Help: "Pool entries processed per batch result.",
	}, []string{"result"})
	escalations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_escalations",
		Help: "Bookings escalated for manual review.",
	})
	poolDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pool_depth",
		Help: "Bookings currently waiting in the pool.",
	})
	reg.MustRegister(outcomes, commitRetry, poolBatch, poolEntries, escalations, poolDepth)
	return &AssignmentMetrics{
		outcomes:    outcomes,
		commitRetry: commitRetry,
		poolBatch:   poolBatch,
		poolEntries: poolEntries,
		escalations: escalations,
		poolDepth:   poolDepth,
	}
}

// IncOutcome increments the outcome counter for a finished attempt.
func (a *AssignmentMetrics) IncOutcome(outcome, mode string) {
	if a == nil || a.outcomes == nil {
		return
	}
	a.outcomes.WithLabelValues(normalizeLabel(outcome), normalizeLabel(mode)).Inc()
}

// IncCommitRetry counts a commit that had to re-run after losing a race.
func (a *AssignmentMetrics) IncCommitRetry() {
	if a == nil || a.commitRetry == nil {
		return
	}
	a.commitRetry.Inc()
}

// ObservePoolBatch records the duration of a pool batch run.
func (a *AssignmentMetrics) ObservePoolBatch(kind string, duration time.Duration) {
	if a == nil || a.poolBatch == nil {
		return
	}
	a.poolBatch.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncPoolEntries adds processed entries for the given batch result.
func (a *AssignmentMetrics) IncPoolEntries(result string, n int) {
	if a == nil || a.poolEntries == nil || n <= 0 {
		return
	}
	a.poolEntries.WithLabelValues(normalizeLabel(result)).Add(float64(n))
}

// IncEscalation counts a booking handed off for manual review.
func (a *AssignmentMetrics) IncEscalation() {
	if a == nil || a.escalations == nil {
		return
	}
	a.escalations.Inc()
}

// SetPoolDepth publishes the current pool backlog size.
func (a *AssignmentMetrics) SetPoolDepth(depth int) {
	if a == nil || a.poolDepth == nil {
		return
	}
	a.poolDepth.Set(float64(depth))
}

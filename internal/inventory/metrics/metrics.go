package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for reservation operations.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds Prometheus metrics for the allocation engine and sweeper.
type Metrics struct {
	Operations          *prometheus.CounterVec
	LockWait            prometheus.Histogram
	LockTimeouts        prometheus.Counter
	PersistenceFailures prometheus.Counter
	SweepDuration       prometheus.Histogram
	Reclaimed           prometheus.Counter
	EventsDropped       prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stash_operations_total",
			Help: "Engine operations by name and outcome code",
		}, []string{"operation", "outcome"}),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stash_lock_wait_seconds",
			Help:    "Time spent waiting for a per-item lock",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		LockTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "stash_lock_timeouts_total",
			Help: "Lock acquisitions abandoned because the wait bound elapsed",
		}),
		PersistenceFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "stash_persistence_failures_total",
			Help: "Mutations rolled back because the store write failed",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stash_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		Reclaimed: f.NewCounter(prometheus.CounterOpts{
			Name: "stash_reservations_reclaimed_total",
			Help: "Pending reservations expired by the sweeper",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "stash_events_dropped_total",
			Help: "Lifecycle events dropped because the publish buffer was full",
		}),
	}
}

// ObserveOperation counts one engine operation. outcome is "success" or an error code.
func (m *Metrics) ObserveOperation(operation, outcome string) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveLockWait(seconds float64) {
	m.LockWait.Observe(seconds)
}

func (m *Metrics) IncLockTimeouts() {
	m.LockTimeouts.Inc()
}

func (m *Metrics) IncPersistenceFailures() {
	m.PersistenceFailures.Inc()
}

func (m *Metrics) ObserveSweep(seconds float64, reclaimed int) {
	m.SweepDuration.Observe(seconds)
	m.Reclaimed.Add(float64(reclaimed))
}

func (m *Metrics) IncEventsDropped() {
	m.EventsDropped.Inc()
}

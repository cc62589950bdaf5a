// Package metrics exposes the service's operational counters as
// Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements service.Recorder on Prometheus collectors.
type Recorder struct {
	transactionsRecorded *prometheus.CounterVec
	duplicatesResolved   prometheus.Counter
	validationFailures   prometheus.Counter
	storeErrors          *prometheus.CounterVec
	storeDuration        *prometheus.HistogramVec
}

// NewRecorder creates and registers the collectors on the given registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		transactionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transactions_recorded_total",
			Help: "Transactions persisted for the first time, by type.",
		}, []string{"type"}),
		duplicatesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transactions_duplicate_total",
			Help: "Submissions resolved to an already-stored transaction.",
		}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transaction_validation_failures_total",
			Help: "Submissions rejected before any store interaction.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Record store failures, by retryability.",
		}, []string{"retryable"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Record store call latency, by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(
		r.transactionsRecorded,
		r.duplicatesResolved,
		r.validationFailures,
		r.storeErrors,
		r.storeDuration,
	)
	return r
}

// TransactionRecorded implements service.Recorder.
func (r *Recorder) TransactionRecorded(transactionType string) {
	r.transactionsRecorded.WithLabelValues(transactionType).Inc()
}

// DuplicateResolved implements service.Recorder.
func (r *Recorder) DuplicateResolved() {
	r.duplicatesResolved.Inc()
}

// ValidationFailed implements service.Recorder.
func (r *Recorder) ValidationFailed() {
	r.validationFailures.Inc()
}

// StoreError implements service.Recorder.
func (r *Recorder) StoreError(retryable bool) {
	label := "false"
	if retryable {
		label = "true"
	}
	r.storeErrors.WithLabelValues(label).Inc()
}

// StoreDuration implements service.Recorder.
func (r *Recorder) StoreDuration(op string, d time.Duration) {
	r.storeDuration.WithLabelValues(op).Observe(d.Seconds())
}

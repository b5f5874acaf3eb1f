// Package metrics is the backend-agnostic instrumentation facade used by the
// loaders. Callers record counters and durations through the package-level
// helpers; a concrete backend (Pushgateway, DogStatsD) is installed once at
// startup with SetBackend. Until then every call goes to a no-op backend, so
// importers and tests never need to care whether metrics are configured.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal         = "loader_step_total"
	StepDuration      = "loader_step_duration_seconds"
	RecordsTotal      = "loader_records_total"
	BatchesTotal      = "loader_batches_total"
	TransactionsTotal = "loader_transactions_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface a metrics system must satisfy.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a pipeline step and its duration.
// Steps are "extract", "load", "report", "schema".
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Step starts timing step and returns the func that records it. Call the
// returned func once with the step's result:
//
//	done := metrics.Step(Job, "load")
//	st, err := Import(...)
//	done(err)
func Step(job, step string) func(err error) {
	start := now()
	return func(err error) { RecordStep(job, step, err, now().Sub(start)) }
}

// now is swapped in tests.
var now = time.Now

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds used by the loaders:
//   - "blocks", "orders", "details" (orders)
//   - "records", "artists", "albums", "songs" (catalog)
//   - "skipped_invalid_date", "no_key", "regrouped"
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the flushed-batch counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// Transaction outcomes for RecordTx.
const (
	TxCommit   = "commit"
	TxRollback = "rollback"
)

// RecordTx counts a finished transaction; outcome is TxCommit or TxRollback.
func RecordTx(job, outcome string) {
	backend.IncCounter(TransactionsTotal, 1, Labels{
		"job":     job,
		"outcome": outcome,
	})
}

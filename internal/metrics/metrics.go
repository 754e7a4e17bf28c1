// Package metrics exports Prometheus collectors for the scheduling core,
// adapted from the teacher's pkg/metrics: the same MustRegister-at-init and
// Timer helper pattern, pointed at scheduling-cycle and license-pool gauges
// instead of container/raft gauges.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CycleDuration measures one Main Scheduler Loop pass (spec.md §4.1).
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_cycle_duration_seconds",
		Help:    "Duration of one scheduling cycle.",
		Buckets: prometheus.DefBuckets,
	})

	// JobsStartedTotal counts jobs successfully placed per cycle.
	JobsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_jobs_started_total",
		Help: "Total jobs started by the scheduler loop.",
	})

	// JobsFailedTotal counts jobs transitioned to Failed, by reason.
	JobsFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_jobs_failed_total",
		Help: "Total jobs failed by the scheduler loop, by reason.",
	}, []string{"reason"})

	// CycleCutoffTotal counts why a cycle ended, by cause.
	CycleCutoffTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_cycle_cutoff_total",
		Help: "Total scheduling cycles ended, by cutoff cause.",
	}, []string{"cause"})

	// QueueDepth reports how many candidates the queue builder produced.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_queue_depth",
		Help: "Number of queue entries built in the most recent cycle.",
	})

	// LicenseUsed reports per-license usage against total.
	LicenseUsed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_license_used",
		Help: "Licenses currently in use, by license name.",
	}, []string{"license"})

	LicenseTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_license_total",
		Help: "Configured total licenses, by license name.",
	}, []string{"license"})

	// PreemptionsTotal counts victim stop actions, by mode.
	PreemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_preemptions_total",
		Help: "Total preemption actions taken, by mode.",
	}, []string{"mode"})

	// GangActiveJobs reports the current active-row size, by partition.
	GangActiveJobs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_gang_active_jobs",
		Help: "Jobs currently Active in a partition's gang row.",
	}, []string{"partition"})

	// GangShadows reports shadow-list size, by partition.
	GangShadows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_gang_shadows",
		Help: "Shadow entries currently cast onto a partition's row.",
	}, []string{"partition"})

	// LicenseSyncDuration measures one remote accounting-DB poll (spec.md
	// §4.4 "Remote-sync").
	LicenseSyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_license_sync_duration_seconds",
		Help:    "Duration of one remote license accounting-DB sync.",
		Buckets: prometheus.DefBuckets,
	})

	// LicenseSyncFailuresTotal counts failed remote sync attempts.
	LicenseSyncFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_license_sync_failures_total",
		Help: "Total failed remote license accounting-DB sync attempts.",
	})
)

func init() {
	prometheus.MustRegister(
		CycleDuration,
		JobsStartedTotal,
		JobsFailedTotal,
		CycleCutoffTotal,
		QueueDepth,
		LicenseUsed,
		LicenseTotal,
		PreemptionsTotal,
		GangActiveJobs,
		GangShadows,
		LicenseSyncDuration,
		LicenseSyncFailuresTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

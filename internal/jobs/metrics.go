package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job names. They label metrics and spans and are accepted by the
// internal job endpoint.
const (
	JobTypePublishScheduled = "publish_scheduled"
	JobTypeDailyRollup      = "daily_rollup"
	JobTypeCounterReconcile = "counter_reconcile"
)

// Run outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusTimeout = "timeout"
	// StatusSkipped marks a tick or manual trigger that found a run in progress.
	StatusSkipped = "skipped"
)

// Fully qualified metric names.
const (
	MetricJobRuns        = "reelcast_jobs_runs_total"
	MetricJobRunDuration = "reelcast_jobs_run_duration_seconds"
	MetricJobLastSuccess = "reelcast_jobs_last_success_timestamp_seconds"
)

// Metrics implements JobMetrics with Prometheus collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewMetrics builds unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelcast",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		// The publish sweep takes milliseconds; a full-day rollup or a
		// counter reconcile over every video can take minutes.
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reelcast",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Background job run time, skipped runs excluded.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 180, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reelcast",
			Subsystem: "jobs",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run, for staleness alerts.",
		}, []string{"job"}),
	}
}

// Register adds all collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.runs, m.duration, m.lastSuccess} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRun records one run. elapsed is ignored for skipped runs.
func (m *Metrics) ObserveRun(job, outcome string, elapsed time.Duration) {
	m.runs.WithLabelValues(job, outcome).Inc()
	if outcome == StatusSkipped {
		return
	}
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// MarkSuccess stamps the job's last successful completion.
func (m *Metrics) MarkSuccess(job string, at time.Time) {
	m.lastSuccess.WithLabelValues(job).Set(float64(at.Unix()))
}

package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
)

var (
	// jobRuns counts job executions by job name and outcome (ok|error|skipped).
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_job_runs_total",
			Help: "Total number of scheduled alert job runs.",
		},
		[]string{"job", "outcome"},
	)

	// jobDuration records job body duration in seconds. Scans touch several
	// tables, so buckets reach into minutes.
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alert_job_duration_seconds",
			Help:    "Duration of scheduled alert jobs in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job"},
	)

	// alertsCreated counts alerts persisted by jobs, by kind.
	alertsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_created_total",
			Help: "Total number of alerts created by scheduled jobs.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, jobDuration, alertsCreated)
}

func observeRun(job, outcome string, elapsed time.Duration, byKind map[string]int) {
	jobRuns.WithLabelValues(job, outcome).Inc()
	jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
	for kind, n := range byKind {
		if n > 0 {
			alertsCreated.WithLabelValues(kind).Add(float64(n))
		}
	}
}

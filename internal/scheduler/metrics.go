package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobRunsTotal counts job runs by result (ok, error, panic).
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emabot_scheduler_job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "result"},
	)

	// LockWaitSeconds tracks how long a job waited for the shared lock.
	LockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emabot_scheduler_lock_wait_seconds",
			Help:    "Time spent waiting for the shared cycle lock",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
)

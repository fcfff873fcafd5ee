package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesTotal tracks orders submitted to the exchange.
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emabot_execution_trades_total",
			Help: "Total number of orders submitted",
		},
		[]string{"mode", "side"},
	)

	// OutcomesTotal tracks execution outcomes.
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emabot_execution_outcomes_total",
			Help: "Execution outcomes by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	// ExecutionDurationSeconds tracks time from submission to resolution.
	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "emabot_execution_duration_seconds",
		Help:    "Duration of trade execution including fill resolution",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	})

	FillResolutionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "emabot_execution_fill_resolution_seconds",
		Help:    "Time spent polling order history for a fill",
		Buckets: prometheus.DefBuckets,
	})

	// ExecutionErrorsTotal tracks failed submissions by error kind.
	ExecutionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emabot_execution_errors_total",
		Help: "Total number of execution errors",
	}, []string{"kind"})
)

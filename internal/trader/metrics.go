package trader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts completed decision cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emabot_cycles_total",
			Help: "Total number of completed decision cycles",
		},
		[]string{"pair", "outcome"},
	)

	// CycleErrorsTotal counts cycles aborted before a decision, by the stage that failed.
	CycleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emabot_cycle_errors_total",
			Help: "Total number of aborted decision cycles",
		},
		[]string{"pair", "stage"},
	)

	// CycleDurationSeconds tracks wall time per cycle, including order execution.
	CycleDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emabot_cycle_duration_seconds",
			Help:    "Duration of a decision cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"pair"},
	)

	// ProfitPercent is the profit of the last evaluated trade against its opposing position.
	ProfitPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "emabot_profit_percent",
			Help: "Profit fraction of the last evaluated trade",
		},
		[]string{"pair"},
	)

	// FillsInWindow is the number of fills the last cycle aggregated.
	FillsInWindow = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "emabot_fills_in_window",
			Help: "Number of fills in the order history look-back window",
		},
		[]string{"pair"},
	)
)

package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Enabled indicates whether the circuit breaker allows trade execution.
	Enabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emabot_circuit_breaker_enabled",
		Help: "Whether circuit breaker allows trade execution (1=enabled, 0=disabled)",
	})

	// Balance tracks the last checked balance of the guarded currency.
	Balance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emabot_circuit_breaker_balance",
		Help: "Last checked balance of the guarded currency",
	})

	DisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emabot_circuit_breaker_disable_threshold",
		Help: "Balance below which execution is disabled",
	})

	EnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emabot_circuit_breaker_enable_threshold",
		Help: "Balance at or above which execution is re-enabled",
	})

	AvgTradeSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emabot_circuit_breaker_avg_trade_size",
		Help: "Rolling average main-currency notional of recent trades",
	})

	StateChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emabot_circuit_breaker_state_changes_total",
		Help: "Total number of times circuit breaker changed state",
	})

	CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "emabot_circuit_breaker_check_duration_seconds",
		Help:    "Time taken to check the balance",
		Buckets: prometheus.DefBuckets,
	})
)

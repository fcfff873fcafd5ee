package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emabot_exchange_requests_total",
		Help: "Total exchange API requests by command and result",
	}, []string{"command", "result"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emabot_exchange_request_duration_seconds",
		Help:    "Exchange API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	ChartCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emabot_exchange_chart_cache_hits_total",
		Help: "Chart series served from cache",
	})

	ChartCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emabot_exchange_chart_cache_misses_total",
		Help: "Chart series fetched from the exchange",
	})

	PaperOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emabot_exchange_paper_orders_total",
		Help: "Orders simulated by the paper exchange by side and result",
	}, []string{"side", "result"})
)

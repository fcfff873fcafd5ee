package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	HitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emabot_cache_hits_total",
		Help: "Total number of cache hits",
	}, []string{"cache"})

	MissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emabot_cache_misses_total",
		Help: "Total number of cache misses",
	}, []string{"cache"})

	SetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emabot_cache_sets_total",
		Help: "Total number of values admitted to the cache",
	}, []string{"cache"})

	RejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emabot_cache_rejected_total",
		Help: "Total number of values dropped by the admission policy",
	}, []string{"cache"})

	HitRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "emabot_cache_hit_ratio",
		Help: "Hit ratio reported by the cache",
	}, []string{"cache"})
)

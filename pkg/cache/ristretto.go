package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache is a SeriesCache backed by Ristretto. A series costs one unit per price point,
// so MaxCost bounds the number of cached points across all pairs.
type RistrettoCache struct {
	name   string
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for Ristretto cache.
type RistrettoConfig struct {
	Name        string // Metric label, e.g. "chart"
	NumCounters int64  // Keys tracked for admission, ~10x the expected number of series
	MaxCost     int64  // Price points
	BufferItems int64
	Logger      *zap.Logger
}

// NewRistrettoCache creates a new Ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}

	return &RistrettoCache{
		name:   name,
		cache:  c,
		logger: cfg.Logger.With(zap.String("cache", name)),
	}, nil
}

// Series implements SeriesCache.
func (r *RistrettoCache) Series(key string) ([]float64, bool) {
	defer func() {
		HitRatio.WithLabelValues(r.name).Set(r.cache.Metrics.Ratio())
	}()

	value, found := r.cache.Get(key)
	series, ok := value.([]float64)
	if !found || !ok {
		MissesTotal.WithLabelValues(r.name).Inc()
		r.logger.Debug("cache-miss", zap.String("key", key))
		return nil, false
	}

	HitsTotal.WithLabelValues(r.name).Inc()
	r.logger.Debug("cache-hit", zap.String("key", key), zap.Int("points", len(series)))
	return append([]float64(nil), series...), true
}

// StoreSeries implements SeriesCache.
func (r *RistrettoCache) StoreSeries(key string, series []float64, ttl time.Duration) bool {
	cost := int64(len(series))
	if cost == 0 {
		cost = 1
	}

	ok := r.cache.SetWithTTL(key, append([]float64(nil), series...), cost, ttl)
	if !ok {
		RejectedTotal.WithLabelValues(r.name).Inc()
		return false
	}

	SetsTotal.WithLabelValues(r.name).Inc()
	r.logger.Debug("cache-set",
		zap.String("key", key),
		zap.Int("points", len(series)),
		zap.Duration("ttl", ttl))
	return true
}

// Close implements SeriesCache.
func (r *RistrettoCache) Close() {
	r.cache.Close()
	r.logger.Info("cache-closed")
}

// Wait blocks until pending writes are applied.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}

// Package cache keeps recently fetched chart series so that cycles within one candle share a
// single exchange request.
package cache

import (
	"fmt"
	"time"
)

// SeriesCache stores price series that expire after a TTL. Implementations copy on the way in and
// on the way out, so callers may modify what they pass or receive.
type SeriesCache interface {
	// Series returns (series, true) if key is present and unexpired.
	Series(key string) ([]float64, bool)

	// StoreSeries stores a series with a TTL. Returns false if the series was dropped.
	StoreSeries(key string, series []float64, ttl time.Duration) bool

	Close()
}

// ChartKey identifies the series of one pair and candle period starting at since.
func ChartKey(pair string, period time.Duration, since time.Time) string {
	return fmt.Sprintf("chart:%s:%d:%d", pair, int64(period/time.Second), since.Unix())
}

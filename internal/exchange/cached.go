package exchange

import (
	"context"
	"time"

	"github.com/mselser95/poloniex-ema-bot/pkg/cache"
)

// CachedClient wraps a Client and caches chart series. Everything else passes straight through:
// tickers, balances and history must be fresh every cycle.
type CachedClient struct {
	Client
	cache cache.SeriesCache
	ttl   time.Duration
}

// NewCachedClient creates a new cached client. A nil cache or zero ttl disables caching.
func NewCachedClient(client Client, c cache.SeriesCache, ttl time.Duration) *CachedClient {
	return &CachedClient{
		Client: client,
		cache:  c,
		ttl:    ttl,
	}
}

// ChartPrices implements Client. The start time is truncated to the period so that cycles
// within the same candle share one cache entry.
func (c *CachedClient) ChartPrices(ctx context.Context, pair string, period time.Duration, since time.Time) ([]float64, error) {
	if period > 0 {
		since = since.Truncate(period)
	}
	if c.cache == nil || c.ttl <= 0 {
		return c.Client.ChartPrices(ctx, pair, period, since)
	}

	key := cache.ChartKey(pair, period, since)
	if prices, ok := c.cache.Series(key); ok {
		ChartCacheHitsTotal.Inc()
		return prices, nil
	}
	ChartCacheMissesTotal.Inc()

	prices, err := c.Client.ChartPrices(ctx, pair, period, since)
	if err != nil {
		return nil, err
	}

	c.cache.StoreSeries(key, prices, c.ttl)
	return prices, nil
}

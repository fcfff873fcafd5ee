// Package circuitbreaker halts main-currency spending when that balance runs low.
package circuitbreaker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const recentTradeWindow = 20

// BalanceFetcher returns available balances per currency. exchange.Client satisfies it.
type BalanceFetcher interface {
	Balances(ctx context.Context) (map[string]float64, error)
}

// BalanceCircuitBreaker monitors one currency's balance and gates trade execution.
// The disable threshold follows the rolling average of recent trade notionals and re-enabling
// requires the balance to recover past a higher threshold, so the state does not flap.
type BalanceCircuitBreaker struct {
	enabled atomic.Bool

	checkInterval   time.Duration
	balances        BalanceFetcher
	currency        string
	logger          *zap.Logger
	tradeMultiplier float64
	minAbsolute     float64
	hysteresisRatio float64

	mu               sync.RWMutex
	lastBalance      float64
	lastCheck        time.Time
	recentTrades     []float64 // Main-currency notionals, oldest first
	disableThreshold float64
	enableThreshold  float64
}

// Config holds circuit breaker configuration.
type Config struct {
	CheckInterval   time.Duration
	TradeMultiplier float64
	MinAbsolute     float64
	HysteresisRatio float64
	Currency        string
	Balances        BalanceFetcher
	Logger          *zap.Logger
}

// Status holds current circuit breaker status for debugging.
type Status struct {
	Enabled          bool      `json:"enabled"`
	Currency         string    `json:"currency"`
	LastBalance      float64   `json:"last_balance"`
	LastCheck        time.Time `json:"last_check"`
	DisableThreshold float64   `json:"disable_threshold"`
	EnableThreshold  float64   `json:"enable_threshold"`
	AvgTradeSize     float64   `json:"avg_trade_size"`
	RecentTradeCount int       `json:"recent_trade_count"`
}

// New creates a new circuit breaker with the given configuration.
func New(cfg *Config) (*BalanceCircuitBreaker, error) {
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("config cannot be nil")
	case cfg.Balances == nil:
		return nil, fmt.Errorf("balance fetcher cannot be nil")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("logger cannot be nil")
	case cfg.Currency == "":
		return nil, fmt.Errorf("currency cannot be empty")
	case cfg.CheckInterval <= 0:
		return nil, fmt.Errorf("check interval must be positive")
	case cfg.TradeMultiplier <= 0:
		return nil, fmt.Errorf("trade multiplier must be positive")
	case cfg.MinAbsolute <= 0:
		return nil, fmt.Errorf("min absolute must be positive")
	case cfg.HysteresisRatio < 1.0:
		return nil, fmt.Errorf("hysteresis ratio must be >= 1.0")
	}

	b := &BalanceCircuitBreaker{
		checkInterval:    cfg.CheckInterval,
		balances:         cfg.Balances,
		currency:         cfg.Currency,
		logger:           cfg.Logger.With(zap.String("currency", cfg.Currency)),
		tradeMultiplier:  cfg.TradeMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisRatio:  cfg.HysteresisRatio,
		recentTrades:     make([]float64, 0, recentTradeWindow),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}
	b.enabled.Store(true)

	Enabled.Set(1)
	DisableThreshold.Set(b.disableThreshold)
	EnableThreshold.Set(b.enableThreshold)
	AvgTradeSize.Set(0)

	return b, nil
}

// IsEnabled returns true if trades should be executed. Lock-free.
func (b *BalanceCircuitBreaker) IsEnabled() bool {
	return b.enabled.Load()
}

// RecordTrade adds a filled trade's main-currency notional to the rolling window and
// recalculates thresholds.
func (b *BalanceCircuitBreaker) RecordTrade(notional float64) {
	if notional <= 0 {
		b.logger.Warn("invalid-trade-size", zap.Float64("size", notional))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recentTrades = append(b.recentTrades, notional)
	if len(b.recentTrades) > recentTradeWindow {
		b.recentTrades = b.recentTrades[1:]
	}

	avg := average(b.recentTrades)
	b.disableThreshold = math.Max(avg*b.tradeMultiplier, b.minAbsolute)
	b.enableThreshold = b.disableThreshold * b.hysteresisRatio

	AvgTradeSize.Set(avg)
	DisableThreshold.Set(b.disableThreshold)
	EnableThreshold.Set(b.enableThreshold)

	b.logger.Debug("thresholds-updated",
		zap.Float64("avg-trade-size", avg),
		zap.Int("trade-count", len(b.recentTrades)),
		zap.Float64("disable-threshold", b.disableThreshold),
		zap.Float64("enable-threshold", b.enableThreshold))
}

// CheckBalance fetches the current balance and updates the enabled state.
func (b *BalanceCircuitBreaker) CheckBalance(ctx context.Context) error {
	start := time.Now()
	defer func() {
		CheckDuration.Observe(time.Since(start).Seconds())
	}()

	balances, err := b.balances.Balances(ctx)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}
	balance := balances[b.currency]

	b.mu.Lock()
	b.lastBalance = balance
	b.lastCheck = time.Now()
	disableThreshold := b.disableThreshold
	enableThreshold := b.enableThreshold
	b.mu.Unlock()

	Balance.Set(balance)

	currentlyEnabled := b.enabled.Load()
	switch {
	case currentlyEnabled && balance < disableThreshold:
		b.enabled.Store(false)
		Enabled.Set(0)
		StateChangesTotal.Inc()
		b.logger.Warn("circuit-breaker-disabled",
			zap.Float64("balance", balance),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	case !currentlyEnabled && balance >= enableThreshold:
		b.enabled.Store(true)
		Enabled.Set(1)
		StateChangesTotal.Inc()
		b.logger.Info("circuit-breaker-enabled",
			zap.Float64("balance", balance),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	default:
		b.logger.Debug("balance-checked",
			zap.Float64("balance", balance),
			zap.Bool("enabled", currentlyEnabled))
	}

	return nil
}

// CheckInterval returns how often CheckBalance should run. The caller schedules the checks
// so that balance reads are serialized with order placement.
func (b *BalanceCircuitBreaker) CheckInterval() time.Duration {
	return b.checkInterval
}

// GetStatus returns current circuit breaker status.
func (b *BalanceCircuitBreaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Status{
		Enabled:          b.enabled.Load(),
		Currency:         b.currency,
		LastBalance:      b.lastBalance,
		LastCheck:        b.lastCheck,
		DisableThreshold: b.disableThreshold,
		EnableThreshold:  b.enableThreshold,
		AvgTradeSize:     average(b.recentTrades),
		RecentTradeCount: len(b.recentTrades),
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

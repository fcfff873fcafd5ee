// Package app wires the bot together and manages its lifecycle.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/internal/circuitbreaker"
	"github.com/mselser95/poloniex-ema-bot/internal/exchange"
	"github.com/mselser95/poloniex-ema-bot/internal/execution"
	"github.com/mselser95/poloniex-ema-bot/internal/scheduler"
	"github.com/mselser95/poloniex-ema-bot/internal/storage"
	"github.com/mselser95/poloniex-ema-bot/internal/trader"
	"github.com/mselser95/poloniex-ema-bot/pkg/cache"
	"github.com/mselser95/poloniex-ema-bot/pkg/config"
	"github.com/mselser95/poloniex-ema-bot/pkg/healthprobe"
	"github.com/mselser95/poloniex-ema-bot/pkg/httpserver"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	client        exchange.Client
	chartCache    *cache.RistrettoCache
	breaker       *circuitbreaker.BalanceCircuitBreaker
	executor      *execution.Executor
	traders       []*trader.Trader
	scheduler     *scheduler.Scheduler
	storage       storage.Storage
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// Client replaces the exchange client built from configuration.
	Client exchange.Client
}

// PairStatuses returns the status of every trader, in configuration order.
func (a *App) PairStatuses() []trader.Status {
	statuses := make([]trader.Status, 0, len(a.traders))
	for _, t := range a.traders {
		statuses = append(statuses, t.Status())
	}
	return statuses
}

// Balances returns the account balances as seen by the configured exchange client.
func (a *App) Balances(ctx context.Context) (map[string]float64, error) {
	return a.client.Balances(ctx)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/internal/circuitbreaker"
	"github.com/mselser95/poloniex-ema-bot/internal/exchange"
	"github.com/mselser95/poloniex-ema-bot/internal/execution"
	"github.com/mselser95/poloniex-ema-bot/internal/position"
	"github.com/mselser95/poloniex-ema-bot/internal/scheduler"
	"github.com/mselser95/poloniex-ema-bot/internal/storage"
	"github.com/mselser95/poloniex-ema-bot/internal/strategy"
	"github.com/mselser95/poloniex-ema-bot/internal/trader"
	"github.com/mselser95/poloniex-ema-bot/pkg/cache"
	"github.com/mselser95/poloniex-ema-bot/pkg/config"
	"github.com/mselser95/poloniex-ema-bot/pkg/healthprobe"
	"github.com/mselser95/poloniex-ema-bot/pkg/httpserver"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		ctx:           ctx,
		cancel:        cancel,
	}

	err := a.setup(opts)
	if err != nil {
		a.closeResources()
		cancel()
		return nil, err
	}

	return a, nil
}

func (a *App) setup(opts *Options) error {
	chartCache, err := setupCache(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("setup cache: %w", err)
	}
	a.chartCache = chartCache

	a.client, err = setupExchange(a.cfg, a.logger, opts.Client, chartCache)
	if err != nil {
		return fmt.Errorf("setup exchange: %w", err)
	}

	a.storage, err = setupStorage(a.ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	a.breaker, err = setupCircuitBreaker(a.cfg, a.logger, a.client)
	if err != nil {
		return fmt.Errorf("setup circuit breaker: %w", err)
	}

	a.executor, err = setupExecutor(a.cfg, a.logger, a.client, a.breaker)
	if err != nil {
		return fmt.Errorf("setup executor: %w", err)
	}

	a.traders, err = setupTraders(a.cfg, a.logger, a.client, a.executor, a.storage)
	if err != nil {
		return fmt.Errorf("setup traders: %w", err)
	}

	a.scheduler, err = setupScheduler(a.cfg, a.logger, a.traders, a.breaker)
	if err != nil {
		return fmt.Errorf("setup scheduler: %w", err)
	}

	a.setupHealthChecks()
	a.httpServer = setupHTTPServer(a.cfg, a.logger, a.healthChecker, a, a.breaker)

	return nil
}

func setupCache(cfg *config.Config, logger *zap.Logger) (*cache.RistrettoCache, error) {
	if cfg.ChartCacheTTL <= 0 {
		logger.Info("chart-cache-disabled")
		return nil, nil
	}

	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:        "chart",
		NumCounters: cfg.CacheCounters,
		MaxCost:     cfg.CacheMaxCost,
		BufferItems: 64,
		Logger:      logger,
	})
}

// setupExchange builds the client every component talks to. Paper mode, and dry-run without
// API keys, simulate the account on top of live public market data.
func setupExchange(cfg *config.Config, logger *zap.Logger, override exchange.Client, chartCache *cache.RistrettoCache) (exchange.Client, error) {
	market := override
	if market == nil {
		market = exchange.NewPoloniex(&exchange.PoloniexConfig{
			BaseURL: cfg.PoloniexAPIURL,
			APIKey:  cfg.PoloniexAPIKey,
			Secret:  cfg.PoloniexAPISecret,
			Timeout: cfg.ExchangeTimeout,
			Logger:  logger,
		})
	}

	if chartCache != nil {
		market = exchange.NewCachedClient(market, chartCache, cfg.ChartCacheTTL)
	}

	simulate := cfg.ExecutionMode == string(execution.ModePaper) ||
		(cfg.ExecutionMode == string(execution.ModeDryRun) && cfg.PoloniexAPIKey == "" && override == nil)
	if !simulate {
		return market, nil
	}

	balances, err := config.ParsePaperBalances(cfg.PaperBalances)
	if err != nil {
		return nil, err
	}
	logger.Info("paper-exchange-enabled", zap.Any("balances", balances), zap.Float64("fee", cfg.PaperFee))

	return exchange.NewPaper(&exchange.PaperConfig{
		Market:   market,
		Balances: balances,
		Fee:      cfg.PaperFee,
		Logger:   logger,
	}), nil
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageMode {
	case "postgres":
		pgStorage, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	case "mysql":
		myStorage, err := storage.NewMySQLStorage(ctx, &storage.MySQLConfig{
			DSN:    cfg.MySQLDSN,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create mysql storage: %w", err)
		}
		return myStorage, nil
	default:
		return storage.NewConsoleStorage(logger), nil
	}
}

func setupCircuitBreaker(cfg *config.Config, logger *zap.Logger, client exchange.Client) (*circuitbreaker.BalanceCircuitBreaker, error) {
	if !cfg.CircuitBreakerEnabled || cfg.ExecutionMode == string(execution.ModeDryRun) {
		logger.Info("circuit-breaker-disabled", zap.String("mode", cfg.ExecutionMode))
		return nil, nil
	}

	return circuitbreaker.New(&circuitbreaker.Config{
		CheckInterval:   cfg.CircuitBreakerCheckInterval,
		TradeMultiplier: cfg.CircuitBreakerTradeMultiplier,
		MinAbsolute:     cfg.CircuitBreakerMinAbsolute,
		HysteresisRatio: cfg.CircuitBreakerHysteresisRatio,
		Currency:        cfg.CircuitBreakerCurrency,
		Balances:        client,
		Logger:          logger,
	})
}

func setupExecutor(
	cfg *config.Config,
	logger *zap.Logger,
	client exchange.Client,
	breaker *circuitbreaker.BalanceCircuitBreaker,
) (*execution.Executor, error) {
	execCfg := &execution.Config{
		Mode:        execution.Mode(cfg.ExecutionMode),
		Client:      client,
		GracePeriod: cfg.OrderGracePeriod,
		Logger:      logger,
		Tracker: execution.NewFillTracker(client, logger, &execution.FillTrackerConfig{
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			BackoffMult:    2.0,
			FillTimeout:    cfg.FillTimeout,
			Lookback:       cfg.FillLookback,
		}),
	}
	// A nil *BalanceCircuitBreaker must not become a non-nil interface.
	if breaker != nil {
		execCfg.Breaker = breaker
	}

	return execution.New(execCfg)
}

func setupTraders(
	cfg *config.Config,
	logger *zap.Logger,
	client exchange.Client,
	executor *execution.Executor,
	store storage.Storage,
) ([]*trader.Trader, error) {
	traders := make([]*trader.Trader, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		strat, err := strategy.New(cfg.Strategy, strategy.Params{
			AltFraction:          p.AltFraction,
			MainFraction:         p.MainFraction,
			MinBuyProfit:         p.MinBuyProfit,
			MinSellProfit:        p.MinSellProfit,
			NewOrderThreshold:    p.NewOrderThreshold,
			NewCurrencyThreshold: p.NewCurrencyThreshold,
		})
		if err != nil {
			return nil, err
		}

		t, err := trader.New(&trader.Config{
			Pair:     p.Name,
			Strategy: strat,
			Aggregator: position.Aggregator{
				Pair:            p.Name,
				AltFraction:     p.AltFraction,
				InitialBuyRate:  p.InitialBuyRate,
				InitialSellRate: p.InitialSellRate,
			},
			Reserves:      execution.Reserves{MinMain: p.MinMainReserve, MinAlt: p.MinAltReserve},
			HistoryWindow: p.HistoryWindow,
			ChartPeriod:   cfg.ChartPeriod,
			ChartWindow:   cfg.ChartWindow,
			Client:        client,
			Executor:      executor,
			Storage:       store,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", p.Name, err)
		}
		traders = append(traders, t)
	}

	return traders, nil
}

func setupScheduler(
	cfg *config.Config,
	logger *zap.Logger,
	traders []*trader.Trader,
	breaker *circuitbreaker.BalanceCircuitBreaker,
) (*scheduler.Scheduler, error) {
	s, err := scheduler.New(&scheduler.Config{
		Interval: cfg.UpdateInterval,
		Jitter:   cfg.UpdateJitter,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	for _, t := range traders {
		s.Add(cycleJob(t))
	}
	if breaker != nil {
		s.Add(breakerJob(breaker))
	}

	return s, nil
}

// breakerJob reads balances under the scheduler lock like every other exchange call, so a
// check never lands while a cycle is placing or resolving an order.
func breakerJob(b *circuitbreaker.BalanceCircuitBreaker) scheduler.Job {
	return scheduler.Job{
		Name:     "circuit-breaker",
		Interval: b.CheckInterval(),
		Run:      b.CheckBalance,
	}
}

func cycleJob(t *trader.Trader) scheduler.Job {
	return scheduler.Job{
		Name: t.Pair(),
		Run: func(ctx context.Context) error {
			_, err := t.Cycle(ctx)
			return err
		},
	}
}

func (a *App) setupHealthChecks() {
	if a.breaker != nil {
		a.healthChecker.AddCheck("circuit-breaker", func() error {
			if !a.breaker.IsEnabled() {
				return errors.New("trading disabled: balance below threshold")
			}
			return nil
		})
	}

	a.healthChecker.AddCheck("traders", func() error {
		statuses := a.PairStatuses()
		for _, st := range statuses {
			if st.Cycles == 0 || st.LastError == "" {
				return nil
			}
		}
		return errors.New("last cycle of every pair aborted")
	})
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	pairs httpserver.PairStatusSource,
	breaker *circuitbreaker.BalanceCircuitBreaker,
) *httpserver.Server {
	srvCfg := &httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Pairs:         pairs,
	}
	if breaker != nil {
		srvCfg.Breaker = breaker
	}

	return httpserver.New(srvCfg)
}

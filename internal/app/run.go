package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/internal/scheduler"
	"github.com/mselser95/poloniex-ema-bot/internal/trader"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	pairs := make([]string, 0, len(a.traders))
	for _, t := range a.traders {
		pairs = append(pairs, t.Pair())
	}
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.String("strategy", a.cfg.Strategy),
		zap.Strings("pairs", pairs),
		zap.Duration("update-interval", a.cfg.UpdateInterval),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("exchange-url", a.cfg.PoloniexAPIURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	if a.breaker != nil {
		a.logger.Info("circuit-breaker-started",
			zap.Duration("check-interval", a.breaker.CheckInterval()))
		err := a.scheduler.RunOnce(a.ctx, breakerJob(a.breaker))
		if err != nil {
			a.logger.Error("initial-balance-check-failed", zap.Error(err))
		}
	}

	err := a.scheduler.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// Evaluate runs one cycle for every pair, in order, under the scheduler lock. Aborted cycles
// are reported in the returned map instead of stopping the loop.
func (a *App) Evaluate(ctx context.Context) ([]trader.Report, map[string]error) {
	reports := make([]trader.Report, 0, len(a.traders))
	failures := make(map[string]error)

	for _, t := range a.traders {
		var report trader.Report
		err := a.scheduler.RunOnce(ctx, scheduler.Job{
			Name: t.Pair(),
			Run: func(ctx context.Context) error {
				var err error
				report, err = t.Cycle(ctx)
				return err
			},
		})
		if err != nil {
			failures[t.Pair()] = err
			continue
		}
		reports = append(reports, report)
	}

	return reports, failures
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}

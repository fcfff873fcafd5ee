package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// An in-flight cycle finishes its order resolution before storage is closed.
	a.scheduler.Wait()

	a.closeResources()

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}

// closeResources releases everything setup may have created. Safe on a partially built App.
func (a *App) closeResources() {
	if a.executor != nil {
		err := a.executor.Close()
		if err != nil {
			a.logger.Error("executor-close-error", zap.Error(err))
		}
	}

	if a.storage != nil {
		err := a.storage.Close()
		if err != nil {
			a.logger.Error("storage-close-error", zap.Error(err))
		}
	}

	if a.chartCache != nil {
		a.chartCache.Close()
	}
}

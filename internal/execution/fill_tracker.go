package execution

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// ErrFillTimeout is returned when an order never shows up in order history.
var ErrFillTimeout = errors.New("fill not observed before timeout")

// HistoryReader reads an account's fills. exchange.Client satisfies it.
type HistoryReader interface {
	OrderHistory(ctx context.Context, pair string, since time.Time) ([]types.TradeRecord, error)
}

// FillTracker resolves a placed order to its fills by polling order history with exponential
// backoff.
type FillTracker struct {
	history        HistoryReader
	logger         *zap.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
	backoffMult    float64
	fillTimeout    time.Duration
	lookback       time.Duration
}

// FillTrackerConfig holds configuration for fill resolution.
type FillTrackerConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffMult    float64
	FillTimeout    time.Duration
	// Lookback widens the history query before the submission time to absorb clock skew.
	Lookback time.Duration
}

// NewFillTracker creates a new FillTracker instance.
func NewFillTracker(history HistoryReader, logger *zap.Logger, cfg *FillTrackerConfig) *FillTracker {
	return &FillTracker{
		history:        history,
		logger:         logger,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		backoffMult:    cfg.BackoffMult,
		fillTimeout:    cfg.FillTimeout,
		lookback:       cfg.Lookback,
	}
}

// AwaitFill polls order history until records for orderNumber appear and returns all of them
// (a single order may fill in several trades). Query errors are logged and retried. Returns
// ErrFillTimeout when the fill timeout elapses, or the context error if ctx is cancelled.
func (ft *FillTracker) AwaitFill(ctx context.Context, pair, orderNumber string, submittedAt time.Time) ([]types.TradeRecord, error) {
	start := time.Now()
	since := submittedAt.Add(-ft.lookback)

	timeout := time.NewTimer(ft.fillTimeout)
	defer timeout.Stop()

	backoff := ft.initialBackoff
	attempt := 1

	for {
		records, err := ft.history.OrderHistory(ctx, pair, since)
		if err != nil {
			ft.logger.Warn("order-history-query-failed-retrying",
				zap.String("pair", pair),
				zap.String("order-number", orderNumber),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if matched := matchOrder(records, orderNumber); len(matched) > 0 {
			FillResolutionSeconds.Observe(time.Since(start).Seconds())
			ft.logger.Info("order-filled",
				zap.String("pair", pair),
				zap.String("order-number", orderNumber),
				zap.Int("trades", len(matched)),
				zap.Int("attempts", attempt),
				zap.Duration("duration", time.Since(start)))
			return matched, nil
		}

		select {
		case <-timeout.C:
			ft.logger.Warn("fill-resolution-timeout",
				zap.String("pair", pair),
				zap.String("order-number", orderNumber),
				zap.Duration("timeout", ft.fillTimeout),
				zap.Int("attempts", attempt))
			return nil, ErrFillTimeout

		case <-ctx.Done():
			ft.logger.Warn("fill-resolution-canceled",
				zap.String("order-number", orderNumber),
				zap.Int("attempts", attempt),
				zap.Error(ctx.Err()))
			return nil, ctx.Err()

		case <-time.After(backoff):
			attempt++
			ft.logger.Debug("fill-resolution-retry",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))

			backoff = time.Duration(float64(backoff) * ft.backoffMult)
			if backoff > ft.maxBackoff {
				backoff = ft.maxBackoff
			}
		}
	}
}

func matchOrder(records []types.TradeRecord, orderNumber string) []types.TradeRecord {
	var matched []types.TradeRecord
	for _, rec := range records {
		if rec.OrderNumber == orderNumber {
			matched = append(matched, rec)
		}
	}
	return matched
}

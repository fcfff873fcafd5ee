package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/poloniex-ema-bot/internal/testutil"
	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

func fastTrackerConfig() *FillTrackerConfig {
	return &FillTrackerConfig{
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		BackoffMult:    2.0,
		FillTimeout:    200 * time.Millisecond,
		Lookback:       time.Minute,
	}
}

// delayedHistory reveals its records only after a number of calls and can fail the first ones.
type delayedHistory struct {
	mu        sync.Mutex
	calls     int
	revealAt  int
	failUntil int
	records   []types.TradeRecord
	since     time.Time
}

func (d *delayedHistory) OrderHistory(_ context.Context, _ string, since time.Time) ([]types.TradeRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	d.since = since
	if d.calls <= d.failUntil {
		return nil, &types.TransportError{Command: "returnTradeHistory", Err: errors.New("timeout")}
	}
	if d.calls < d.revealAt {
		return nil, nil
	}
	return d.records, nil
}

func TestFillTracker_ResolvesAllTradesOfOrder(t *testing.T) {
	now := time.Now()
	history := &delayedHistory{
		revealAt: 3,
		records: []types.TradeRecord{
			testutil.CreateTestTradeRecord("other", types.SideBuy, 0.05, 1, now),
			testutil.CreateTestTradeRecord("42", types.SideSell, 0.05, 1, now),
			testutil.CreateTestTradeRecord("42", types.SideSell, 0.0501, 0.5, now),
		},
	}
	tracker := NewFillTracker(history, zaptest.NewLogger(t), fastTrackerConfig())

	records, err := tracker.AwaitFill(context.Background(), "BTC_ETH", "42", now)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0.0501", records[1].Rate)
	assert.Equal(t, 3, history.calls)
	assert.Equal(t, now.Add(-time.Minute), history.since)
}

func TestFillTracker_RetriesQueryErrors(t *testing.T) {
	now := time.Now()
	history := &delayedHistory{
		failUntil: 2,
		records:   []types.TradeRecord{testutil.CreateTestTradeRecord("7", types.SideBuy, 0.05, 1, now)},
	}
	tracker := NewFillTracker(history, zaptest.NewLogger(t), fastTrackerConfig())

	records, err := tracker.AwaitFill(context.Background(), "BTC_ETH", "7", now)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 3, history.calls)
}

func TestFillTracker_Timeout(t *testing.T) {
	history := &delayedHistory{revealAt: 1000}
	tracker := NewFillTracker(history, zaptest.NewLogger(t), fastTrackerConfig())

	start := time.Now()
	_, err := tracker.AwaitFill(context.Background(), "BTC_ETH", "42", start)
	assert.ErrorIs(t, err, ErrFillTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Greater(t, history.calls, 3)
}

func TestFillTracker_ContextCanceled(t *testing.T) {
	history := &delayedHistory{revealAt: 1000}
	cfg := fastTrackerConfig()
	cfg.FillTimeout = time.Minute
	tracker := NewFillTracker(history, zaptest.NewLogger(t), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := tracker.AwaitFill(ctx, "BTC_ETH", "42", time.Now())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

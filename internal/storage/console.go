package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

const rule = "────────────────────────────────────────────────────────────"

// ConsoleStorage implements Storage by pretty-printing decisions that did something.
// No-action cycles are only logged at debug level to keep the console readable.
type ConsoleStorage struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	return NewConsoleStorageWriter(os.Stdout, logger)
}

// NewConsoleStorageWriter creates a console storage writing to out.
func NewConsoleStorageWriter(out io.Writer, logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    out,
		logger: logger,
	}
}

// StoreDecision implements Storage.
func (c *ConsoleStorage) StoreDecision(_ context.Context, rec *types.DecisionRecord) error {
	if rec.Outcome == types.OutcomeNoAction {
		c.logger.Debug("decision",
			zap.String("pair", rec.Pair),
			zap.String("state", rec.State),
			zap.Float64("profit-percent", rec.ProfitPercent))
		return nil
	}

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%s %s  %s (%s)\n", strings.ToUpper(rec.Action), rec.Pair, strings.ToUpper(string(rec.Outcome)), rec.State)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Time:      %s\n", rec.EvaluatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Strategy:  %s\n", rec.Strategy)
	fmt.Fprintf(&b, "Bid/Ask:   %.8f / %.8f\n", rec.HighestBid, rec.LowestAsk)
	fmt.Fprintf(&b, "EMA:       %.8f / %.8f\n", rec.EMA1, rec.EMA2)
	if rec.BuyRate > 0 || rec.SellRate > 0 {
		fmt.Fprintf(&b, "Position:  buy %.8f  sell %.8f\n", rec.BuyRate, rec.SellRate)
	}
	fmt.Fprintf(&b, "Amount:    %.8f alt  %.8f main\n", rec.AltAmount, rec.MainAmount)
	fmt.Fprintf(&b, "Profit:    %.2f%%\n", rec.ProfitPercent*100)
	if rec.OrderNumber != "" {
		fmt.Fprintf(&b, "Order:     %s\n", rec.OrderNumber)
	}
	if rec.Reason != "" {
		fmt.Fprintf(&b, "Reason:    %s\n", rec.Reason)
	}
	fmt.Fprintln(&b, rule)

	if _, err := io.WriteString(c.out, b.String()); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}

// Package storage keeps an audit log of every decision cycle. The log is write-only: positions
// are always rebuilt from exchange order history, never from here.
package storage

import (
	"context"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Storage is the interface for recording decisions.
type Storage interface {
	// StoreDecision records one cycle's decision.
	StoreDecision(ctx context.Context, rec *types.DecisionRecord) error

	// Close closes the storage connection.
	Close() error
}

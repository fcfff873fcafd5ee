package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/pkg/types"
)

// Dialect holds what differs between the supported SQL databases.
type Dialect struct {
	Name        string
	placeholder func(n int) string
	createTable string
}

var decisionColumns = []string{
	"id", "pair", "evaluated_at", "strategy",
	"highest_bid", "lowest_ask", "ema1", "ema2", "can_buy", "can_sell",
	"buy_rate", "sell_rate", "main_balance", "alt_balance",
	"action", "state", "main_amount", "alt_amount", "profit_percent",
	"outcome", "order_number", "reason",
}

// SQLStorage implements Storage on a database/sql connection.
type SQLStorage struct {
	db      *sql.DB
	dialect Dialect
	insert  string
	logger  *zap.Logger
}

// NewSQLStorage wraps an open connection. The caller keeps no other reference to db:
// Close closes it.
func NewSQLStorage(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQLStorage {
	placeholders := make([]string, len(decisionColumns))
	for i := range placeholders {
		placeholders[i] = dialect.placeholder(i + 1)
	}

	return &SQLStorage{
		db:      db,
		dialect: dialect,
		insert: fmt.Sprintf("INSERT INTO decisions (%s) VALUES (%s)",
			strings.Join(decisionColumns, ", "), strings.Join(placeholders, ", ")),
		logger: logger,
	}
}

// Migrate creates the decisions table if it does not exist.
func (s *SQLStorage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return fmt.Errorf("create decisions table: %w", err)
	}
	return nil
}

// StoreDecision implements Storage.
func (s *SQLStorage) StoreDecision(ctx context.Context, rec *types.DecisionRecord) error {
	_, err := s.db.ExecContext(ctx, s.insert,
		rec.ID,
		rec.Pair,
		rec.EvaluatedAt,
		rec.Strategy,
		rec.HighestBid,
		rec.LowestAsk,
		rec.EMA1,
		rec.EMA2,
		rec.CanBuy,
		rec.CanSell,
		rec.BuyRate,
		rec.SellRate,
		rec.MainBalance,
		rec.AltBalance,
		rec.Action,
		rec.State,
		rec.MainAmount,
		rec.AltAmount,
		rec.ProfitPercent,
		string(rec.Outcome),
		rec.OrderNumber,
		rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	s.logger.Debug("decision-stored",
		zap.String("decision-id", rec.ID),
		zap.String("pair", rec.Pair),
		zap.String("outcome", string(rec.Outcome)))

	return nil
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	s.logger.Info("closing-sql-storage", zap.String("dialect", s.dialect.Name))
	return s.db.Close()
}

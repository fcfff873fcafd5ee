package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Postgres is the PostgreSQL dialect.
var Postgres = Dialect{
	Name:        "postgres",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	createTable: `CREATE TABLE IF NOT EXISTS decisions (
		id             UUID PRIMARY KEY,
		pair           TEXT NOT NULL,
		evaluated_at   TIMESTAMPTZ NOT NULL,
		strategy       TEXT NOT NULL,
		highest_bid    DOUBLE PRECISION NOT NULL,
		lowest_ask     DOUBLE PRECISION NOT NULL,
		ema1           DOUBLE PRECISION NOT NULL,
		ema2           DOUBLE PRECISION NOT NULL,
		can_buy        BOOLEAN NOT NULL,
		can_sell       BOOLEAN NOT NULL,
		buy_rate       DOUBLE PRECISION NOT NULL,
		sell_rate      DOUBLE PRECISION NOT NULL,
		main_balance   DOUBLE PRECISION NOT NULL,
		alt_balance    DOUBLE PRECISION NOT NULL,
		action         TEXT NOT NULL,
		state          TEXT NOT NULL,
		main_amount    DOUBLE PRECISION NOT NULL,
		alt_amount     DOUBLE PRECISION NOT NULL,
		profit_percent DOUBLE PRECISION NOT NULL,
		outcome        TEXT NOT NULL,
		order_number   TEXT NOT NULL,
		reason         TEXT NOT NULL
	)`,
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage connects to PostgreSQL and ensures the decisions table exists.
func NewPostgresStorage(ctx context.Context, cfg *PostgresConfig) (*SQLStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewSQLStorage(db, Postgres, cfg.Logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return s, nil
}

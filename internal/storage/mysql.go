package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQL is the MySQL dialect.
var MySQL = Dialect{
	Name:        "mysql",
	placeholder: func(int) string { return "?" },
	createTable: `CREATE TABLE IF NOT EXISTS decisions (
		id             CHAR(36) PRIMARY KEY,
		pair           VARCHAR(32) NOT NULL,
		evaluated_at   DATETIME(6) NOT NULL,
		strategy       VARCHAR(32) NOT NULL,
		highest_bid    DOUBLE NOT NULL,
		lowest_ask     DOUBLE NOT NULL,
		ema1           DOUBLE NOT NULL,
		ema2           DOUBLE NOT NULL,
		can_buy        BOOLEAN NOT NULL,
		can_sell       BOOLEAN NOT NULL,
		buy_rate       DOUBLE NOT NULL,
		sell_rate      DOUBLE NOT NULL,
		main_balance   DOUBLE NOT NULL,
		alt_balance    DOUBLE NOT NULL,
		action         VARCHAR(16) NOT NULL,
		state          VARCHAR(32) NOT NULL,
		main_amount    DOUBLE NOT NULL,
		alt_amount     DOUBLE NOT NULL,
		profit_percent DOUBLE NOT NULL,
		outcome        VARCHAR(16) NOT NULL,
		order_number   VARCHAR(64) NOT NULL,
		reason         VARCHAR(64) NOT NULL,
		INDEX idx_decisions_pair_time (pair, evaluated_at)
	)`,
}

// MySQLConfig holds MySQL configuration.
type MySQLConfig struct {
	DSN    string // e.g. user:pass@tcp(localhost:3306)/emabot
	Logger *zap.Logger
}

// NewMySQLStorage connects to MySQL and ensures the decisions table exists.
func NewMySQLStorage(ctx context.Context, cfg *MySQLConfig) (*SQLStorage, error) {
	dsn, err := mysqlDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewSQLStorage(db, MySQL, cfg.Logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("mysql-storage-connected", zap.String("database", dbName(dsn)))
	return s, nil
}

// mysqlDSN validates the DSN and forces UTC time.Time scanning.
func mysqlDSN(raw string) (string, error) {
	mc, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}

func dbName(dsn string) string {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return mc.DBName
}

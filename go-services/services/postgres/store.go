// Package postgres reads candles from a PostgreSQL table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"anchor-backtest/go-services/services/candles"
)

// Expected table layout:
//
//	symbol TEXT, timeframe TEXT, open_time_ms BIGINT,
//	open, high, low, close, volume DOUBLE PRECISION,
//	PRIMARY KEY (symbol, timeframe, open_time_ms)
const schemaDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		open_time_ms BIGINT NOT NULL,
		open DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		close DOUBLE PRECISION NOT NULL,
		volume DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (symbol, timeframe, open_time_ms)
	)`

var tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type candleRow struct {
	OpenTimeMs int64   `db:"open_time_ms"`
	Open       float64 `db:"open"`
	High       float64 `db:"high"`
	Low        float64 `db:"low"`
	Close      float64 `db:"close"`
	Volume     float64 `db:"volume"`
}

// Store is a candles.Store backed by sqlx over the pgx driver.
type Store struct {
	db     *sqlx.DB
	table  string
	logger *zap.Logger
}

var _ candles.Store = (*Store)(nil)

// New wraps an open handle. table may be schema-qualified.
func New(db *sqlx.DB, table string, logger *zap.Logger) (*Store, error) {
	if !tableRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, table: table, logger: logger}, nil
}

// Connect opens dsn with the pgx driver, retrying the ping with
// exponential backoff for up to maxElapsed.
func Connect(ctx context.Context, dsn, table string, maxElapsed time.Duration, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	if err := backoff.Retry(func() error {
		err := db.PingContext(ctx)
		if err != nil {
			logger.Warn("Postgres ping failed, retrying", zap.Error(err))
		}
		return err
	}, backoff.WithContext(b, ctx)); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db, table, logger)
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(schemaDDL, s.table))
	return err
}

func (s *Store) Load(ctx context.Context, symbol, timeframe string) ([]candles.Candle, error) {
	query := fmt.Sprintf(`
		SELECT open_time_ms, open, high, low, close, volume
		FROM %s
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY open_time_ms`, s.table)

	var rows []candleRow
	if err := s.db.SelectContext(ctx, &rows, query, symbol, timeframe); err != nil {
		s.logger.Error("Failed to load candles", zap.Error(err), zap.String("symbol", symbol), zap.String("timeframe", timeframe))
		return nil, fmt.Errorf("query candles: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", candles.SeriesKey{Symbol: symbol, Timeframe: timeframe}, candles.ErrSeriesNotFound)
	}
	bars := make([]candles.Candle, len(rows))
	for i, r := range rows {
		bars[i] = candles.Candle{Timestamp: r.OpenTimeMs, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
	}
	return bars, nil
}

func (s *Store) Symbols(ctx context.Context, timeframe string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT symbol FROM %s WHERE timeframe = $1 ORDER BY symbol`, s.table)
	var out []string
	if err := s.db.SelectContext(ctx, &out, query, timeframe); err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	return out, nil
}

// InsertCandles upserts bars in one transaction.
func (s *Store) InsertCandles(ctx context.Context, symbol, timeframe string, bars []candles.Candle) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, timeframe, open_time_ms, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timeframe, open_time_ms) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume`, s.table)
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("insert candle %d: %w", b.Timestamp, err)
		}
	}
	return tx.Commit()
}

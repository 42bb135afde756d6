// Package clickhouse stores candles and backtest results in ClickHouse.
package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"anchor-backtest/go-services/services/candles"
)

type Options struct {
	Addr        []string
	Database    string
	Table       string
	Username    string
	Password    string
	DialTimeout time.Duration
	// MaxElapsed bounds the connection retry loop. Zero means one minute.
	MaxElapsed time.Duration
}

// Store is a candles.Store over a ReplacingMergeTree table keyed by
// (symbol, interval, open_time_ms).
type Store struct {
	conn   driver.Conn
	opts   Options
	logger *zap.Logger
}

var _ candles.Store = (*Store)(nil)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(kind, name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

// Open connects and pings with exponential backoff until MaxElapsed.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := checkIdent("database", opts.Database); err != nil {
		return nil, err
	}
	if err := checkIdent("table", opts.Table); err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: opts.Addr,
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: opts.DialTimeout,
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Minute
	if opts.MaxElapsed > 0 {
		b.MaxElapsedTime = opts.MaxElapsed
	}
	ping := func() error {
		err := conn.Ping(ctx)
		if err != nil {
			logger.Warn("ClickHouse ping failed, retrying", zap.Strings("addr", opts.Addr), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	logger.Info("Connected to ClickHouse",
		zap.Strings("addr", opts.Addr),
		zap.String("database", opts.Database))
	return &Store{conn: conn, opts: opts, logger: logger}, nil
}

func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) table() string { return s.opts.Database + "." + s.opts.Table }

// CandlesDDL is the candle table definition.
func CandlesDDL(database, table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			interval LowCardinality(String),
			open_time_ms UInt64,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			quote_volume Float64,
			ingested_at DateTime64(3),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (symbol, interval, open_time_ms)
		SETTINGS index_granularity = 8192
	`, database, table)
}

// EnsureSchema creates the database and candle table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.opts.Database)); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	if err := s.conn.Exec(ctx, CandlesDDL(s.opts.Database, s.opts.Table)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, symbol, timeframe string) ([]candles.Candle, error) {
	q := fmt.Sprintf(`
		SELECT open_time_ms, open, high, low, close, volume
		FROM %s FINAL
		WHERE symbol = ? AND interval = ?
		ORDER BY open_time_ms`, s.table())
	rows, err := s.conn.Query(ctx, q, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var bars []candles.Candle
	for rows.Next() {
		var (
			ts uint64
			c  candles.Candle
		)
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timestamp = int64(ts)
		bars = append(bars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read candles: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", candles.SeriesKey{Symbol: symbol, Timeframe: timeframe}, candles.ErrSeriesNotFound)
	}
	return bars, nil
}

func (s *Store) Symbols(ctx context.Context, timeframe string) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT symbol FROM %s WHERE interval = ? ORDER BY symbol", s.table())
	rows, err := s.conn.Query(ctx, q, timeframe)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// InsertCandles appends bars in one native batch. Re-inserting a bar
// replaces it on merge since version grows with wall-clock time.
func (s *Store) InsertCandles(ctx context.Context, symbol, timeframe string, bars []candles.Candle) error {
	if len(bars) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table())
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	now := time.Now().UTC()
	version := uint64(now.UnixNano())
	for _, b := range bars {
		if err := batch.Append(
			symbol, timeframe, uint64(b.Timestamp),
			b.Open, b.High, b.Low, b.Close, b.Volume, b.Volume*b.Close,
			now, version,
		); err != nil {
			batch.Abort()
			return fmt.Errorf("append candle %d: %w", b.Timestamp, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	s.logger.Debug("Inserted candles",
		zap.String("series", candles.SeriesKey{Symbol: symbol, Timeframe: timeframe}.String()),
		zap.Int("rows", len(bars)))
	return nil
}

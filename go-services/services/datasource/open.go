// Package datasource opens the candle store selected by configuration.
package datasource

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"anchor-backtest/go-services/services/candles"
	"anchor-backtest/go-services/services/clickhouse"
	"anchor-backtest/go-services/services/config"
	"anchor-backtest/go-services/services/postgres"
)

const connectTimeout = time.Minute

// Sink is a candle store the installer can write into.
type Sink interface {
	candles.Store
	EnsureSchema(ctx context.Context) error
	InsertCandles(ctx context.Context, symbol, timeframe string, bars []candles.Candle) error
}

var (
	_ Sink = (*clickhouse.Store)(nil)
	_ Sink = (*postgres.Store)(nil)
)

// Open returns the store for cfg.Driver and a func releasing it.
func Open(ctx context.Context, cfg config.DataConfig, logger *zap.Logger) (candles.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case "", "csv":
		return candles.NewCSVStore(cfg.Dir), noop, nil
	case "clickhouse":
		ch := cfg.ClickHouse
		s, err := clickhouse.Open(ctx, clickhouse.Options{
			Addr:        ch.Addr,
			Database:    ch.Database,
			Table:       ch.Table,
			Username:    ch.Username,
			Password:    ch.Password,
			DialTimeout: ch.DialTimeout,
			MaxElapsed:  connectTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "postgres":
		s, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.Table, connectTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown data driver %q", cfg.Driver)
	}
}

// OpenSink opens a writable store. Only the clickhouse and postgres drivers
// accept writes.
func OpenSink(ctx context.Context, cfg config.DataConfig, logger *zap.Logger) (Sink, func() error, error) {
	switch cfg.Driver {
	case "clickhouse", "postgres":
	default:
		return nil, nil, fmt.Errorf("data driver %q cannot be written to", cfg.Driver)
	}
	s, closeFn, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	sink, ok := s.(Sink)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("data driver %q cannot be written to", cfg.Driver)
	}
	return sink, closeFn, nil
}

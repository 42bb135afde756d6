// install_candles.go
// One-shot installer for {SYMBOL}_{TIMEFRAME}.csv candle files into ClickHouse
// or Postgres (DRIVER), optionally deriving coarser timeframes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"anchor-backtest/go-services/services/candles"
	"anchor-backtest/go-services/services/config"
	"anchor-backtest/go-services/services/datasource"
	"anchor-backtest/go-services/services/logging"
)

// Config via env
type cfg struct {
	DataDir   string
	Symbols   []string
	Timeframe string
	Derive    []string
	Driver    string
	Addr      []string
	Database  string
	Table     string
	User      string
	Password  string
	PGDSN     string
	PGTable   string
	LogLevel  string
}

func mustEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadCfg() cfg {
	return cfg{
		DataDir:   mustEnv("DATA_DIR", "Data"),
		Symbols:   splitList(mustEnv("SYMBOLS", "")),
		Timeframe: mustEnv("TIMEFRAME", "1H"),
		Derive:    splitList(mustEnv("DERIVE", "")),
		Driver:    mustEnv("DRIVER", "clickhouse"),
		Addr:      splitList(mustEnv("CH_ADDR", "localhost:9000")),
		Database:  mustEnv("CH_DATABASE", "backtest"),
		Table:     mustEnv("CH_TABLE", "candles"),
		User:      mustEnv("CH_USER", "default"),
		Password:  mustEnv("CH_PASSWORD", ""),
		PGDSN:     mustEnv("PG_DSN", ""),
		PGTable:   mustEnv("PG_TABLE", "candles"),
		LogLevel:  mustEnv("LOG_LEVEL", "info"),
	}
}

func main() {
	c := loadCfg()
	logger, err := logging.New(c.LogLevel, "console")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := install(ctx, c, logger); err != nil {
		logger.Fatal("Install failed", zap.Error(err))
	}
}

func (c cfg) dataConfig() config.DataConfig {
	return config.DataConfig{
		Driver: c.Driver,
		ClickHouse: config.ClickHouseConfig{
			Addr:        c.Addr,
			Database:    c.Database,
			Table:       c.Table,
			Username:    c.User,
			Password:    c.Password,
			DialTimeout: 10 * time.Second,
		},
		Postgres: config.PostgresConfig{DSN: c.PGDSN, Table: c.PGTable},
	}
}

func install(ctx context.Context, c cfg, logger *zap.Logger) error {
	for _, tf := range c.Derive {
		if _, err := candles.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("DERIVE: %w", err)
		}
	}

	store, closeStore, err := datasource.OpenSink(ctx, c.dataConfig(), logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Ensure DB + table
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	src := candles.NewCSVStore(c.DataDir)
	symbols := c.Symbols
	if len(symbols) == 0 {
		if symbols, err = src.Symbols(ctx, c.Timeframe); err != nil {
			return err
		}
	}
	logger.Info("Installing candles",
		zap.String("driver", c.Driver),
		zap.String("dir", c.DataDir),
		zap.String("timeframe", c.Timeframe),
		zap.Int("symbols", len(symbols)),
		zap.Strings("derive", c.Derive))

	for _, sym := range symbols {
		if err := installSymbol(ctx, store, src, c, sym, logger); err != nil {
			// Non-fatal: continue other symbols
			logger.Warn("Symbol install failed", zap.String("symbol", sym), zap.Error(err))
		}
	}
	logger.Info("Done")
	return nil
}

func installSymbol(ctx context.Context, store datasource.Sink, src *candles.CSVStore, c cfg, sym string, logger *zap.Logger) error {
	bars, err := src.Load(ctx, sym, c.Timeframe)
	if err != nil {
		return err
	}
	if err := candles.Validate(bars); err != nil {
		return err
	}
	if err := store.InsertCandles(ctx, sym, c.Timeframe, bars); err != nil {
		return err
	}

	// Derive coarser timeframes; both sinks upsert on (symbol, timeframe, open time)
	for _, tf := range c.Derive {
		step, _ := candles.ParseTimeframe(tf)
		agg, err := candles.Resample(bars, step.Milliseconds())
		if err != nil {
			return fmt.Errorf("derive %s: %w", tf, err)
		}
		if err := store.InsertCandles(ctx, sym, tf, agg); err != nil {
			return fmt.Errorf("derive %s: %w", tf, err)
		}
	}
	logger.Info("Installed symbol", zap.String("symbol", sym), zap.Int("bars", len(bars)))
	return nil
}

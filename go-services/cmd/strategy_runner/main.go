// Strategy Runner runs an anchor-rule strategy over every target symbol and
// writes the result table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"anchor-backtest/go-services/services/arrowpipeline"
	"anchor-backtest/go-services/services/candles"
	"anchor-backtest/go-services/services/clickhouse"
	"anchor-backtest/go-services/services/config"
	"anchor-backtest/go-services/services/datasource"
	"anchor-backtest/go-services/services/engine"
	"anchor-backtest/go-services/services/logging"
	"anchor-backtest/go-services/services/results"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to strategy config (yaml, json or toml)")
		outPath     = flag.String("out", "", "Output file (defaults to output.path)")
		format      = flag.String("format", "", "Output format: 'csv' or 'arrow' (defaults to output.format)")
		workers     = flag.Int("workers", -1, "Worker count, 0 = one per CPU (defaults to config workers)")
		tracePath   = flag.String("trace", "", "Write a per-tick decision trace to this file")
		traceSymbol = flag.String("trace-symbol", "", "Symbol to trace")
		traceValue  = flag.String("trace-value", "", "Swept value to trace (empty = base rules)")
		sloMaxDur   = flag.Duration("slo-max-duration", 0, "Flag symbols slower than this")
		sloMinBars  = flag.Float64("slo-min-bars-per-sec", 0, "Flag symbols simulating fewer bars/sec")
	)
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config flag is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}
	if *outPath != "" {
		cfg.Output.Path = *outPath
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *tracePath, *traceSymbol, *traceValue, engine.SLOConfig{
		MaxDuration:   *sloMaxDur,
		MinBarsPerSec: *sloMinBars,
	}); err != nil {
		logger.Error("Run failed", zap.Error(err))
		if engine.IsConfigurationError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, tracePath, traceSymbol, traceValue string, slo engine.SLOConfig) error {
	store, closeStore, err := datasource.Open(ctx, cfg.Data, logger)
	if err != nil {
		return fmt.Errorf("open data source: %w", err)
	}
	defer closeStore()

	strategy := cfg.Strategy()

	if tracePath != "" {
		if traceSymbol == "" {
			return errors.New("-trace requires -trace-symbol")
		}
		if err := writeTrace(ctx, store, strategy, logger, tracePath, traceSymbol, traceValue); err != nil {
			return err
		}
	}

	runner, err := engine.NewRunner(store, strategy, cfg.Workers, logger)
	if err != nil {
		return err
	}
	runner.SetSLO(slo)

	report, runErr := runner.Run(ctx)
	if report == nil {
		return runErr
	}
	// a canceled run still writes what it finished
	if err := writeResults(ctx, cfg, report, logger); err != nil {
		return err
	}
	for _, f := range report.Failures {
		logger.Warn("Symbol failed", zap.String("symbol", f.Symbol), zap.String("class", f.Class), zap.String("error", f.Error))
	}
	logger.Info("Results written",
		zap.String("job_id", report.Manifest.JobID),
		zap.String("path", cfg.Output.Path),
		zap.Int("rows", len(report.Rows)),
		zap.Int("failures", len(report.Failures)),
		zap.Strings("skipped", report.Skipped),
		zap.Duration("duration", report.Duration))
	return runErr
}

func writeResults(ctx context.Context, cfg *config.Config, report *engine.Report, logger *zap.Logger) error {
	f, err := os.Create(cfg.Output.Path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	column := cfg.SweepColumn()
	switch cfg.Output.Format {
	case "arrow":
		p := arrowpipeline.NewPipeline(arrowpipeline.Config{}, logger)
		err = p.WriteRows(f, report.Rows, column)
	default:
		err = results.WriteCSV(f, report.Rows, column)
	}
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	if cfg.Output.ClickHouseURL != "" {
		w := clickhouse.NewResultWriter(
			cfg.Output.ClickHouseURL,
			cfg.Output.ClickHouseTable,
			cfg.Data.ClickHouse.Username,
			cfg.Data.ClickHouse.Password,
			report.Manifest.JobID,
			0,
			logger,
		)
		// the run context may already be canceled
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if err := w.EnsureTable(pushCtx); err != nil {
			return fmt.Errorf("prepare clickhouse results table: %w", err)
		}
		if err := w.Write(pushCtx, report.Rows); err != nil {
			return fmt.Errorf("push results to clickhouse: %w", err)
		}
	}
	return nil
}

func writeTrace(ctx context.Context, store candles.Store, s engine.Strategy, logger *zap.Logger, path, symbol, value string) error {
	var param *float64
	if value != "" {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("parse -trace-value: %w", err)
		}
		param = &v
	}

	loader := engine.NewLoader(store, logger)
	anchors, err := loader.LoadAnchors(ctx, s.SeriesKeys())
	if err != nil {
		return err
	}
	bars, err := loader.LoadTarget(ctx, symbol, s.Timeframe)
	if err != nil {
		return err
	}
	run, err := engine.PrepareSymbol(s, symbol, bars, anchors)
	if err != nil {
		return err
	}
	trace, err := engine.TraceSymbol(run, param)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace: %w", err)
	}
	defer f.Close()
	if err := trace.WriteCSV(f); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	logger.Info("Trace written",
		zap.String("symbol", symbol),
		zap.String("path", path),
		zap.Int("ticks", len(trace.Decisions)),
		zap.Int("trades", trace.Metrics.TradeCount),
		zap.Float64("final_cash", trace.FinalCash))
	return nil
}

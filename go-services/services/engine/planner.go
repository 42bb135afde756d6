package engine

// Run orchestrator: symbols fan out to a bounded worker pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"anchor-backtest/go-services/services/candles"
)

type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Class  string `json:"class"`
	Error  string `json:"error"`
	err    error
}

// Err returns the original error.
func (f SymbolFailure) Err() error { return f.err }

type Report struct {
	Manifest      *RunManifest      `json:"manifest"`
	Rows          []ResultRow       `json:"rows"`
	Failures      []SymbolFailure   `json:"failures,omitempty"`
	Skipped       []string          `json:"skipped,omitempty"`
	Throughput    []BenchmarkResult `json:"-"`
	SLOViolations []string          `json:"slo_violations,omitempty"`
	Duration      time.Duration     `json:"duration_ns"`
}

type Runner struct {
	store    candles.Store
	loader   *Loader
	strategy Strategy
	workers  int
	logger   *zap.Logger
	monitor  *PerformanceMonitor
}

// NewRunner validates the strategy and builds a runner. workers <= 0 means
// one per CPU.
func NewRunner(store candles.Store, strategy Strategy, workers int, logger *zap.Logger) (*Runner, error) {
	if err := ValidateStrategy(strategy); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		store:    store,
		loader:   NewLoader(store, logger),
		strategy: strategy,
		workers:  workers,
		logger:   logger,
		monitor:  NewPerformanceMonitor(SLOConfig{}),
	}, nil
}

// SetSLO bounds per-symbol duration and throughput. Breaches are logged and
// listed in the report; they do not fail the run.
func (r *Runner) SetSLO(cfg SLOConfig) {
	r.monitor = NewPerformanceMonitor(cfg)
}

// Symbols returns the configured targets, or every symbol the store holds in
// the target timeframe when none are configured.
func (r *Runner) Symbols(ctx context.Context) ([]string, error) {
	if len(r.strategy.Symbols) > 0 {
		return r.strategy.Symbols, nil
	}
	syms, err := r.store.Symbols(ctx, r.strategy.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("discover symbols: %w", err)
	}
	if len(syms) == 0 {
		return nil, configErrorf("no target symbols for timeframe %s", r.strategy.Timeframe)
	}
	return syms, nil
}

type symbolJob struct {
	idx    int
	symbol string
}

type symbolOutcome struct {
	idx     int
	rows    []ResultRow
	skipped bool
	err     error
}

// Run backtests every symbol. A failed symbol is logged and reported while
// the others continue. Rows come back in symbol order then grid order
// whatever the scheduling. On cancellation the partial report is returned
// with the context error. An unavailable anchor series returns a report
// failing every symbol together with the ConfigurationError.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	symbols, err := r.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	manifest := NewManifest(r.strategy, symbols)

	anchors, err := r.loader.LoadAnchors(ctx, r.strategy.SeriesKeys())
	if err != nil {
		if !IsConfigurationError(err) {
			return nil, err
		}
		// anchors are shared, so every symbol fails the same way
		report := &Report{Manifest: manifest, Duration: time.Since(start)}
		for _, sym := range symbols {
			report.Failures = append(report.Failures, SymbolFailure{
				Symbol: sym,
				Class:  ErrorClass(err),
				Error:  err.Error(),
				err:    err,
			})
		}
		r.logger.Error("Anchor series unavailable",
			zap.String("job_id", manifest.JobID),
			zap.Int("symbols", len(symbols)),
			zap.Error(err),
		)
		return report, err
	}

	numWorkers := r.workers
	if numWorkers > len(symbols) {
		numWorkers = len(symbols)
	}
	r.logger.Info("Starting backtest run",
		zap.String("job_id", manifest.JobID),
		zap.Int("workers", numWorkers),
		zap.Int("symbols", len(symbols)),
		zap.Int("grid_points", manifest.GridPoints),
	)

	jobChan := make(chan symbolJob, len(symbols))
	outChan := make(chan symbolOutcome, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go r.worker(ctx, i, anchors, jobChan, outChan, &wg)
	}

	for i, sym := range symbols {
		jobChan <- symbolJob{idx: i, symbol: sym}
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(outChan)
	}()

	outcomes := make([]symbolOutcome, len(symbols))
	done := make([]bool, len(symbols))
	for o := range outChan {
		outcomes[o.idx] = o
		done[o.idx] = true
	}

	report := &Report{Manifest: manifest}
	for i, o := range outcomes {
		switch {
		case !done[i]:
		case o.err != nil:
			if ErrorClass(o.err) == "canceled" {
				continue
			}
			report.Failures = append(report.Failures, SymbolFailure{
				Symbol: symbols[i],
				Class:  ErrorClass(o.err),
				Error:  o.err.Error(),
				err:    o.err,
			})
		case o.skipped:
			report.Skipped = append(report.Skipped, symbols[i])
		default:
			report.Rows = append(report.Rows, o.rows...)
		}
	}
	report.Throughput = r.monitor.Results()
	report.SLOViolations = r.monitor.CheckSLOs()
	for _, v := range report.SLOViolations {
		r.logger.Warn("SLO violation", zap.String("job_id", manifest.JobID), zap.String("detail", v))
	}
	report.Duration = time.Since(start)

	r.logger.Info("Backtest run completed",
		zap.String("job_id", manifest.JobID),
		zap.Duration("duration", report.Duration),
		zap.Int("rows", len(report.Rows)),
		zap.Int("failed", len(report.Failures)),
		zap.Int("skipped", len(report.Skipped)),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) worker(
	ctx context.Context,
	workerID int,
	anchors map[candles.SeriesKey][]candles.Candle,
	jobChan <-chan symbolJob,
	outChan chan<- symbolOutcome,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for job := range jobChan {
		if err := ctx.Err(); err != nil {
			outChan <- symbolOutcome{idx: job.idx, err: err}
			continue
		}
		r.logger.Debug("Worker processing symbol",
			zap.Int("worker_id", workerID),
			zap.String("symbol", job.symbol),
		)
		rows, skipped, err := r.processSymbol(ctx, job.symbol, anchors)
		if err != nil && ErrorClass(err) != "canceled" {
			r.logger.Warn("Symbol failed",
				zap.String("symbol", job.symbol),
				zap.String("class", ErrorClass(err)),
				zap.Error(err),
			)
		}
		outChan <- symbolOutcome{idx: job.idx, rows: rows, skipped: skipped, err: err}
	}
}

func (r *Runner) processSymbol(ctx context.Context, symbol string, anchors map[candles.SeriesKey][]candles.Candle) ([]ResultRow, bool, error) {
	start := time.Now()
	bars, err := r.loader.LoadTarget(ctx, symbol, r.strategy.Timeframe)
	if err != nil {
		return nil, false, err
	}

	if floor := r.strategy.MinAvgQuoteVolume; floor > 0 {
		if avg := candles.AvgQuoteVolume(bars); avg <= floor {
			r.logger.Info("Symbol below volume floor",
				zap.String("symbol", symbol),
				zap.Float64("avg_quote_volume", avg),
				zap.Float64("floor", floor),
			)
			return nil, true, nil
		}
	}

	rows, err := Backtest(ctx, r.strategy, symbol, bars, anchors)
	if err != nil {
		return nil, false, err
	}

	elapsed := time.Since(start)
	r.monitor.RecordBenchmark(symbol, elapsed, len(bars)*len(rows))
	r.logger.Info("Symbol completed",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
		zap.Int("rows", len(rows)),
		zap.Duration("duration", elapsed),
	)
	return rows, false, nil
}

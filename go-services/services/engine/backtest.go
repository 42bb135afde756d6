package engine

import (
	"context"

	"anchor-backtest/go-services/services/candles"
)

// SymbolRun is one target prepared for evaluation: prices checked, anchors
// aligned and every lagged change the rules need computed once.
type SymbolRun struct {
	Symbol   string
	Bars     []candles.Candle
	Aligned  *AlignedSeries
	Cache    *ChangeCache
	strategy Strategy
}

// PrepareSymbol validates the target and fills its change cache.
func PrepareSymbol(s Strategy, symbol string, bars []candles.Candle, anchors map[candles.SeriesKey][]candles.Candle) (*SymbolRun, error) {
	if err := CheckPrices(symbol, bars); err != nil {
		return nil, err
	}
	aligned, err := Align(bars, anchors, s.SeriesKeys())
	if err != nil {
		return nil, err
	}
	cache := NewChangeCache(s.lagMode())
	if err := cache.Prepare(aligned, s.Rules.Keys()); err != nil {
		return nil, err
	}
	return &SymbolRun{Symbol: symbol, Bars: bars, Aligned: aligned, Cache: cache, strategy: s}, nil
}

// Evaluate labels and simulates the series under rules. log may be nil.
func (r *SymbolRun) Evaluate(rules RuleSet, log *EventLog) (*SimResult, []Signal, error) {
	eng, err := NewSignalEngine(rules, r.Cache)
	if err != nil {
		return nil, nil, err
	}
	signals := eng.Signals(len(r.Bars))
	sim := NewSimulator(SimConfig{InitialCash: r.strategy.InitialCash}, log)
	res, err := sim.Run(r.Symbol, r.Bars, signals)
	if err != nil {
		return nil, nil, err
	}
	return res, signals, nil
}

// Row evaluates rules and summarises the result.
func (r *SymbolRun) Row(rules RuleSet, param *float64) (ResultRow, error) {
	res, _, err := r.Evaluate(rules, nil)
	if err != nil {
		return ResultRow{}, err
	}
	m := Analyze(r.strategy.InitialCash, res, r.strategy.AnnualPeriods())
	return m.Row(r.Symbol, param, r.strategy.InitialCash, res.FinalCash), nil
}

// Rows produces one row without a sweep, or one row per grid value. The
// context is checked between grid points; on cancellation no rows are
// returned so a symbol yields a complete set or nothing.
func (r *SymbolRun) Rows(ctx context.Context) ([]ResultRow, error) {
	sw := r.strategy.Sweep
	if sw == nil {
		row, err := r.Row(r.strategy.Rules, nil)
		if err != nil {
			return nil, err
		}
		return []ResultRow{row}, nil
	}

	grid, err := Grid(sw.Min, sw.Max, sw.Step)
	if err != nil {
		return nil, err
	}
	rows := make([]ResultRow, 0, len(grid))
	for _, v := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		param := v
		row, err := r.Row(sw.Apply(r.strategy.Rules, v), &param)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Backtest runs one symbol end to end against already loaded series.
func Backtest(ctx context.Context, s Strategy, symbol string, bars []candles.Candle, anchors map[candles.SeriesKey][]candles.Candle) ([]ResultRow, error) {
	run, err := PrepareSymbol(s, symbol, bars, anchors)
	if err != nil {
		return nil, err
	}
	return run.Rows(ctx)
}

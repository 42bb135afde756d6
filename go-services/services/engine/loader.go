package engine

// Series loader with gap reporting

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"anchor-backtest/go-services/services/candles"
)

type Loader struct {
	store  candles.Store
	logger *zap.Logger
}

func NewLoader(store candles.Store, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, logger: logger}
}

func (l *Loader) load(ctx context.Context, key candles.SeriesKey) ([]candles.Candle, error) {
	bars, err := l.store.Load(ctx, key.Symbol, key.Timeframe)
	if err != nil {
		if errors.Is(err, candles.ErrSeriesNotFound) {
			return nil, &ConfigurationError{Msg: "series " + key.String() + " unavailable", Err: err}
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	l.reportGaps(key, bars)
	return bars, nil
}

// LoadAnchors loads every anchor series once for the whole run.
func (l *Loader) LoadAnchors(ctx context.Context, keys []candles.SeriesKey) (map[candles.SeriesKey][]candles.Candle, error) {
	out := make(map[candles.SeriesKey][]candles.Candle, len(keys))
	for _, k := range keys {
		bars, err := l.load(ctx, k)
		if err != nil {
			return nil, err
		}
		out[k] = bars
	}
	return out, nil
}

// LoadTarget loads one target series.
func (l *Loader) LoadTarget(ctx context.Context, symbol, timeframe string) ([]candles.Candle, error) {
	return l.load(ctx, candles.SeriesKey{Symbol: symbol, Timeframe: timeframe})
}

// Gaps propagate as undefined lagged changes; they are logged, not fixed.
func (l *Loader) reportGaps(key candles.SeriesKey, bars []candles.Candle) {
	step, err := candles.ParseTimeframe(key.Timeframe)
	if err != nil {
		return
	}
	if gaps := candles.DetectGaps(bars, step.Milliseconds()); len(gaps) > 0 {
		l.logger.Debug("Series has gaps",
			zap.String("series", key.String()),
			zap.Int("gaps", len(gaps)),
			zap.Int64("first_gap_after", gaps[0]),
		)
	}
}

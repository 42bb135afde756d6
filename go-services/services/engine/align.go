package engine

import (
	"math"

	"anchor-backtest/go-services/services/candles"
)

// AlignedSeries carries one close column per anchor series, indexed like the
// target candles. Ticks without an exact-timestamp match hold NaN.
type AlignedSeries struct {
	Timestamps []int64
	columns    map[candles.SeriesKey][]float64
}

// Column returns the aligned close column for key.
func (a *AlignedSeries) Column(key candles.SeriesKey) ([]float64, bool) {
	col, ok := a.columns[key]
	return col, ok
}

func (a *AlignedSeries) Len() int { return len(a.Timestamps) }

// AlignCloses left-joins anchor closes onto the target timestamps by exact
// equality. No interpolation and no fill.
func AlignCloses(target []int64, anchor []candles.Candle) []float64 {
	byTs := make(map[int64]float64, len(anchor))
	for _, c := range anchor {
		byTs[c.Timestamp] = c.Close
	}
	out := make([]float64, len(target))
	for i, ts := range target {
		if v, ok := byTs[ts]; ok {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Align builds the aligned series for every key. A key missing from anchors
// is a ConfigurationError.
func Align(target []candles.Candle, anchors map[candles.SeriesKey][]candles.Candle, keys []candles.SeriesKey) (*AlignedSeries, error) {
	ts := make([]int64, len(target))
	for i, c := range target {
		ts[i] = c.Timestamp
	}
	out := &AlignedSeries{
		Timestamps: ts,
		columns:    make(map[candles.SeriesKey][]float64, len(keys)),
	}
	for _, k := range keys {
		series, ok := anchors[k]
		if !ok {
			return nil, &ConfigurationError{Msg: "anchor series " + k.String() + " unavailable", Err: candles.ErrSeriesNotFound}
		}
		out.columns[k] = AlignCloses(ts, series)
	}
	return out, nil
}

package engine

import (
	"fmt"
	"math"

	"anchor-backtest/go-services/services/candles"
)

// LagKey identifies one lagged change series.
type LagKey struct {
	Series candles.SeriesKey
	Lag    int
}

func (k LagKey) String() string { return fmt.Sprintf("%s_lag%d", k.Series, k.Lag) }

// LaggedChange returns (close[i]-close[i-1-lag])/close[i-1-lag]. The first
// lag+1 entries are NaN, as is any entry whose inputs are NaN or whose
// denominator is zero.
func LaggedChange(closes []float64, lag int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		j := i - 1 - lag
		if j < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = change(closes[j], closes[i])
	}
	return out
}

// ShiftedChange returns the one-bar change delayed by lag bars:
// (close[i-lag]-close[i-lag-1])/close[i-lag-1]. Warm-up is also lag+1.
func ShiftedChange(closes []float64, lag int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		j := i - lag
		if j < 1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = change(closes[j-1], closes[j])
	}
	return out
}

func change(from, to float64) float64 {
	if math.IsNaN(from) || math.IsNaN(to) || from == 0 {
		return math.NaN()
	}
	return (to - from) / from
}

// ChangeCache holds lagged change series keyed by LagKey. It is filled once
// per symbol run by Prepare and then only read, so grid points share it
// without copying.
type ChangeCache struct {
	mode     LagMode
	series   map[LagKey][]float64
	computed int
}

func NewChangeCache(mode LagMode) *ChangeCache {
	if mode == "" {
		mode = LagTrailing
	}
	return &ChangeCache{mode: mode, series: make(map[LagKey][]float64)}
}

// Prepare computes every key not already cached.
func (c *ChangeCache) Prepare(aligned *AlignedSeries, keys []LagKey) error {
	for _, k := range keys {
		if _, ok := c.series[k]; ok {
			continue
		}
		if k.Lag < 0 {
			return configErrorf("negative lag %d for %s", k.Lag, k.Series)
		}
		closes, ok := aligned.Column(k.Series)
		if !ok {
			return &ConfigurationError{Msg: "no aligned column for " + k.Series.String(), Err: candles.ErrSeriesNotFound}
		}
		switch c.mode {
		case LagShifted:
			c.series[k] = ShiftedChange(closes, k.Lag)
		case LagTrailing:
			c.series[k] = LaggedChange(closes, k.Lag)
		default:
			return configErrorf("unknown lag mode %q", c.mode)
		}
		c.computed++
	}
	return nil
}

func (c *ChangeCache) Get(k LagKey) ([]float64, bool) {
	s, ok := c.series[k]
	return s, ok
}

// Computations counts series computed since construction.
func (c *ChangeCache) Computations() int { return c.computed }

// Package candles holds the OHLCV series model and the stores that serve it.
package candles

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrSeriesNotFound is returned by every Store when no series exists for a
// (symbol, timeframe) pair.
var ErrSeriesNotFound = errors.New("series not found")

// Candle is one OHLCV bar. Timestamp is the bar open time in epoch milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// SeriesKey identifies one candle series.
type SeriesKey struct {
	Symbol    string `json:"symbol" mapstructure:"symbol"`
	Timeframe string `json:"timeframe" mapstructure:"timeframe"`
}

func (k SeriesKey) String() string { return k.Symbol + "_" + k.Timeframe }

// Store serves ordered candle series.
type Store interface {
	// Load returns the candles of one series in ascending timestamp order.
	Load(ctx context.Context, symbol, timeframe string) ([]Candle, error)
	// Symbols lists the symbols that have a series in the given timeframe.
	Symbols(ctx context.Context, timeframe string) ([]string, error)
}

// InvalidCandleError reports the first bar that breaks series invariants.
type InvalidCandleError struct {
	Index     int
	Timestamp int64
	Reason    string
}

func (e *InvalidCandleError) Error() string {
	return fmt.Sprintf("candle %d (ts=%d): %s", e.Index, e.Timestamp, e.Reason)
}

// Validate checks positive prices, non-negative volume and strictly
// ascending timestamps.
func Validate(bars []Candle) error {
	for i, b := range bars {
		switch {
		case !positive(b.Open), !positive(b.High), !positive(b.Low), !positive(b.Close):
			return &InvalidCandleError{Index: i, Timestamp: b.Timestamp, Reason: "non-positive or missing price"}
		case b.Volume < 0 || math.IsNaN(b.Volume):
			return &InvalidCandleError{Index: i, Timestamp: b.Timestamp, Reason: "negative volume"}
		case i > 0 && b.Timestamp <= bars[i-1].Timestamp:
			return &InvalidCandleError{Index: i, Timestamp: b.Timestamp, Reason: "timestamp not ascending"}
		}
	}
	return nil
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

// DetectGaps returns the timestamps after which at least one bar of
// stepMs is missing.
func DetectGaps(bars []Candle, stepMs int64) (gaps []int64) {
	if stepMs <= 0 {
		return nil
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp-bars[i-1].Timestamp > stepMs {
			gaps = append(gaps, bars[i-1].Timestamp)
		}
	}
	return gaps
}

// AvgQuoteVolume is the mean of volume*close over the series, 0 when empty.
func AvgQuoteVolume(bars []Candle) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.Volume * b.Close
	}
	return sum / float64(len(bars))
}

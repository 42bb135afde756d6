package candles

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeframe converts a timeframe label ("5m", "1h", "4H", "1d", "1w")
// into its bar duration. Lowercase "m" is minutes; an uppercase "M" is
// treated as a month and rejected since months have no fixed length.
func ParseTimeframe(tf string) (time.Duration, error) {
	s := strings.TrimSpace(tf)
	if len(s) < 2 {
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h', 'H':
		return time.Duration(n) * time.Hour, nil
	case 'd', 'D':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w', 'W':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported timeframe %q", tf)
}

// Resample aggregates ascending bars into epoch-aligned buckets of dstMs:
// first open, max high, min low, last close, summed volume.
func Resample(bars []Candle, dstMs int64) ([]Candle, error) {
	if dstMs <= 0 {
		return nil, fmt.Errorf("bucket size must be positive, got %d", dstMs)
	}
	out := make([]Candle, 0, len(bars))
	for _, b := range bars {
		bucket := floorDiv(b.Timestamp, dstMs) * dstMs
		n := len(out)
		if n == 0 || out[n-1].Timestamp != bucket {
			if n > 0 && bucket < out[n-1].Timestamp {
				return nil, fmt.Errorf("input not ascending at ts=%d", b.Timestamp)
			}
			nb := b
			nb.Timestamp = bucket
			out = append(out, nb)
			continue
		}
		agg := &out[n-1]
		if b.High > agg.High {
			agg.High = b.High
		}
		if b.Low < agg.Low {
			agg.Low = b.Low
		}
		agg.Close = b.Close
		agg.Volume += b.Volume
	}
	return out, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

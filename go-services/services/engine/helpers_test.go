package engine

import (
	"anchor-backtest/go-services/services/candles"
)

const hourMs = int64(3_600_000)

// barsFromOpens builds hourly candles whose close is open+1.
func barsFromOpens(opens ...float64) []candles.Candle {
	out := make([]candles.Candle, len(opens))
	for i, o := range opens {
		out[i] = candles.Candle{
			Timestamp: int64(i) * hourMs,
			Open:      o,
			High:      o + 2,
			Low:       o - 1,
			Close:     o + 1,
			Volume:    1000,
		}
	}
	return out
}

// barsFromCloses builds hourly candles with the given closes.
func barsFromCloses(closes ...float64) []candles.Candle {
	out := make([]candles.Candle, len(closes))
	for i, c := range closes {
		out[i] = candles.Candle{Timestamp: int64(i) * hourMs, Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func key(symbol string) candles.SeriesKey {
	return candles.SeriesKey{Symbol: symbol, Timeframe: "1H"}
}

func ptr(v float64) *float64 { return &v }

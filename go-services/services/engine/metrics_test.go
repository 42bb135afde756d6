package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalReturnPct(t *testing.T) {
	assert.InDelta(t, 25.0, TotalReturnPct(1000, 1250), 1e-12)
	assert.InDelta(t, -10.0, TotalReturnPct(1000, 900), 1e-12)
}

func TestWinRate(t *testing.T) {
	n, pct := WinRate(nil)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0.0, pct)

	trades := []Trade{
		{Kind: TradeEntry, Price: 10}, {Kind: TradeExit, Price: 12},
		{Kind: TradeEntry, Price: 12}, {Kind: TradeExit, Price: 12},
		{Kind: TradeEntry, Price: 12}, {Kind: TradeExit, Price: 11},
		{Kind: TradeEntry, Price: 11}, {Kind: TradeExit, Price: 15},
		{Kind: TradeEntry, Price: 15},
	}
	n, pct = WinRate(trades)
	assert.Equal(t, 4, n, "trailing entry is not counted")
	assert.InDelta(t, 50.0, pct, 1e-12)
}

func TestSharpe(t *testing.T) {
	assert.True(t, math.IsNaN(Sharpe([]float64{100, 100, 100}, 8760)), "zero variance")
	assert.True(t, math.IsNaN(Sharpe([]float64{100, 110}, 8760)), "single return")
	assert.True(t, math.IsNaN(Sharpe(nil, 8760)))

	eq := []float64{100, 110, 99, 108.9}
	// returns 0.1, -0.1, 0.1: mean 1/30, sample sd = sqrt(0.04/3)
	mean := 0.1 / 3
	sd := math.Sqrt((2*math.Pow(0.1-mean, 2) + math.Pow(-0.1-mean, 2)) / 2)
	assert.InDelta(t, mean/sd*math.Sqrt(252), Sharpe(eq, 252), 1e-9)
}

func TestMaxDrawdownPct(t *testing.T) {
	assert.Equal(t, 0.0, MaxDrawdownPct([]float64{1, 1, 2, 3, 3}), "non-decreasing curve")
	assert.InDelta(t, -50.0, MaxDrawdownPct([]float64{100, 200, 100, 150}), 1e-12)
	assert.InDelta(t, -25.0, MaxDrawdownPct([]float64{100, 75, 90}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdownPct(nil))

	for _, curve := range [][]float64{{5, 4, 3}, {1, 9, 2, 8}, {3, 3, 3}} {
		assert.LessOrEqual(t, MaxDrawdownPct(curve), 0.0)
	}
}

func TestMetricsRowSharpeNull(t *testing.T) {
	row := Metrics{Sharpe: math.NaN()}.Row("X", nil, 100, 100)
	assert.Nil(t, row.SharpeRatio)
	assert.Nil(t, row.Param)

	row = Metrics{Sharpe: 1.5}.Row("X", ptr(2), 100, 100)
	if assert.NotNil(t, row.SharpeRatio) {
		assert.Equal(t, 1.5, *row.SharpeRatio)
	}
	assert.Equal(t, 2.0, *row.Param)
}

func TestPeriodsPerYear(t *testing.T) {
	tests := map[string]float64{
		"1H":  8760,
		"1h":  8760,
		"4H":  2190,
		"1D":  365,
		"3d":  365.0 / 3,
		"15m": 35040,
		"1M":  252,
		"1W":  252,
		"":    252,
		"abc": 252,
	}
	for tf, want := range tests {
		assert.InDelta(t, want, PeriodsPerYear(tf), 1e-9, tf)
	}
}

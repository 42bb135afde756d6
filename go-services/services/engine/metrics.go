package engine

import (
	"math"
)

// Metrics summarises one simulation. Sharpe is NaN when undefined.
type Metrics struct {
	TotalReturnPct float64
	TradeCount     int
	WinRatePct     float64
	Sharpe         float64
	MaxDrawdownPct float64
}

// Analyze computes every metric of a simulation result.
func Analyze(initialCash float64, res *SimResult, periodsPerYear float64) Metrics {
	n, winPct := WinRate(res.Trades)
	return Metrics{
		TotalReturnPct: TotalReturnPct(initialCash, res.FinalCash),
		TradeCount:     n,
		WinRatePct:     winPct,
		Sharpe:         Sharpe(res.Equity, periodsPerYear),
		MaxDrawdownPct: MaxDrawdownPct(res.Equity),
	}
}

// Row turns metrics into a result row. param may be nil.
func (m Metrics) Row(symbol string, param *float64, initialCash, finalCash float64) ResultRow {
	row := ResultRow{
		Symbol:         symbol,
		Param:          param,
		InitialCash:    initialCash,
		FinalCash:      finalCash,
		TotalReturnPct: m.TotalReturnPct,
		TradeCount:     m.TradeCount,
		WinRatePct:     m.WinRatePct,
		MaxDrawdownPct: m.MaxDrawdownPct,
	}
	if !math.IsNaN(m.Sharpe) && !math.IsInf(m.Sharpe, 0) {
		v := m.Sharpe
		row.SharpeRatio = &v
	}
	return row
}

func TotalReturnPct(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial * 100
}

// WinRate pairs trades in log order (ENTRY, EXIT) and counts pairs whose
// exit price is above the entry price. A trailing unmatched entry is
// ignored.
func WinRate(trades []Trade) (count int, pct float64) {
	count = len(trades) / 2
	if count == 0 {
		return 0, 0
	}
	wins := 0
	for k := 0; k < count; k++ {
		if trades[2*k+1].Price > trades[2*k].Price {
			wins++
		}
	}
	return count, float64(wins) / float64(count) * 100
}

// PeriodReturns returns (e[i]-e[i-1])/e[i-1] for i >= 1, skipping steps
// whose previous equity is zero.
func PeriodReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, (equity[i]-equity[i-1])/equity[i-1])
	}
	return out
}

// Sharpe is mean/stdev of period returns (sample stdev) scaled by
// sqrt(periodsPerYear). NaN with fewer than two returns or zero stdev.
func Sharpe(equity []float64, periodsPerYear float64) float64 {
	r := PeriodReturns(equity)
	if len(r) < 2 {
		return math.NaN()
	}
	var sum float64
	for _, v := range r {
		sum += v
	}
	mean := sum / float64(len(r))
	var ss float64
	for _, v := range r {
		d := v - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(r)-1))
	if sd == 0 || math.IsNaN(sd) {
		return math.NaN()
	}
	return mean / sd * math.Sqrt(periodsPerYear)
}

// MaxDrawdownPct is min((e-runmax)/runmax)*100 over the curve; never positive.
func MaxDrawdownPct(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (e - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

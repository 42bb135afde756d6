package results

import (
	"fmt"
	"math"

	"anchor-backtest/go-services/services/engine"
)

// Composite score caps and minimums.
const (
	ReturnCap      = 45.0
	ReturnMin      = 15.0
	ReturnFullPct  = 300.0
	SharpeCap      = 35.0
	SharpeMin      = 10.0
	SharpeFull     = 5.0
	DrawdownCap    = 20.0
	DrawdownMin    = 5.0
	DrawdownZeroAt = 50.0
	PassTotal      = 60.0
)

type ScoreResult struct {
	Return   float64  `json:"return_score"`
	Sharpe   float64  `json:"sharpe_score"`
	Drawdown float64  `json:"drawdown_score"`
	Total    float64  `json:"total"`
	Passed   bool     `json:"passed"`
	Failed   []string `json:"failed,omitempty"`
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// Score rates a result row out of 100. Return earns full marks at +300%,
// Sharpe at 5 and drawdown loses all marks at 50%. An undefined Sharpe
// scores zero.
//
// The Sharpe input is the row's annualized ratio with a zero risk-free rate.
// It is not the per-period (mean - 0.0443) / stdev ratio computed from a
// return series, so scores of the same strategy differ between the two
// scales.
func Score(r engine.ResultRow) ScoreResult {
	var s ScoreResult
	s.Return = clamp(r.TotalReturnPct/ReturnFullPct*ReturnCap, 0, ReturnCap)
	if r.SharpeRatio != nil {
		s.Sharpe = clamp(*r.SharpeRatio/SharpeFull*SharpeCap, 0, SharpeCap)
	}
	s.Drawdown = clamp((1+r.MaxDrawdownPct/DrawdownZeroAt)*DrawdownCap, 0, DrawdownCap)
	s.Total = s.Return + s.Sharpe + s.Drawdown

	if s.Return < ReturnMin {
		s.Failed = append(s.Failed, fmt.Sprintf("return score %.2f < %.0f", s.Return, ReturnMin))
	}
	if s.Sharpe < SharpeMin {
		s.Failed = append(s.Failed, fmt.Sprintf("sharpe score %.2f < %.0f", s.Sharpe, SharpeMin))
	}
	if s.Drawdown < DrawdownMin {
		s.Failed = append(s.Failed, fmt.Sprintf("drawdown score %.2f < %.0f", s.Drawdown, DrawdownMin))
	}
	if s.Total < PassTotal {
		s.Failed = append(s.Failed, fmt.Sprintf("total score %.2f < %.0f", s.Total, PassTotal))
	}
	s.Passed = len(s.Failed) == 0
	return s
}

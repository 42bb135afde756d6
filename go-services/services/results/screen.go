package results

import (
	"anchor-backtest/go-services/services/engine"
)

// FilterAbove keeps rows whose final cash is strictly above threshold.
func FilterAbove(rows []engine.ResultRow, threshold float64) []engine.ResultRow {
	var out []engine.ResultRow
	for _, r := range rows {
		if r.FinalCash > threshold {
			out = append(out, r)
		}
	}
	return out
}

// Share is a count out of a total.
type Share struct {
	Count int     `json:"count"`
	Total int     `json:"total"`
	Pct   float64 `json:"pct"`
}

func share(count, total int) Share {
	s := Share{Count: count, Total: total}
	if total > 0 {
		s.Pct = float64(count) / float64(total) * 100
	}
	return s
}

// SplitBySign counts rows above the cash threshold separately for negative
// and positive swept values. Rows with a zero or missing value are ignored.
func SplitBySign(rows []engine.ResultRow, threshold float64) (negative, positive Share) {
	var negN, negHit, posN, posHit int
	for _, r := range rows {
		if r.Param == nil {
			continue
		}
		switch p := *r.Param; {
		case p < 0:
			negN++
			if r.FinalCash > threshold {
				negHit++
			}
		case p > 0:
			posN++
			if r.FinalCash > threshold {
				posHit++
			}
		}
	}
	return share(negHit, negN), share(posHit, posN)
}

type FunnelStage struct {
	Name string `json:"name"`
	Share
}

// FunnelResult lists the stages reached in order. Symbols holds the unique
// survivors of the last stage, in first-seen order, when every stage passed
// at least one row.
type FunnelResult struct {
	Stages  []FunnelStage `json:"stages"`
	Symbols []string      `json:"symbols,omitempty"`
}

// Funnel narrows rows with a positive swept value by final cash, Sharpe
// ratio and max drawdown in turn, each threshold exclusive. It stops at the
// first stage that keeps nothing.
func Funnel(rows []engine.ResultRow, cash, sharpe, drawdown float64) FunnelResult {
	var res FunnelResult
	cur := make([]engine.ResultRow, 0, len(rows))
	for _, r := range rows {
		if r.Param != nil && *r.Param > 0 {
			cur = append(cur, r)
		}
	}
	res.Stages = append(res.Stages, FunnelStage{Name: "positive_param", Share: share(len(cur), len(rows))})
	if len(cur) == 0 {
		return res
	}

	stages := []struct {
		name string
		keep func(engine.ResultRow) bool
	}{
		{"final_cash", func(r engine.ResultRow) bool { return r.FinalCash > cash }},
		{"sharpe_ratio", func(r engine.ResultRow) bool { return r.SharpeRatio != nil && *r.SharpeRatio > sharpe }},
		{"max_drawdown", func(r engine.ResultRow) bool { return r.MaxDrawdownPct > drawdown }},
	}
	for _, st := range stages {
		var next []engine.ResultRow
		for _, r := range cur {
			if st.keep(r) {
				next = append(next, r)
			}
		}
		res.Stages = append(res.Stages, FunnelStage{Name: st.name, Share: share(len(next), len(cur))})
		if len(next) == 0 {
			return res
		}
		cur = next
	}

	seen := make(map[string]bool)
	for _, r := range cur {
		if !seen[r.Symbol] {
			seen[r.Symbol] = true
			res.Symbols = append(res.Symbols, r.Symbol)
		}
	}
	return res
}

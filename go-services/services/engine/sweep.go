package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxGridPoints bounds a sweep grid.
const MaxGridPoints = 100_000

// Grid returns min, min+step, ... up to and including max. Points are
// computed as min + k*step in decimal so 0.1-style steps do not drift past
// the upper bound.
func Grid(min, max, step float64) ([]float64, error) {
	for _, v := range []float64{min, max, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, configErrorf("sweep bounds must be finite, got min=%v max=%v step=%v", min, max, step)
		}
	}
	if step <= 0 {
		return nil, configErrorf("sweep step must be positive, got %v", step)
	}
	if min > max {
		return nil, configErrorf("sweep min %v above max %v", min, max)
	}
	lo := decimal.NewFromFloat(min)
	hi := decimal.NewFromFloat(max)
	st := decimal.NewFromFloat(step)

	count := hi.Sub(lo).Div(st).Floor().Add(decimal.NewFromInt(1))
	if count.GreaterThan(decimal.NewFromInt(MaxGridPoints)) {
		return nil, configErrorf("sweep grid has %s points, limit is %d", count.String(), MaxGridPoints)
	}
	n := count.IntPart()
	out := make([]float64, 0, n)
	for k := int64(0); k < n; k++ {
		v := lo.Add(st.Mul(decimal.NewFromInt(k)))
		if v.GreaterThan(hi) {
			break
		}
		out = append(out, v.InexactFloat64())
	}
	return out, nil
}

// Targets returns the indices on Side the sweep overrides.
func (s Sweep) Targets(rules RuleSet) []int {
	side := rules.Buy
	if s.Side == SweepSell {
		side = rules.Sell
	}
	if len(s.Rules) > 0 {
		return s.Rules
	}
	idx := make([]int, len(side))
	for i := range side {
		idx[i] = i
	}
	return idx
}

// Apply returns a copy of rules with the selected thresholds set to value.
// Lag keys are untouched so the change cache stays valid.
func (s Sweep) Apply(rules RuleSet, value float64) RuleSet {
	out := rules.Clone()
	side := out.Buy
	if s.Side == SweepSell {
		side = out.Sell
	}
	for _, i := range s.Targets(rules) {
		if i >= 0 && i < len(side) {
			side[i].ChangePct = value
		}
	}
	return out
}

package engine

import (
	"math"
)

// BuyPasses reports whether a defined change satisfies a buy rule: above the
// threshold for up, below it for down. NaN never passes.
func BuyPasses(r Rule, change float64) bool {
	if math.IsNaN(change) {
		return false
	}
	t := r.Threshold()
	switch r.Direction {
	case DirectionUp:
		return change > t
	case DirectionDown:
		return change < t
	}
	return false
}

// SellTriggers reports whether a defined change fires a sell rule: at or
// below the threshold for down, at or above it for up. NaN never fires.
func SellTriggers(r Rule, change float64) bool {
	if math.IsNaN(change) {
		return false
	}
	t := r.Threshold()
	switch r.Direction {
	case DirectionDown:
		return change <= t
	case DirectionUp:
		return change >= t
	}
	return false
}

type boundRule struct {
	rule   Rule
	values []float64
}

// SignalEngine labels ticks from rules bound to cached change series.
type SignalEngine struct {
	buy  []boundRule
	sell []boundRule
}

// NewSignalEngine binds rules to their change series. Binding only looks up
// the cache, so one engine per grid point costs nothing.
func NewSignalEngine(rules RuleSet, cache *ChangeCache) (*SignalEngine, error) {
	bind := func(rs []Rule) ([]boundRule, error) {
		out := make([]boundRule, len(rs))
		for i, r := range rs {
			v, ok := cache.Get(r.Key())
			if !ok {
				return nil, configErrorf("lagged change %s not prepared", r.Key())
			}
			out[i] = boundRule{rule: r, values: v}
		}
		return out, nil
	}
	buy, err := bind(rules.Buy)
	if err != nil {
		return nil, err
	}
	sell, err := bind(rules.Sell)
	if err != nil {
		return nil, err
	}
	return &SignalEngine{buy: buy, sell: sell}, nil
}

func valueAt(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

// BuyOK: every buy rule defined and passing. An empty buy list is
// vacuously true.
func (e *SignalEngine) BuyOK(i int) bool {
	for _, b := range e.buy {
		if !BuyPasses(b.rule, valueAt(b.values, i)) {
			return false
		}
	}
	return true
}

// SellOK: any defined sell rule firing. Undefined values are skipped.
func (e *SignalEngine) SellOK(i int) bool {
	for _, s := range e.sell {
		if SellTriggers(s.rule, valueAt(s.values, i)) {
			return true
		}
	}
	return false
}

// At labels tick i. BUY wins when both sides hold.
func (e *SignalEngine) At(i int) Signal {
	if e.BuyOK(i) {
		return SignalBuy
	}
	if e.SellOK(i) {
		return SignalSell
	}
	return SignalHold
}

// Signals labels ticks 0..n-1.
func (e *SignalEngine) Signals(n int) []Signal {
	out := make([]Signal, n)
	for i := range out {
		out[i] = e.At(i)
	}
	return out
}

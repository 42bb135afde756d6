package engine

import (
	"anchor-backtest/go-services/services/candles"
)

// Direction says which side of a threshold a lagged change must fall on.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Rule is one threshold test on the lagged change of an anchor series.
// ChangePct is in percent units: 1.5 means 1.5%.
type Rule struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Lag       int       `json:"lag"`
	ChangePct float64   `json:"change_pct"`
	Direction Direction `json:"direction"`
}

func (r Rule) Series() candles.SeriesKey {
	return candles.SeriesKey{Symbol: r.Symbol, Timeframe: r.Timeframe}
}

func (r Rule) Key() LagKey { return LagKey{Series: r.Series(), Lag: r.Lag} }

// Threshold is ChangePct as a fraction.
func (r Rule) Threshold() float64 { return r.ChangePct / 100 }

// RuleSet holds the AND-combined buy rules and OR-combined sell rules.
type RuleSet struct {
	Buy  []Rule `json:"buy_rules"`
	Sell []Rule `json:"sell_rules"`
}

// Keys returns the distinct lag keys across both sides in first-seen order.
func (rs RuleSet) Keys() []LagKey {
	seen := make(map[LagKey]bool)
	var out []LagKey
	for _, r := range append(append([]Rule(nil), rs.Buy...), rs.Sell...) {
		k := r.Key()
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Clone deep-copies both rule slices.
func (rs RuleSet) Clone() RuleSet {
	return RuleSet{
		Buy:  append([]Rule(nil), rs.Buy...),
		Sell: append([]Rule(nil), rs.Sell...),
	}
}

type Signal int8

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

type TradeKind string

const (
	TradeEntry TradeKind = "ENTRY"
	TradeExit  TradeKind = "EXIT"
)

// Trade is one fill in the append-only trade log.
type Trade struct {
	Kind      TradeKind `json:"kind"`
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
}

// ResultRow is the summary of one (symbol, swept value) run. Param is nil
// when the run had no sweep; SharpeRatio is nil when undefined.
type ResultRow struct {
	Symbol         string   `json:"symbol"`
	Param          *float64 `json:"param,omitempty"`
	InitialCash    float64  `json:"initial_cash"`
	FinalCash      float64  `json:"final_cash"`
	TotalReturnPct float64  `json:"total_return_pct"`
	TradeCount     int      `json:"trade_count"`
	WinRatePct     float64  `json:"win_rate_pct"`
	SharpeRatio    *float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64  `json:"max_drawdown_pct"`
}

// LagMode selects how a lagged change is measured.
type LagMode string

const (
	// LagTrailing compares close[i] with close[i-1-lag].
	LagTrailing LagMode = "trailing"
	// LagShifted is the one-bar change delayed by lag bars:
	// (close[i-lag]-close[i-lag-1])/close[i-lag-1].
	LagShifted LagMode = "shifted"
)

type SweepSide string

const (
	SweepBuy  SweepSide = "buy"
	SweepSell SweepSide = "sell"
)

// Sweep overrides ChangePct of the selected rules with every grid value in
// [Min, Max] by Step. An empty Rules list selects every rule on Side.
type Sweep struct {
	Side   SweepSide `json:"side"`
	Rules  []int     `json:"rules,omitempty"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Step   float64   `json:"step"`
	Column string    `json:"column"`
}

// Strategy is the immutable configuration shared by every stage of a run.
type Strategy struct {
	Timeframe      string              `json:"timeframe"`
	Symbols        []string            `json:"symbols,omitempty"`
	InitialCash    float64             `json:"initial_cash"`
	LagMode        LagMode             `json:"lag_mode"`
	PeriodsPerYear float64             `json:"periods_per_year,omitempty"`
	Anchors        []candles.SeriesKey `json:"anchors,omitempty"`
	Rules          RuleSet             `json:"rules"`
	Sweep          *Sweep              `json:"sweep,omitempty"`
	// MinAvgQuoteVolume skips targets whose mean volume*close is at or
	// below it. Zero disables the filter.
	MinAvgQuoteVolume float64 `json:"min_avg_quote_volume,omitempty"`
}

const DefaultInitialCash = 10000.0

// SeriesKeys returns the declared anchors plus every series a rule reads,
// without duplicates and in first-seen order.
func (s Strategy) SeriesKeys() []candles.SeriesKey {
	seen := make(map[candles.SeriesKey]bool)
	var out []candles.SeriesKey
	add := func(k candles.SeriesKey) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, a := range s.Anchors {
		add(a)
	}
	for _, k := range s.Rules.Keys() {
		add(k.Series)
	}
	return out
}

// AnnualPeriods is the Sharpe annualisation factor for the target timeframe.
func (s Strategy) AnnualPeriods() float64 {
	if s.PeriodsPerYear > 0 {
		return s.PeriodsPerYear
	}
	return PeriodsPerYear(s.Timeframe)
}

func (s Strategy) lagMode() LagMode {
	if s.LagMode == "" {
		return LagTrailing
	}
	return s.LagMode
}

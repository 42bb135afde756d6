package engine

import (
	"math"
	"strconv"
	"strings"
)

// Strategy validator

type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string { return e.Field + ": " + e.Msg }

// ValidateStrategy checks the semantic constraints struct tags cannot
// express. Every failure is a ConfigurationError wrapping ValidationErrors.
func ValidateStrategy(s Strategy) error {
	var errs []ValidationError
	add := func(field, msg string) { errs = append(errs, ValidationError{Field: field, Msg: msg}) }

	if strings.TrimSpace(s.Timeframe) == "" {
		add("timeframe", "required")
	}
	if !(s.InitialCash > 0) || math.IsInf(s.InitialCash, 0) {
		add("initial_cash", "must be a positive number")
	}
	switch s.LagMode {
	case "", LagTrailing, LagShifted:
	default:
		add("lag_mode", "must be trailing or shifted")
	}
	if s.PeriodsPerYear < 0 {
		add("periods_per_year", "must not be negative")
	}
	// an empty buy list would make every tick a BUY
	if len(s.Rules.Buy) == 0 {
		add("buy_rules", "at least one rule required")
	}
	checkRules := func(side string, rules []Rule) {
		for i, r := range rules {
			field := side + "[" + strconv.Itoa(i) + "]"
			if r.Symbol == "" || r.Timeframe == "" {
				add(field, "symbol and timeframe required")
			}
			if r.Lag < 0 {
				add(field, "lag must be >= 0")
			}
			if r.Direction != DirectionUp && r.Direction != DirectionDown {
				add(field, "direction must be up or down")
			}
			if math.IsNaN(r.ChangePct) || math.IsInf(r.ChangePct, 0) {
				add(field, "change_pct must be finite")
			}
		}
	}
	checkRules("buy_rules", s.Rules.Buy)
	checkRules("sell_rules", s.Rules.Sell)
	for i, a := range s.Anchors {
		if a.Symbol == "" || a.Timeframe == "" {
			add("anchors["+strconv.Itoa(i)+"]", "symbol and timeframe required")
		}
	}

	if sw := s.Sweep; sw != nil {
		side := s.Rules.Buy
		switch sw.Side {
		case SweepBuy:
		case SweepSell:
			side = s.Rules.Sell
		default:
			add("sweep.side", "must be buy or sell")
		}
		if !(sw.Step > 0) || math.IsInf(sw.Step, 0) {
			add("sweep.step", "must be positive and finite")
		}
		if !finite(sw.Min) || !finite(sw.Max) {
			add("sweep", "min and max must be finite")
		} else if sw.Min > sw.Max {
			add("sweep", "min above max")
		}
		if len(side) == 0 {
			add("sweep", "no rules on swept side")
		}
		for _, idx := range sw.Rules {
			if idx < 0 || idx >= len(side) {
				add("sweep.rules", "index "+strconv.Itoa(idx)+" out of range")
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &ConfigurationError{Msg: strings.Join(msgs, "; "), Err: errs[0]}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

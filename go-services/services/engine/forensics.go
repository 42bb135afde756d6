package engine

// Per-tick decision dump for manual verification of one run

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type DecisionState struct {
	Timestamp int64        `json:"timestamp"`
	Open      float64      `json:"open"`
	Close     float64      `json:"close"`
	Changes   []float64    `json:"changes"`
	Signal    Signal       `json:"signal"`
	Side      PositionSide `json:"side"`
	Equity    float64      `json:"equity"`
	Events    []string     `json:"events,omitempty"`
}

type Trace struct {
	Symbol    string          `json:"symbol"`
	Param     *float64        `json:"param,omitempty"`
	Rules     RuleSet         `json:"rules"`
	Decisions []DecisionState `json:"decisions"`
	Metrics   Metrics         `json:"-"`
	FinalCash float64         `json:"final_cash"`
}

// TraceSymbol replays one symbol under the strategy's rules, or under the
// swept rules at param when param is set, and records every tick.
func TraceSymbol(run *SymbolRun, param *float64) (*Trace, error) {
	rules := run.strategy.Rules
	if param != nil {
		if run.strategy.Sweep == nil {
			return nil, configErrorf("trace value given but strategy has no sweep")
		}
		rules = run.strategy.Sweep.Apply(rules, *param)
	}

	log := &EventLog{}
	res, signals, err := run.Evaluate(rules, log)
	if err != nil {
		return nil, err
	}

	all := append(append([]Rule(nil), rules.Buy...), rules.Sell...)
	values := make([][]float64, len(all))
	for i, r := range all {
		values[i], _ = run.Cache.Get(r.Key())
	}

	t := &Trace{
		Symbol:    run.Symbol,
		Param:     param,
		Rules:     rules,
		Decisions: make([]DecisionState, len(run.Bars)),
		Metrics:   Analyze(run.strategy.InitialCash, res, run.strategy.AnnualPeriods()),
		FinalCash: res.FinalCash,
	}
	for i, bar := range run.Bars {
		d := DecisionState{
			Timestamp: bar.Timestamp,
			Open:      bar.Open,
			Close:     bar.Close,
			Changes:   make([]float64, len(all)),
			Signal:    signals[i],
			Side:      res.Sides[i],
			Equity:    res.Equity[i],
		}
		for j := range all {
			d.Changes[j] = valueAt(values[j], i)
		}
		for _, e := range log.ByIndex(i) {
			d.Events = append(d.Events, e.Type.String())
		}
		t.Decisions[i] = d
	}
	return t, nil
}

// WriteCSV writes one row per tick. Undefined changes are empty cells.
func (t *Trace) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "open", "close"}
	for i, r := range t.Rules.Buy {
		header = append(header, fmt.Sprintf("buy%d_%s_lag%d", i, r.Series(), r.Lag))
	}
	for i, r := range t.Rules.Sell {
		header = append(header, fmt.Sprintf("sell%d_%s_lag%d", i, r.Series(), r.Lag))
	}
	header = append(header, "signal", "position", "equity", "events")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, d := range t.Decisions {
		rec := []string{
			strconv.FormatInt(d.Timestamp, 10),
			strconv.FormatFloat(d.Open, 'f', -1, 64),
			strconv.FormatFloat(d.Close, 'f', -1, 64),
		}
		for _, c := range d.Changes {
			if math.IsNaN(c) {
				rec = append(rec, "")
			} else {
				rec = append(rec, strconv.FormatFloat(c, 'f', 8, 64))
			}
		}
		rec = append(rec, d.Signal.String(), d.Side.String(), strconv.FormatFloat(d.Equity, 'f', 2, 64), strings.Join(d.Events, "|"))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

package engine

import (
	"math"

	"anchor-backtest/go-services/services/candles"
)

// Simulator runs the FLAT/LONG state machine over a labelled series. Fills
// happen at the bar open; an open position is liquidated at the last close.

type SimConfig struct {
	InitialCash float64
}

type Simulator struct {
	cfg SimConfig
	log *EventLog
}

// NewSimulator builds a simulator. log may be nil.
func NewSimulator(cfg SimConfig, log *EventLog) *Simulator { return &Simulator{cfg: cfg, log: log} }

// SimResult is the outcome of one simulation.
type SimResult struct {
	Equity    []float64
	Trades    []Trade
	FinalCash float64
	// Sides holds the position side after each tick.
	Sides []PositionSide
}

// CheckPrices rejects an empty series or any open/close that is not a
// positive finite number.
func CheckPrices(symbol string, bars []candles.Candle) error {
	if len(bars) == 0 {
		return &DataError{Symbol: symbol, Index: -1, Err: ErrEmptySeries}
	}
	for i, b := range bars {
		if !validPrice(b.Open) || !validPrice(b.Close) {
			return &DataError{Symbol: symbol, Index: i, Timestamp: b.Timestamp, Err: ErrNonPositivePrice}
		}
	}
	return nil
}

func validPrice(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

// Run simulates bars against signals. Ticks past the end of signals are HOLD.
// Prices are checked before the first tick so a bad bar never leaves a
// partial result.
func (s *Simulator) Run(symbol string, bars []candles.Candle, signals []Signal) (*SimResult, error) {
	if err := CheckPrices(symbol, bars); err != nil {
		return nil, err
	}

	pos := PositionState{Cash: s.cfg.InitialCash}
	res := &SimResult{
		Equity: make([]float64, len(bars)),
		Sides:  make([]PositionSide, len(bars)),
	}
	for i, bar := range bars {
		sig := SignalHold
		if i < len(signals) {
			sig = signals[i]
		}
		switch {
		case pos.Side() == SideFlat && sig == SignalBuy:
			pos.Enter(bar.Open)
			res.Trades = append(res.Trades, Trade{Kind: TradeEntry, Timestamp: bar.Timestamp, Price: bar.Open})
			s.record(Event{Ts: bar.Timestamp, Index: i, Type: EventEntry, Symbol: symbol, Price: bar.Open})
		case pos.Side() == SideLong && sig == SignalSell:
			pos.Exit(bar.Open)
			res.Trades = append(res.Trades, Trade{Kind: TradeExit, Timestamp: bar.Timestamp, Price: bar.Open})
			s.record(Event{Ts: bar.Timestamp, Index: i, Type: EventExit, Symbol: symbol, Price: bar.Open})
		}
		res.Equity[i] = pos.Equity(bar.Open)
		res.Sides[i] = pos.Side()
	}

	if pos.Side() == SideLong {
		last := len(bars) - 1
		bar := bars[last]
		pos.Exit(bar.Close)
		res.Equity[last] = pos.Cash
		res.Sides[last] = SideFlat
		res.Trades = append(res.Trades, Trade{Kind: TradeExit, Timestamp: bar.Timestamp, Price: bar.Close})
		s.record(Event{Ts: bar.Timestamp, Index: last, Type: EventForcedExit, Symbol: symbol, Price: bar.Close})
	}
	res.FinalCash = pos.Cash
	return res, nil
}

func (s *Simulator) record(e Event) {
	if s.log != nil {
		s.log.Append(e)
	}
}

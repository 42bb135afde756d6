package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchor-backtest/go-services/services/candles"
)

// Buy anchor A rises on ticks 2 and 3 only; sell anchor S drops 10% on tick 4.
func scenarioA() (Strategy, []candles.Candle, map[candles.SeriesKey][]candles.Candle) {
	s := Strategy{
		Timeframe:   "1H",
		InitialCash: 10000,
		Rules: RuleSet{
			Buy:  []Rule{{Symbol: "A", Timeframe: "1H", Lag: 0, ChangePct: 0, Direction: DirectionUp}},
			Sell: []Rule{{Symbol: "S", Timeframe: "1H", Lag: 0, ChangePct: -5, Direction: DirectionDown}},
		},
	}
	target := barsFromOpens(100, 101, 99, 105, 110, 108)
	anchors := map[candles.SeriesKey][]candles.Candle{
		key("A"): barsFromCloses(10, 9, 10, 11, 10, 9),
		key("S"): barsFromCloses(10, 10, 10, 10, 9, 9),
	}
	return s, target, anchors
}

func TestScenarioAEntryAndExit(t *testing.T) {
	s, target, anchors := scenarioA()
	run, err := PrepareSymbol(s, "T", target, anchors)
	require.NoError(t, err)

	res, signals, err := run.Evaluate(s.Rules, nil)
	require.NoError(t, err)
	assert.Equal(t, []Signal{SignalHold, SignalHold, SignalBuy, SignalBuy, SignalSell, SignalHold}, signals)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, 99.0, res.Trades[0].Price)
	assert.Equal(t, 110.0, res.Trades[1].Price)

	rows, err := run.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "T", row.Symbol)
	assert.Nil(t, row.Param)
	assert.InDelta(t, 10000*110.0/99.0, row.FinalCash, 1e-9)
	assert.Equal(t, 1, row.TradeCount)
	assert.Equal(t, 100.0, row.WinRatePct)
	assert.InDelta(t, (110.0/99.0-1)*100, row.TotalReturnPct, 1e-9)
	assert.LessOrEqual(t, row.MaxDrawdownPct, 0.0)
}

func TestScenarioBAllHold(t *testing.T) {
	s := Strategy{
		Timeframe:   "1H",
		InitialCash: 10000,
		Rules: RuleSet{
			Buy: []Rule{{Symbol: "A", Timeframe: "1H", ChangePct: 50, Direction: DirectionUp}},
		},
	}
	target := barsFromOpens(100, 90, 80, 120, 110)
	anchors := map[candles.SeriesKey][]candles.Candle{key("A"): barsFromCloses(10, 11, 12, 11, 10)}

	rows, err := Backtest(context.Background(), s, "T", target, anchors)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 10000.0, row.FinalCash)
	assert.Equal(t, 0, row.TradeCount)
	assert.Equal(t, 0.0, row.WinRatePct)
	assert.Equal(t, 0.0, row.MaxDrawdownPct)
	assert.Nil(t, row.SharpeRatio, "constant equity has no Sharpe")
}

func TestScenarioCForcedLiquidation(t *testing.T) {
	s := Strategy{
		Timeframe:   "1H",
		InitialCash: 10000,
		Rules: RuleSet{
			Buy: []Rule{{Symbol: "A", Timeframe: "1H", ChangePct: 0, Direction: DirectionUp}},
		},
	}
	target := barsFromOpens(50, 40, 45, 60, 70)
	anchors := map[candles.SeriesKey][]candles.Candle{key("A"): barsFromCloses(10, 11, 11, 11, 11)}

	run, err := PrepareSymbol(s, "T", target, anchors)
	require.NoError(t, err)
	res, _, err := run.Evaluate(s.Rules, nil)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, 40.0, res.Trades[0].Price)
	assert.Equal(t, target[4].Close, res.Trades[1].Price)
	assert.Equal(t, res.FinalCash, res.Equity[len(res.Equity)-1])

	row, err := run.Row(s.Rules, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, row.TradeCount)
	assert.InDelta(t, 10000*71.0/40.0, row.FinalCash, 1e-9)
}

func TestAnchorGapsAreUndefined(t *testing.T) {
	target := barsFromOpens(1, 2, 3, 4)
	anchor := barsFromCloses(10, 11, 12, 13)
	anchor = append(anchor[:2], anchor[3:]...) // drop tick 2

	aligned, err := Align(target, map[candles.SeriesKey][]candles.Candle{key("A"): anchor}, []candles.SeriesKey{key("A")})
	require.NoError(t, err)
	col, ok := aligned.Column(key("A"))
	require.True(t, ok)
	assert.Equal(t, 10.0, col[0])
	assert.True(t, math.IsNaN(col[2]))
	assert.Equal(t, 13.0, col[3])

	changes := LaggedChange(col, 0)
	assert.True(t, math.IsNaN(changes[2]))
	assert.True(t, math.IsNaN(changes[3]), "gap poisons the next change too")
}

func TestAlignMissingAnchorIsConfigurationError(t *testing.T) {
	_, err := Align(barsFromOpens(1, 2), nil, []candles.SeriesKey{key("A")})
	assert.True(t, IsConfigurationError(err))
	assert.ErrorIs(t, err, candles.ErrSeriesNotFound)
}

func TestSweepReusesCache(t *testing.T) {
	s, target, anchors := scenarioA()
	s.Sweep = &Sweep{Side: SweepBuy, Min: -2, Max: 2, Step: 0.5}

	run, err := PrepareSymbol(s, "T", target, anchors)
	require.NoError(t, err)
	computed := run.Cache.Computations()

	rows, err := run.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, computed, run.Cache.Computations(), "thresholds never trigger recomputation")

	for i, row := range rows {
		require.NotNil(t, row.Param)
		assert.InDelta(t, -2+0.5*float64(i), *row.Param, 1e-12)
	}
	// threshold 0 reproduces the unswept run
	assert.InDelta(t, 10000*110.0/99.0, rows[4].FinalCash, 1e-9)
}

func TestSweepCanceledYieldsNothing(t *testing.T) {
	s, target, anchors := scenarioA()
	s.Sweep = &Sweep{Side: SweepBuy, Min: -2, Max: 2, Step: 0.5}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, err := Backtest(ctx, s, "T", target, anchors)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, rows)
}

func TestBacktestDataError(t *testing.T) {
	s, target, anchors := scenarioA()
	target[3].Open = -1
	_, err := Backtest(context.Background(), s, "T", target, anchors)
	assert.True(t, IsDataError(err))
}

func TestShiftedModeChangesSignals(t *testing.T) {
	s, target, anchors := scenarioA()
	s.Rules.Buy[0].Lag = 1
	s.LagMode = LagShifted
	run, err := PrepareSymbol(s, "T", target, anchors)
	require.NoError(t, err)
	_, signals, err := run.Evaluate(s.Rules, nil)
	require.NoError(t, err)
	// A's one-bar rises at ticks 2 and 3 surface one bar later
	assert.Equal(t, SignalBuy, signals[3])
	assert.Equal(t, SignalBuy, signals[4])
	assert.NotEqual(t, SignalBuy, signals[2])
}

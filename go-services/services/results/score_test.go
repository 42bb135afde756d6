package results

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"anchor-backtest/go-services/services/engine"
)

func TestScorePasses(t *testing.T) {
	s := Score(engine.ResultRow{TotalReturnPct: 300, SharpeRatio: ptr(5), MaxDrawdownPct: 0})
	assert.InDelta(t, 45, s.Return, 1e-9)
	assert.InDelta(t, 35, s.Sharpe, 1e-9)
	assert.InDelta(t, 20, s.Drawdown, 1e-9)
	assert.InDelta(t, 100, s.Total, 1e-9)
	assert.True(t, s.Passed)
	assert.Empty(t, s.Failed)
}

func TestScoreCapsAndFloors(t *testing.T) {
	s := Score(engine.ResultRow{TotalReturnPct: 900, SharpeRatio: ptr(-2), MaxDrawdownPct: -75})
	assert.Equal(t, ReturnCap, s.Return)
	assert.Zero(t, s.Sharpe)
	assert.Zero(t, s.Drawdown)
	assert.False(t, s.Passed)
	assert.Len(t, s.Failed, 3)
}

func TestScoreMinimumFailsDespiteTotal(t *testing.T) {
	// 200% return = 30 pts, Sharpe 5 = 35 pts, -40% drawdown = 4 pts
	s := Score(engine.ResultRow{TotalReturnPct: 200, SharpeRatio: ptr(5), MaxDrawdownPct: -40})
	assert.InDelta(t, 30, s.Return, 1e-9)
	assert.InDelta(t, 4, s.Drawdown, 1e-9)
	assert.Greater(t, s.Total, PassTotal)
	assert.False(t, s.Passed)
	assert.Len(t, s.Failed, 1)
}

func TestScoreUndefinedSharpe(t *testing.T) {
	s := Score(engine.ResultRow{TotalReturnPct: 300, MaxDrawdownPct: 0})
	assert.Zero(t, s.Sharpe)
	assert.InDelta(t, 65, s.Total, 1e-9)
	assert.False(t, s.Passed)
	assert.Len(t, s.Failed, 1)
}

func TestScoreUsesRowSharpeAsIs(t *testing.T) {
	// no risk-free deduction: 2.5 scores exactly half of the cap
	s := Score(engine.ResultRow{TotalReturnPct: 300, SharpeRatio: ptr(2.5)})
	assert.InDelta(t, SharpeCap/2, s.Sharpe, 1e-9)
}

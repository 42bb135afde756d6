package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridInclusive(t *testing.T) {
	g, err := Grid(-10, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, g, 41)
	assert.Equal(t, -10.0, g[0])
	assert.Equal(t, 10.0, g[40])
	assert.Equal(t, 0.0, g[20])
}

func TestGridNoDrift(t *testing.T) {
	g, err := Grid(0, 1, 0.1)
	require.NoError(t, err)
	require.Len(t, g, 11)
	assert.Equal(t, 0.3, g[3])
	assert.Equal(t, 1.0, g[10])
}

func TestGridStepPastMax(t *testing.T) {
	g, err := Grid(0, 1, 0.4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.4, 0.8}, g)

	g, err = Grid(3, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, g)
}

func TestGridErrors(t *testing.T) {
	_, err := Grid(0, 1, 0)
	assert.True(t, IsConfigurationError(err))
	_, err = Grid(2, 1, 0.5)
	assert.True(t, IsConfigurationError(err))
	_, err = Grid(0, 1e9, 0.001)
	assert.True(t, IsConfigurationError(err))
}

func TestGridNonFinite(t *testing.T) {
	for _, tc := range [][3]float64{
		{0, math.Inf(1), 1},
		{math.Inf(-1), 0, 1},
		{math.NaN(), 1, 1},
		{0, 1, math.Inf(1)},
	} {
		assert.NotPanics(t, func() {
			_, err := Grid(tc[0], tc[1], tc[2])
			assert.True(t, IsConfigurationError(err), "%v", tc)
		})
	}
}

func TestGridHugeSpanRejected(t *testing.T) {
	g, err := Grid(-1e300, 1e300, 1)
	assert.True(t, IsConfigurationError(err))
	assert.Nil(t, g)
}

func TestSweepApply(t *testing.T) {
	rules := RuleSet{
		Buy: []Rule{
			{Symbol: "A", Timeframe: "1H", ChangePct: 1, Direction: DirectionUp},
			{Symbol: "B", Timeframe: "1H", ChangePct: 2, Direction: DirectionUp},
		},
		Sell: []Rule{{Symbol: "C", Timeframe: "1H", ChangePct: -3, Direction: DirectionDown}},
	}

	all := Sweep{Side: SweepBuy}.Apply(rules, 7)
	assert.Equal(t, 7.0, all.Buy[0].ChangePct)
	assert.Equal(t, 7.0, all.Buy[1].ChangePct)
	assert.Equal(t, -3.0, all.Sell[0].ChangePct)

	one := Sweep{Side: SweepBuy, Rules: []int{1}}.Apply(rules, 7)
	assert.Equal(t, 1.0, one.Buy[0].ChangePct)
	assert.Equal(t, 7.0, one.Buy[1].ChangePct)

	sell := Sweep{Side: SweepSell}.Apply(rules, -9)
	assert.Equal(t, -9.0, sell.Sell[0].ChangePct)

	assert.Equal(t, 1.0, rules.Buy[0].ChangePct, "base rules untouched")
	assert.Equal(t, rules.Keys(), all.Keys(), "lag keys stable across grid values")
}

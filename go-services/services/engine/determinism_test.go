package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchor-backtest/go-services/services/candles"
)

func TestBacktestRepeatable(t *testing.T) {
	s, target, anchors := scenarioA()
	s.Sweep = &Sweep{Side: SweepSell, Min: -8, Max: 2, Step: 0.25}

	targetCopy := append([]candles.Candle(nil), target...)
	anchorCopy := make(map[candles.SeriesKey][]candles.Candle, len(anchors))
	for k, v := range anchors {
		anchorCopy[k] = append([]candles.Candle(nil), v...)
	}

	first, err := Backtest(context.Background(), s, "T", target, anchors)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := Backtest(context.Background(), s, "T", target, anchors)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Equal(t, targetCopy, target, "target bars untouched")
	assert.Equal(t, anchorCopy, anchors, "anchor bars untouched")
}

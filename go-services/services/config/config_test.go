package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchor-backtest/go-services/services/engine"
)

const sampleYAML = `
target:
  symbols: [SOLUSDT, ETHUSDT]
  timeframe: 1H
anchors:
  - symbol: BTCUSDT
    timeframe: 1D
buy_rules:
  - symbol: BTCUSDT
    timeframe: 1H
    lag: 2
    change_pct: 0.5
    direction: up
sell_rules:
  - symbol: BTCUSDT
    timeframe: 1H
    lag: 0
    change_pct: -1
    direction: down
sweep:
  side: sell
  min: -3
  max: 0
  step: 0.5
  column: sell_cp
data:
  dir: /tmp/candles
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"SOLUSDT", "ETHUSDT"}, cfg.Target.Symbols)
	assert.Equal(t, engine.DefaultInitialCash, cfg.InitialCash)
	assert.Equal(t, "trailing", cfg.LagMode)
	assert.Equal(t, "csv", cfg.Data.Driver)
	assert.Equal(t, "/tmp/candles", cfg.Data.Dir)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "sell_cp", cfg.SweepColumn())

	s := cfg.Strategy()
	assert.NoError(t, engine.ValidateStrategy(s))
	require.Len(t, s.Rules.Buy, 1)
	assert.Equal(t, engine.DirectionUp, s.Rules.Buy[0].Direction)
	assert.Equal(t, 2, s.Rules.Buy[0].Lag)
	assert.Equal(t, "BTCUSDT_1D", s.Anchors[0].String())
	require.NotNil(t, s.Sweep)
	assert.Equal(t, engine.SweepSell, s.Sweep.Side)
	assert.Equal(t, 0.5, s.Sweep.Step)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ANCHOR_INITIAL_CASH", "2500")
	t.Setenv("ANCHOR_LOGGING_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 2500.0, cfg.InitialCash)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	body := `
target:
  timeframe: 1H
buy_rules:
  - symbol: BTCUSDT
    timeframe: 1H
    direction: sideways
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Direction")
}

func TestLoadRequiresBuyRules(t *testing.T) {
	_, err := Load(writeConfig(t, "target:\n  timeframe: 1H\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BuyRules")
}

func TestLoadRejectsInfiniteSweepBound(t *testing.T) {
	body := `
target:
  timeframe: 1H
buy_rules:
  - symbol: BTCUSDT
    timeframe: 1H
    direction: up
sweep:
  min: 0
  max: .inf
  step: 1
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.True(t, engine.IsConfigurationError(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestStrategyDefaultsSweepSide(t *testing.T) {
	c := StrategyConfig{
		Target:   TargetConfig{Timeframe: "4H"},
		BuyRules: []RuleConfig{{Symbol: "A", Timeframe: "4H", Direction: "up"}},
		Sweep:    &SweepConfig{Min: 0, Max: 1, Step: 1},
	}
	s := c.Strategy()
	assert.Equal(t, engine.SweepBuy, s.Sweep.Side)
	assert.Equal(t, "cp", s.Sweep.Column)
	assert.Equal(t, "cp", c.SweepColumn())

	c.Sweep = nil
	assert.Nil(t, c.Strategy().Sweep)
	assert.Empty(t, c.SweepColumn())
}

func TestLoadServerSkipsStrategy(t *testing.T) {
	cfg, err := LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, 9091, cfg.Server.GRPCPort)
	assert.Equal(t, "Data", cfg.Data.Dir)

	t.Setenv("ANCHOR_DATA_DRIVER", "sqlite")
	_, err = LoadServer("")
	assert.Error(t, err)
}

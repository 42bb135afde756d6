package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchor-backtest/go-services/services/engine"
)

func TestTableFormat(t *testing.T) {
	for _, tc := range []struct {
		path, flag, want string
	}{
		{"results.csv", "", "csv"},
		{"results.arrow", "", "arrow"},
		{"out/RESULTS.IPC", "", "arrow"},
		{"results.bin", "arrow", "arrow"},
		{"results.arrow", "csv", "csv"},
	} {
		got, err := tableFormat(tc.path, tc.flag)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s -format=%q", tc.path, tc.flag)
	}
	_, err := tableFormat("results.csv", "parquet")
	assert.Error(t, err)
}

func TestArrowTableFiltersLikeCSV(t *testing.T) {
	sharpe := 1.5
	cp := 0.5
	rows := []engine.ResultRow{
		{Symbol: "SOL", Param: &cp, InitialCash: 10000, FinalCash: 15000, TotalReturnPct: 50, TradeCount: 4, WinRatePct: 75, SharpeRatio: &sharpe, MaxDrawdownPct: -8},
		{Symbol: "ETH", Param: &cp, InitialCash: 10000, FinalCash: 9000, TotalReturnPct: -10, TradeCount: 2},
	}
	dir := t.TempDir()

	for _, format := range []string{"arrow", "csv"} {
		in := filepath.Join(dir, "in."+format)
		require.NoError(t, writeTable(in, format, rows, "Entry_cp"))

		got, column, err := readTable(in, format)
		require.NoError(t, err)
		assert.Equal(t, "Entry_cp", column, format)
		require.Len(t, got, 2, format)
		assert.Equal(t, "SOL", got[0].Symbol)
		require.NotNil(t, got[0].SharpeRatio)
		assert.InDelta(t, 1.5, *got[0].SharpeRatio, 1e-9)
		assert.Nil(t, got[1].SharpeRatio)
	}
}

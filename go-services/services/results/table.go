// Package results reads, writes and screens backtest result tables.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"anchor-backtest/go-services/services/engine"
)

const (
	colSymbol   = "Symbol"
	colInitial  = "Initial cash"
	colFinal    = "Final cash"
	colReturn   = "Total return"
	colTrades   = "Trades"
	colWinRate  = "Win rate"
	colSharpe   = "Sharpe ratio"
	colDrawdown = "Max drawdown"
)

var ErrMissingColumn = errors.New("missing column")

// Header returns the table header. The swept column follows Symbol and is
// left out when column is empty.
func Header(column string) []string {
	h := []string{colSymbol}
	if column != "" {
		h = append(h, column)
	}
	return append(h, colInitial, colFinal, colReturn, colTrades, colWinRate, colSharpe, colDrawdown)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes rows in order. Undefined Sharpe ratios are written empty.
func WriteCSV(w io.Writer, rows []engine.ResultRow, column string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(column)); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.Symbol}
		if column != "" {
			param := ""
			if r.Param != nil {
				param = formatFloat(*r.Param)
			}
			rec = append(rec, param)
		}
		sharpe := ""
		if r.SharpeRatio != nil {
			sharpe = formatFloat(*r.SharpeRatio)
		}
		rec = append(rec,
			formatFloat(r.InitialCash),
			formatFloat(r.FinalCash),
			formatFloat(r.TotalReturnPct),
			strconv.Itoa(r.TradeCount),
			formatFloat(r.WinRatePct),
			sharpe,
			formatFloat(r.MaxDrawdownPct),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV and returns its rows with the
// name of the swept column ("" when there is none).
func ReadCSV(r io.Reader) ([]engine.ResultRow, string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, "", fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, name := range []string{colSymbol, colInitial, colFinal, colReturn, colTrades, colWinRate, colSharpe, colDrawdown} {
		if _, ok := idx[name]; !ok {
			return nil, "", fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}
	column := ""
	if len(header) > 1 {
		if h := strings.TrimSpace(header[1]); h != colInitial {
			column = h
		}
	}

	var rows []engine.ResultRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseRow(rec, idx, column)
		if err != nil {
			return nil, "", fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, column, nil
}

func parseRow(rec []string, idx map[string]int, column string) (engine.ResultRow, error) {
	var (
		row      engine.ResultRow
		firstErr error
	)
	num := func(name string) float64 {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[name]]), 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", name, err)
		}
		return v
	}
	optional := func(name string) *float64 {
		if strings.TrimSpace(rec[idx[name]]) == "" {
			return nil
		}
		v := num(name)
		if math.IsNaN(v) {
			return nil
		}
		return &v
	}

	row.Symbol = rec[idx[colSymbol]]
	if column != "" {
		row.Param = optional(column)
	}
	row.InitialCash = num(colInitial)
	row.FinalCash = num(colFinal)
	row.TotalReturnPct = num(colReturn)
	row.TradeCount = int(num(colTrades))
	row.WinRatePct = num(colWinRate)
	row.SharpeRatio = optional(colSharpe)
	row.MaxDrawdownPct = num(colDrawdown)
	return row, firstErr
}

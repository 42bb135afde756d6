// Filter Results screens a backtest result table: threshold filtering,
// sign split, the positive-value funnel and composite scores.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"anchor-backtest/go-services/services/arrowpipeline"
	"anchor-backtest/go-services/services/engine"
	"anchor-backtest/go-services/services/results"
)

func main() {
	var (
		input    = flag.String("in", "results.csv", "Result table (csv or arrow)")
		format   = flag.String("format", "", "Input format: 'csv' or 'arrow' (default by extension, .arrow/.ipc = arrow)")
		mode     = flag.String("mode", "funnel", "One of: filter, split, funnel, score")
		output   = flag.String("out", "", "Output table for -mode filter")
		cash     = flag.Float64("cash", 12000, "Final cash threshold")
		sharpe   = flag.Float64("sharpe", 2, "Sharpe ratio threshold (funnel)")
		drawdown = flag.Float64("drawdown", -10, "Max drawdown threshold in percent (funnel)")
		passOnly = flag.Bool("pass-only", false, "With -mode score, print only passing rows")
	)
	flag.Parse()

	tf, err := tableFormat(*input, *format)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	rows, column, err := readTable(*input, tf)
	if err != nil {
		log.Fatalf("Error: %s: %v", *input, err)
	}

	switch *mode {
	case "filter":
		if *output == "" {
			log.Fatal("Error: -out is required with -mode filter")
		}
		kept := results.FilterAbove(rows, *cash)
		if err := writeTable(*output, tf, kept, column); err != nil {
			log.Fatalf("Error: %v", err)
		}
		fmt.Printf("Filtered %d rows with Final cash > %g into '%s'.\n", len(kept), *cash, *output)

	case "split":
		neg, pos := results.SplitBySign(rows, *cash)
		printShare("Negative "+column, neg)
		printShare("Positive "+column, pos)

	case "funnel":
		res := results.Funnel(rows, *cash, *sharpe, *drawdown)
		for _, st := range res.Stages {
			fmt.Printf("%s: %d out of %d, or %.2f%%\n", st.Name, st.Count, st.Total, st.Pct)
		}
		if len(res.Symbols) > 0 {
			fmt.Println("\nUnique symbols in the final group:")
			for _, s := range res.Symbols {
				fmt.Println(s)
			}
		}

	case "score":
		enc := json.NewEncoder(os.Stdout)
		for _, r := range rows {
			sc := results.Score(r)
			if *passOnly && !sc.Passed {
				continue
			}
			if err := enc.Encode(struct {
				Row   engine.ResultRow    `json:"row"`
				Score results.ScoreResult `json:"score"`
			}{r, sc}); err != nil {
				log.Fatalf("Error: %v", err)
			}
		}

	default:
		log.Fatalf("Error: unknown mode %q", *mode)
	}
}

func printShare(name string, s results.Share) {
	if s.Total == 0 {
		fmt.Printf("%s: no rows in this category\n", name)
		return
	}
	fmt.Printf("%s: %d out of %d, or %.2f%%\n", name, s.Count, s.Total, s.Pct)
}

// tableFormat resolves the -format flag, falling back to the file extension.
func tableFormat(path, format string) (string, error) {
	switch format {
	case "csv", "arrow":
		return format, nil
	case "":
		switch strings.ToLower(filepath.Ext(path)) {
		case ".arrow", ".ipc":
			return "arrow", nil
		}
		return "csv", nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}

func readTable(path, format string) ([]engine.ResultRow, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	if format == "arrow" {
		return arrowpipeline.NewPipeline(arrowpipeline.Config{}, nil).ReadRows(f)
	}
	return results.ReadCSV(f)
}

// writeTable writes rows in the input's format.
func writeTable(path, format string, rows []engine.ResultRow, column string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if format == "arrow" {
		err = arrowpipeline.NewPipeline(arrowpipeline.Config{}, nil).WriteRows(f, rows, column)
	} else {
		err = results.WriteCSV(f, rows, column)
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

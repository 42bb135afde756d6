package main

import (
	"flag"
	"fmt"
	"os"

	"anchor-backtest/go-services/services/candles"
)

func main() {
	in := flag.String("in", "", "Input candle CSV (timestamp,open,high,low,close,volume)")
	out := flag.String("out", "", "Output CSV path")
	dst := flag.String("dst", "4H", "Target timeframe (e.g., 15m, 4H, 1D)")
	flag.Parse()

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "-in and -out are required")
		os.Exit(2)
	}
	if err := resample(*in, *out, *dst); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resample(in, out, dst string) error {
	step, err := candles.ParseTimeframe(dst)
	if err != nil {
		return err
	}

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	bars, err := candles.ReadCSV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("%s: no input bars parsed", in)
	}

	// buckets are aligned to the epoch in UTC
	agg, err := candles.Resample(bars, step.Milliseconds())
	if err != nil {
		return err
	}

	of, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := candles.WriteCSV(of, agg); err != nil {
		of.Close()
		return err
	}
	if err := of.Close(); err != nil {
		return err
	}
	fmt.Printf("Resampled %d bars into %d %s bars: %s\n", len(bars), len(agg), dst, out)
	return nil
}

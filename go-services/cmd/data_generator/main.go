// Data Generator writes synthetic {SYMBOL}_{TIMEFRAME}.csv candle files for
// trying strategies without market data.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"anchor-backtest/go-services/services/candles"
)

func main() {
	var (
		dir       = flag.String("dir", "Data", "Output directory")
		symbols   = flag.String("symbols", "BTCUSDT,ETHUSDT,SOLUSDT", "Comma-separated symbols")
		timeframe = flag.String("timeframe", "1H", "Timeframe label, e.g. 1H, 4H, 1D")
		bars      = flag.Int("bars", 1000, "Bars per symbol")
		seed      = flag.Int64("seed", 42, "Random seed")
		start     = flag.String("start", "2024-01-01", "First bar date (UTC)")
	)
	flag.Parse()

	step, err := candles.ParseTimeframe(*timeframe)
	if err != nil {
		log.Fatalf("Invalid timeframe: %v", err)
	}
	startTime, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	for _, sym := range strings.Split(*symbols, ",") {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		series := generate(rng, *bars, startTime.UnixMilli(), step.Milliseconds(), 100+rng.Float64()*50000)
		path := filepath.Join(*dir, candles.FileName(sym, *timeframe))
		if err := writeFile(path, series); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("Generated %d bars to %s\n", len(series), path)
	}
}

// generate runs a random walk with alternating trend regimes. Prices are
// rounded to 8 decimals so files are stable across platforms.
func generate(rng *rand.Rand, n int, startMs, stepMs int64, price float64) []candles.Candle {
	round := func(v float64) float64 {
		return decimal.NewFromFloat(v).Round(8).InexactFloat64()
	}
	out := make([]candles.Candle, 0, n)
	for i := 0; i < n; i++ {
		trend := 0.0
		switch (i / 200) % 4 {
		case 1:
			trend = 0.001
		case 3:
			trend = -0.001
		}
		open := price
		price *= 1 + (rng.Float64()-0.5)*0.02 + trend
		if price < 0.01 {
			price = 0.01
		}
		high := max(open, price) * (1 + rng.Float64()*0.005)
		low := min(open, price) * (1 - rng.Float64()*0.005)
		out = append(out, candles.Candle{
			Timestamp: startMs + int64(i)*stepMs,
			Open:      round(open),
			High:      round(high),
			Low:       round(low),
			Close:     round(price),
			Volume:    round(100 + rng.Float64()*1000),
		})
	}
	return out
}

func writeFile(path string, bars []candles.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := candles.WriteCSV(f, bars); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package candles

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVStore reads series from {Dir}/{SYMBOL}_{TIMEFRAME}.csv files.
type CSVStore struct {
	Dir string
}

func NewCSVStore(dir string) *CSVStore { return &CSVStore{Dir: dir} }

// FileName is the on-disk name of a series.
func FileName(symbol, timeframe string) string {
	return fmt.Sprintf("%s_%s.csv", symbol, timeframe)
}

func (s *CSVStore) Load(ctx context.Context, symbol, timeframe string) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, FileName(symbol, timeframe))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrSeriesNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

func (s *CSVStore) Symbols(ctx context.Context, timeframe string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	suffix := "_" + timeframe + ".csv"
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		if sym := strings.TrimSuffix(name, suffix); sym != "" {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

// column positions resolved from the header row
type layout struct {
	ts, open, high, low, close, volume int
}

var defaultLayout = layout{ts: 0, open: 1, high: 2, low: 3, close: 4, volume: 5}

func headerLayout(rec []string) (layout, bool) {
	l := layout{ts: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, name := range rec {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timestamp", "timestamp_ms", "open time", "open_time", "open_time_ms", "time":
			l.ts = i
		case "open":
			l.open = i
		case "high":
			l.high = i
		case "low":
			l.low = i
		case "close":
			l.close = i
		case "volume":
			l.volume = i
		}
	}
	if l.ts < 0 || l.open < 0 || l.close < 0 {
		return layout{}, false
	}
	return l, true
}

// ReadCSV parses timestamp(ms),open,high,low,close,volume rows. A header row
// is optional and may name the columns in any order. Unparsable rows are
// skipped, the result is sorted ascending and duplicate timestamps keep the
// last row seen.
func ReadCSV(r io.Reader) ([]Candle, error) {
	// BOMOverride switches to UTF-16 when the file carries a UTF-16 BOM and
	// strips a UTF-8 BOM otherwise.
	tr := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(bufio.NewReader(tr))
	cr.ReuseRecord = false
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	lay := defaultLayout
	bars := make([]Candle, 0, 1_000)
	lineIndex := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			lineIndex++
			continue
		}
		if lineIndex == 0 {
			lineIndex++
			if l, ok := headerLayout(rec); ok {
				lay = l
				continue
			}
		} else {
			lineIndex++
		}
		if b, ok := parseRow(rec, lay); ok {
			bars = append(bars, b)
		}
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Timestamp == b.Timestamp {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func parseRow(rec []string, l layout) (Candle, bool) {
	field := func(i int) (string, bool) {
		if i < 0 || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(strings.Trim(rec[i], `"`)), true
	}
	num := func(i int) (float64, bool) {
		s, ok := field(i)
		if !ok {
			return 0, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	}

	tsStr, ok := field(l.ts)
	if !ok {
		return Candle{}, false
	}
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		// exports written through pandas may carry "1.6e12" or "1600000000000.0"
		d, derr := decimal.NewFromString(tsStr)
		if derr != nil {
			return Candle{}, false
		}
		ts = d.IntPart()
	}

	var c Candle
	c.Timestamp = ts
	if c.Open, ok = num(l.open); !ok {
		return Candle{}, false
	}
	if c.Close, ok = num(l.close); !ok {
		return Candle{}, false
	}
	// high/low fall back to the body when a file only carries open/close
	if c.High, ok = num(l.high); !ok {
		c.High = max(c.Open, c.Close)
	}
	if c.Low, ok = num(l.low); !ok {
		c.Low = min(c.Open, c.Close)
	}
	if c.Volume, ok = num(l.volume); !ok {
		c.Volume = 0
	}
	return c, true
}

// WriteCSV writes bars with a lowercase header, the layout ReadCSV expects.
func WriteCSV(w io.Writer, bars []Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range bars {
		rec := []string{
			strconv.FormatInt(b.Timestamp, 10),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

package candles

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps series in memory. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[SeriesKey][]Candle
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{series: make(map[SeriesKey][]Candle)}
}

// Put replaces a series. The slice is copied.
func (s *MemoryStore) Put(symbol, timeframe string, bars []Candle) {
	cp := make([]Candle, len(bars))
	copy(cp, bars)
	s.mu.Lock()
	s.series[SeriesKey{Symbol: symbol, Timeframe: timeframe}] = cp
	s.mu.Unlock()
}

func (s *MemoryStore) Load(ctx context.Context, symbol, timeframe string) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars, ok := s.series[SeriesKey{Symbol: symbol, Timeframe: timeframe}]
	if !ok {
		return nil, fmt.Errorf("%s_%s: %w", symbol, timeframe, ErrSeriesNotFound)
	}
	cp := make([]Candle, len(bars))
	copy(cp, bars)
	return cp, nil
}

func (s *MemoryStore) Symbols(_ context.Context, timeframe string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.series {
		if k.Timeframe == timeframe {
			out = append(out, k.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}

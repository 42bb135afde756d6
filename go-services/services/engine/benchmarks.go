package engine

// Throughput monitoring

import (
	"sync"
	"time"
)

type BenchmarkResult struct {
	Name       string
	Duration   time.Duration
	Bars       int
	BarsPerSec float64
}

type SLOConfig struct {
	MaxDuration   time.Duration
	MinBarsPerSec float64
}

// PerformanceMonitor collects per-symbol throughput. Safe for concurrent use.
type PerformanceMonitor struct {
	config  SLOConfig
	mu      sync.Mutex
	results []BenchmarkResult
}

func NewPerformanceMonitor(config SLOConfig) *PerformanceMonitor {
	return &PerformanceMonitor{
		config:  config,
		results: make([]BenchmarkResult, 0),
	}
}

// RecordBenchmark stores one measurement. bars counts simulated ticks, so a
// sweep of g points over n bars records n*g.
func (pm *PerformanceMonitor) RecordBenchmark(name string, duration time.Duration, bars int) {
	var barsPerSec float64
	if s := duration.Seconds(); s > 0 {
		barsPerSec = float64(bars) / s
	}

	pm.mu.Lock()
	pm.results = append(pm.results, BenchmarkResult{
		Name:       name,
		Duration:   duration,
		Bars:       bars,
		BarsPerSec: barsPerSec,
	})
	pm.mu.Unlock()
}

func (pm *PerformanceMonitor) Results() []BenchmarkResult {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return append([]BenchmarkResult(nil), pm.results...)
}

// CheckSLOs lists the measurements that break a configured bound. Zero
// bounds are not checked.
func (pm *PerformanceMonitor) CheckSLOs() []string {
	var violations []string
	for _, result := range pm.Results() {
		if pm.config.MaxDuration > 0 && result.Duration > pm.config.MaxDuration {
			violations = append(violations, result.Name+" exceeded max duration")
		}
		if pm.config.MinBarsPerSec > 0 && result.BarsPerSec < pm.config.MinBarsPerSec {
			violations = append(violations, result.Name+" below minimum bars/sec")
		}
	}
	return violations
}

package api

import (
	"sync"

	"anchor-backtest/go-services/services/engine"
)

// JobStore keeps finished reports by job id.
type JobStore interface {
	Put(report *engine.Report)
	Get(jobID string) (*engine.Report, bool)
}

// MemoryJobStore holds the most recent reports, evicting the oldest past
// its capacity.
type MemoryJobStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	reports  map[string]*engine.Report
}

func NewMemoryJobStore(capacity int) *MemoryJobStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryJobStore{capacity: capacity, reports: make(map[string]*engine.Report)}
}

func (s *MemoryJobStore) Put(report *engine.Report) {
	id := report.Manifest.JobID
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		s.order = append(s.order, id)
	}
	s.reports[id] = report
	for len(s.order) > s.capacity {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *MemoryJobStore) Get(jobID string) (*engine.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[jobID]
	return r, ok
}

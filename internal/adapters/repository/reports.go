package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/skinmate/internal/domain/model"
)

// MemoryReportStore keeps the most recent reports up to a fixed capacity,
// evicting the oldest first.
type MemoryReportStore struct {
	mu       sync.RWMutex
	reports  map[string]model.Report
	order    []string
	capacity int
}

// NewMemoryReportStore creates a report store. capacity <= 0 means unbounded.
func NewMemoryReportStore(capacity int) *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[string]model.Report), capacity: capacity}
}

func (s *MemoryReportStore) Save(_ context.Context, r model.Report) error {
	if r.JobID == "" {
		return fmt.Errorf("%w: job id is required", ErrInvalidReport)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.JobID]; !exists {
		s.order = append(s.order, r.JobID)
	}
	s.reports[r.JobID] = r
	for s.capacity > 0 && len(s.order) > s.capacity {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryReportStore) Get(_ context.Context, jobID string) (model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[jobID]
	if !ok {
		return model.Report{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryReportStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

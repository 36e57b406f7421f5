package progress

import (
	"context"
	"sync"
	"time"

	"github.com/okian/skinmate/internal/domain/model"
)

// UpdateFunc computes the next record from the current one. exists is false
// when no record is stored for the job. Returning an error aborts the update.
type UpdateFunc func(cur model.ProgressRecord, exists bool) (model.ProgressRecord, error)

// Store holds the latest progress record per job.
//
// Update must be atomic per job id: no reader observes a partially written
// record and no concurrent Update for the same id interleaves with fn.
type Store interface {
	Get(ctx context.Context, jobID string) (model.ProgressRecord, bool, error)
	Update(ctx context.Context, jobID string, fn UpdateFunc) (model.ProgressRecord, error)
	Delete(ctx context.Context, jobID string) error
	// Sweep removes records last updated before cutoff and reports how many.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Len(ctx context.Context) (int, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.ProgressRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.ProgressRecord)}
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (model.ProgressRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[jobID]
	return rec, ok, nil
}

func (s *MemoryStore) Update(_ context.Context, jobID string, fn UpdateFunc) (model.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[jobID]
	next, err := fn(cur, ok)
	if err != nil {
		return model.ProgressRecord{}, err
	}
	s.records[jobID] = next
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, jobID)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.records {
		if rec.UpdatedAt.Before(cutoff) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

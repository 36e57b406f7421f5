package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/pkg/metrics"
)

// MemoryMentorStore keeps candidates grouped by concern, each group sorted
// by skin score descending.
type MemoryMentorStore struct {
	mu        sync.RWMutex
	byConcern map[string][]model.MentorCandidate
	count     int
}

// NewMemoryMentorStore creates a store holding candidates.
func NewMemoryMentorStore(candidates ...model.MentorCandidate) (*MemoryMentorStore, error) {
	s := &MemoryMentorStore{byConcern: make(map[string][]model.MentorCandidate)}
	for _, c := range candidates {
		if err := s.Add(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts or replaces a candidate by id.
func (s *MemoryMentorStore) Add(c model.MentorCandidate) error {
	if c.ID == "" || c.PrimaryConcern == "" {
		return fmt.Errorf("%w: id and primary concern are required", ErrInvalidCandidate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(c.ID)
	group := append(s.byConcern[c.PrimaryConcern], c)
	sort.SliceStable(group, func(i, j int) bool { return group[i].SkinScore > group[j].SkinScore })
	s.byConcern[c.PrimaryConcern] = group
	s.count++
	return nil
}

func (s *MemoryMentorStore) removeLocked(id string) {
	for concern, group := range s.byConcern {
		for i := range group {
			if group[i].ID == id {
				s.byConcern[concern] = append(group[:i:i], group[i+1:]...)
				s.count--
				return
			}
		}
	}
}

// TopCandidate walks the concern group from the highest score down and stops
// at the first active record, or as soon as scores drop to minScore.
func (s *MemoryMentorStore) TopCandidate(_ context.Context, concern string, minScore float64) (model.MentorCandidate, bool, error) {
	start := time.Now()
	defer func() { metrics.RecordMentorQueryLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byConcern[concern] {
		if c.SkinScore <= minScore {
			break
		}
		if c.IsActive {
			return c, true, nil
		}
	}
	return model.MentorCandidate{}, false, nil
}

func (s *MemoryMentorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, nil
}

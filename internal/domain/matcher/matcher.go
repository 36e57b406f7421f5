// Package matcher picks the single best mentor for a user's concern and score.
package matcher

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/types"
	"github.com/okian/skinmate/pkg/logger"
	"github.com/okian/skinmate/pkg/metrics"
)

// Presentation-only ranges, inclusive.
const (
	confidenceMin   = 93
	confidenceMax   = 99
	satisfactionMin = 85
	satisfactionMax = 94
)

// Repository yields the top qualifying candidate for a concern.
type Repository interface {
	TopCandidate(ctx context.Context, concern string, minScore float64) (model.MentorCandidate, bool, error)
}

// MatchRequest carries the user's concern and score. MyScore is a pointer so
// a missing score is distinguishable from zero.
type MatchRequest struct {
	Concern string
	MyScore *float64
}

// Matcher selects mentors. It is safe for concurrent use.
type Matcher struct {
	repo Repository
	now  func() time.Time
	log  logger.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// New creates a matcher over repo.
func New(repo Repository, opts ...Option) *Matcher {
	m := &Matcher{
		repo: repo,
		now:  time.Now,
		log:  logger.Nop(),
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindMatch returns the active candidate with the highest score above the
// user's. An inactive subject behind the top candidate yields no match; the
// next candidate is not considered.
func (m *Matcher) FindMatch(ctx context.Context, req MatchRequest) (types.MatchResult, error) {
	concern := strings.TrimSpace(req.Concern)
	if concern == "" || req.MyScore == nil {
		metrics.RecordMentorMatch("invalid")
		return types.MatchResult{}, failure.ErrMissingInput
	}
	if math.IsNaN(*req.MyScore) || math.IsInf(*req.MyScore, 0) {
		metrics.RecordMentorMatch("invalid")
		return types.MatchResult{}, failure.ErrNonFiniteScore
	}

	c, found, err := m.repo.TopCandidate(ctx, concern, *req.MyScore)
	if err != nil {
		metrics.RecordMentorMatch("error")
		ce := failure.Classify(err)
		if ce.Kind == failure.KindUnknown {
			ce = failure.Wrap(failure.KindServer, err)
		}
		m.log.Error(ctx, "mentor lookup failed", logger.String("concern", concern), logger.Error(err))
		return types.MatchResult{}, ce
	}
	if !found || !c.SubjectActive {
		metrics.RecordMentorMatch("none")
		return types.MatchResult{Found: false}, nil
	}

	metrics.RecordMentorMatch("found")
	return types.MatchResult{Found: true, Mentor: m.present(c)}, nil
}

func (m *Matcher) present(c model.MentorCandidate) *types.MentorMatch {
	age := c.SubjectAge
	if c.SubjectBirthYear != nil {
		a := m.now().Year() - *c.SubjectBirthYear
		age = &a
	}

	m.mu.Lock()
	confidence := confidenceMin + m.rng.IntN(confidenceMax-confidenceMin+1)
	satisfaction := satisfactionMin + m.rng.IntN(satisfactionMax-satisfactionMin+1)
	m.mu.Unlock()

	return &types.MentorMatch{
		ID:                   c.ID,
		UserID:               c.UserID,
		Age:                  age,
		Gender:               c.SubjectGender,
		MatchConfidence:      confidence,
		Satisfaction:         satisfaction,
		SkinScore:            c.SkinScore,
		PrimaryConcern:       c.PrimaryConcern,
		ProcedureName:        c.ProcedureName,
		Comment:              c.Comment,
		BeforeImageURL:       c.BeforeImageURL,
		AfterImageURL:        c.AfterImageURL,
		IsVerified:           c.IsVerified,
		VisitCount:           c.VisitCount,
		VerifiedFacilityName: c.VerifiedFacilityName,
	}
}

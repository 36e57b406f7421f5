// Package scoring defines the contract of the opaque skin scoring service and
// an in-process simulation of it.
package scoring

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/okian/skinmate/pkg/metrics"
)

// Default scoring configuration constants.
const (
	defaultMinLatency = 80 * time.Millisecond
	defaultMaxLatency = 150 * time.Millisecond
	defaultRandomSeed = 42
	minConcernScore   = 30
	concernScoreSpan  = 66
)

// Concerns scored for every image, in report order.
var Concerns = []string{"acne", "pigmentation", "redness", "pores", "wrinkles", "dryness"}

// Raw failures of the simulated service. They are deliberately untagged so
// callers exercise the classifier exactly as with a remote service.
var (
	ErrInference  = errors.New("model pipeline failure: inference did not converge")
	ErrEmptyImage = errors.New("invalid image: empty payload")
)

// Option applies a configuration option to the SimulatedScorer.
type Option func(*SimulatedScorer)

// WithLatencyRange sets the simulated latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *SimulatedScorer) {
		if minLatency >= 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithFailureRate makes a fraction of calls fail with ErrInference.
func WithFailureRate(rate float64) Option {
	return func(s *SimulatedScorer) {
		if rate >= 0 && rate <= 1 {
			s.failureRate = rate
		}
	}
}

// WithSeed seeds latency and failure sampling.
func WithSeed(seed int64) Option {
	return func(s *SimulatedScorer) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // simulation only
	}
}

// Analysis is the scoring service's answer for one image.
type Analysis struct {
	// Scores maps each concern to 0-100, higher is healthier.
	Scores      map[string]float64
	Confidence  float64
	Uncertainty float64
}

// SkinScore is the mean of all concern scores.
func (a Analysis) SkinScore() float64 {
	if len(a.Scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range a.Scores {
		sum += v
	}
	return sum / float64(len(a.Scores))
}

// PrimaryConcern is the concern with the lowest score. Ties resolve by name.
func (a Analysis) PrimaryConcern() string {
	names := make([]string, 0, len(a.Scores))
	for k := range a.Scores {
		names = append(names, k)
	}
	sort.Strings(names)
	worst := ""
	for _, n := range names {
		if worst == "" || a.Scores[n] < a.Scores[worst] {
			worst = n
		}
	}
	return worst
}

// Scorer computes a skin analysis for an encoded image.
type Scorer interface {
	// Score honors ctx for cancellation.
	Score(ctx context.Context, image []byte) (Analysis, error)
}

// SimulatedScorer derives scores deterministically from the image bytes and
// simulates the latency and flakiness of a remote model.
type SimulatedScorer struct {
	minLatency  time.Duration
	maxLatency  time.Duration
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedScorer creates a scorer with configuration options.
func NewSimulatedScorer(opts ...Option) *SimulatedScorer {
	s := &SimulatedScorer{
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic seed for reproducible testing
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the analysis for image.
func (s *SimulatedScorer) Score(ctx context.Context, image []byte) (Analysis, error) {
	if len(image) == 0 {
		return Analysis{}, ErrEmptyImage
	}

	s.mu.Lock()
	latency := s.minLatency
	if span := s.maxLatency - s.minLatency; span > 0 {
		latency += time.Duration(s.rng.Int63n(int64(span)))
	}
	fail := s.failureRate > 0 && s.rng.Float64() < s.failureRate
	s.mu.Unlock()

	start := time.Now()
	t := time.NewTimer(latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return Analysis{}, fmt.Errorf("scoring cancelled: %w", ctx.Err())
	case <-t.C:
	}
	metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))

	if fail {
		return Analysis{}, ErrInference
	}

	sum := sha256.Sum256(image)
	scores := make(map[string]float64, len(Concerns))
	for i, c := range Concerns {
		scores[c] = float64(minConcernScore + int(sum[i])%concernScoreSpan)
	}
	confidence := 0.7 + float64(sum[len(Concerns)])/255*0.25
	return Analysis{
		Scores:      scores,
		Confidence:  confidence,
		Uncertainty: 1 - confidence,
	}, nil
}

package matcher

import (
	"math/rand/v2"
	"time"

	"github.com/okian/skinmate/pkg/logger"
)

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithClock replaces time.Now for age derivation.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRand sets the source of the cosmetic jitter.
func WithRand(r *rand.Rand) Option {
	return func(m *Matcher) {
		if r != nil {
			m.rng = r
		}
	}
}

// WithLogger sets the matcher logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.log = l
		}
	}
}

package service

import (
	"io"

	"github.com/okian/skinmate/internal/adapters/repository"
	"github.com/okian/skinmate/internal/domain/matcher"
	"github.com/okian/skinmate/internal/domain/progress"
	"github.com/okian/skinmate/internal/domain/quality"
	"github.com/okian/skinmate/internal/domain/retry"
	"github.com/okian/skinmate/internal/domain/scoring"
	"github.com/okian/skinmate/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the analysis queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the job id deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithReportCapacity caps the in-memory report store.
func WithReportCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.reportCapacity = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPipeline replaces the default preprocessing and quality pipeline.
func WithPipeline(p *quality.Pipeline) Option {
	return func(s *Service) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithProgressStore selects the store behind the progress channel.
func WithProgressStore(st progress.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.progressStore = st
		}
	}
}

// WithProgressOptions passes options through to the progress channel.
func WithProgressOptions(opts ...progress.Option) Option {
	return func(s *Service) {
		s.progressOpts = append(s.progressOpts, opts...)
	}
}

// WithMentorStore selects the mentor candidate repository.
func WithMentorStore(st repository.MentorStore) Option {
	return func(s *Service) {
		if st != nil {
			s.mentors = st
		}
	}
}

// WithMatcherOptions passes options through to the mentor matcher.
func WithMatcherOptions(opts ...matcher.Option) Option {
	return func(s *Service) {
		s.matcherOpts = append(s.matcherOpts, opts...)
	}
}

// WithScorer replaces the simulated scoring service.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithRetryOptions sets the retry policy workers use around the scorer.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(s *Service) {
		s.retryOpts = append(s.retryOpts, opts...)
	}
}

// WithCloser registers a resource released by Stop, in reverse order.
func WithCloser(c io.Closer) Option {
	return func(s *Service) {
		if c != nil {
			s.closers = append(s.closers, c)
		}
	}
}

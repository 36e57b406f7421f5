package service

import (
	"context"
	"fmt"

	"github.com/okian/skinmate/internal/adapters/progressstore"
	"github.com/okian/skinmate/internal/adapters/repository"
	"github.com/okian/skinmate/internal/config"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/progress"
	"github.com/okian/skinmate/internal/domain/quality"
	"github.com/okian/skinmate/internal/domain/retry"
	"github.com/okian/skinmate/internal/domain/scoring"
	"github.com/okian/skinmate/pkg/logger"
)

// FromConfig builds a Service with the backends cfg selects. Connections it
// opens are closed by Stop.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Nop()
	}

	gate := quality.NewGate(
		quality.WithMinLongEdge(cfg.MinLongEdge),
		quality.WithTargetLongEdge(cfg.TargetLongEdge),
		quality.WithSharpnessCutoff(cfg.SharpnessCutoff),
		quality.WithSharpnessIdeal(cfg.SharpnessIdeal),
		quality.WithSharpnessReference(cfg.SharpnessReference),
		quality.WithMinBytesPerPixel(cfg.MinBytesPerPixel),
	)
	pipeline := quality.NewPipeline(quality.NewPreprocessor(cfg.MaxUploadBytes, quality.WithMaxPixels(cfg.MaxPixels)), gate, cfg.MaxDimension, cfg.JPEGQuality)

	minLatency, maxLatency := cfg.ScoringLatency()
	scorer := scoring.NewSimulatedScorer(
		scoring.WithLatencyRange(minLatency, maxLatency),
		scoring.WithFailureRate(cfg.ScoringFailureRate),
	)

	opts := []Option{
		WithLogger(log),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithReportCapacity(cfg.ReportCapacity),
		WithPipeline(pipeline),
		WithScorer(scorer),
		WithRetryOptions(
			retry.WithMaxAttempts(cfg.RetryMaxAttempts),
			retry.WithInitialDelay(cfg.RetryInitialDelay()),
		),
		WithProgressOptions(
			progress.WithPollInterval(cfg.PollInterval()),
			progress.WithIdleTimeout(cfg.IdleTimeout()),
			progress.WithSweepInterval(cfg.SweepInterval()),
			progress.WithMonotonicStages(cfg.ProgressMonotonicStages),
		),
	}

	switch cfg.ProgressBackend {
	case config.BackendRedis:
		rdb, err := progressstore.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "using redis progress store")
		opts = append(opts,
			WithProgressStore(progressstore.NewRedisStore(rdb, progressstore.WithTTL(cfg.IdleTimeout()))),
			WithCloser(rdb),
		)
	case config.BackendMemory:
		log.Info(ctx, "using in-memory progress store")
	default:
		return nil, fmt.Errorf("%w: unknown progress_backend %q", config.ErrInvalidConfig, cfg.ProgressBackend)
	}

	switch cfg.MentorBackend {
	case config.BackendPostgres:
		pg, err := repository.OpenPostgres(ctx, cfg.PostgresDSN, repository.WithMigrations(true))
		if err != nil {
			closeAll(opts)
			return nil, err
		}
		log.Info(ctx, "using postgres mentor store")
		opts = append(opts, WithMentorStore(pg), WithCloser(pg))
	case config.BackendMemory:
		var seed []model.MentorCandidate
		if cfg.MentorSeedFile != "" {
			var err error
			if seed, err = repository.LoadMentorSeed(cfg.MentorSeedFile); err != nil {
				closeAll(opts)
				return nil, err
			}
		}
		store, err := repository.NewMemoryMentorStore(seed...)
		if err != nil {
			closeAll(opts)
			return nil, err
		}
		log.Info(ctx, "using in-memory mentor store", logger.Int("mentors", len(seed)))
		opts = append(opts, WithMentorStore(store))
	default:
		closeAll(opts)
		return nil, fmt.Errorf("%w: unknown mentor_backend %q", config.ErrInvalidConfig, cfg.MentorBackend)
	}

	return New(opts...), nil
}

// closeAll releases closers registered in opts when construction fails
// half way.
func closeAll(opts []Option) {
	scratch := &Service{}
	for _, opt := range opts {
		opt(scratch)
	}
	for i := len(scratch.closers) - 1; i >= 0; i-- {
		_ = scratch.closers[i].Close()
	}
}

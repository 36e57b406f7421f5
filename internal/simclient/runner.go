package simclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/quality"
	"github.com/okian/skinmate/internal/domain/types"
	"github.com/okian/skinmate/pkg/logger"
)

// counters is the lock-free side of Stats while workers run.
type counters struct {
	generated, rejectedLocally, rejectedRemote atomic.Int64
	submitted, completed, failed               atomic.Int64
	reports, matches, violations               atomic.Int64
}

func (c *counters) snapshot(start time.Time) *Stats {
	end := time.Now()
	return &Stats{
		Generated:       int(c.generated.Load()),
		RejectedLocally: int(c.rejectedLocally.Load()),
		RejectedRemote:  int(c.rejectedRemote.Load()),
		Submitted:       int(c.submitted.Load()),
		Completed:       int(c.completed.Load()),
		Failed:          int(c.failed.Load()),
		Reports:         int(c.reports.Load()),
		MentorMatches:   int(c.matches.Load()),
		StageViolations: int(c.violations.Load()),
		StartTime:       start,
		EndTime:         end,
		Duration:        end.Sub(start),
	}
}

// runner carries the collaborators shared by all simulated clients.
type runner struct {
	cfg      *Config
	client   *Client
	pipeline *quality.Pipeline
	log      logger.Logger
	c        counters
}

// Run simulates cfg.NumJobs users photographing themselves and following
// their analysis through to a mentor match. It returns an error when the
// service is unreachable or when any stream broke the stage ordering.
func Run(ctx context.Context, cfg *Config, client *Client, log logger.Logger) (*Stats, error) {
	if log == nil {
		log = logger.Nop()
	}
	start := time.Now()
	r := &runner{
		cfg:    cfg,
		client: client,
		pipeline: quality.NewPipeline(quality.NewPreprocessor(failure.DefaultMaxUploadBytes),
			quality.NewGate(), quality.DefaultMaxDimension, quality.DefaultJPEGQuality),
		log: log.Named("simclient"),
	}

	r.log.Info(ctx, "starting skinmate simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("jobs", cfg.NumJobs),
		logger.Int("workers", cfg.Workers),
		logger.Float64("blurryRatio", cfg.BlurryRatio),
		logger.Bool("override", cfg.Override))

	if err := client.Health(ctx); err != nil {
		return r.c.snapshot(start), fmt.Errorf("service health check failed: %w", err)
	}

	gen := NewGenerator(cfg.Seed, cfg.BlurryRatio)
	photos := make(chan Photo)
	workers := max(cfg.Workers, 1)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range photos {
				r.runOne(ctx, p)
			}
		}()
	}

	var genErr error
feed:
	for i := 0; i < cfg.NumJobs; i++ {
		p, err := gen.Next()
		if err != nil {
			genErr = err
			break
		}
		r.c.generated.Add(1)
		select {
		case photos <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(photos)
	wg.Wait()

	stats := r.c.snapshot(start)
	r.displayFinalStats(ctx, stats)

	switch {
	case genErr != nil:
		return stats, fmt.Errorf("photo generation failed: %w", genErr)
	case stats.StageViolations > 0:
		return stats, fmt.Errorf("%d progress streams broke stage ordering", stats.StageViolations)
	}
	return stats, ctx.Err()
}

// runOne drives a single photo through check, upload, watch, report and match.
func (r *runner) runOne(ctx context.Context, p Photo) {
	log := r.log.With(logger.String("job_id", p.JobID))

	prepared, verdict, err := r.pipeline.Process(p.Data)
	if err != nil {
		r.c.failed.Add(1)
		log.Warn(ctx, "local preprocessing failed", logger.Error(err))
		return
	}
	if !verdict.IsGood && !r.cfg.Override {
		r.c.rejectedLocally.Add(1)
		if r.cfg.Verbose {
			log.Info(ctx, "photo rejected before upload", logger.Any("reasons", verdict.Reasons))
		}
		return
	}

	_, err = r.client.Submit(ctx, types.SubmitRequest{
		JobID:    p.JobID,
		UserID:   p.UserID,
		Override: r.cfg.Override,
		Image:    prepared.Encoded,
	})
	var rejected *quality.RejectedError
	switch {
	case errors.As(err, &rejected):
		r.c.rejectedRemote.Add(1)
		return
	case err != nil:
		r.c.failed.Add(1)
		ce := failure.Classify(err)
		log.Warn(ctx, "submit failed", logger.String("kind", string(ce.Kind)), logger.String("message", ce.Message))
		return
	}
	r.c.submitted.Add(1)

	trace := newStageTrace(p.JobID)
	final, err := r.client.Watch(ctx, p.JobID, func(rec model.ProgressRecord) {
		trace.observe(rec)
		if r.cfg.Verbose {
			log.Info(ctx, "progress", logger.String("stage", string(rec.Stage)), logger.Int("progress", rec.Progress))
		}
	})
	if len(trace.violations) > 0 {
		r.c.violations.Add(1)
		log.Error(ctx, "stage ordering violated", logger.Any("violations", trace.violations))
	}
	if err != nil {
		r.c.failed.Add(1)
		log.Warn(ctx, "progress stream failed", logger.Error(err))
		return
	}
	if final.Stage == model.StageError {
		r.c.failed.Add(1)
		log.Warn(ctx, "analysis failed", logger.String("message", final.Message))
		return
	}
	r.c.completed.Add(1)

	report, found, err := r.client.Report(ctx, p.JobID)
	if err != nil || !found {
		log.Warn(ctx, "report missing after completion", logger.Bool("found", found), logger.Error(err))
		return
	}
	if err := verifyReport(p.JobID, report); err != nil {
		log.Warn(ctx, "report inconsistent", logger.Error(err))
		return
	}
	r.c.reports.Add(1)

	match, err := r.client.MatchMentor(ctx, report.PrimaryConcern, report.SkinScore)
	if err != nil {
		log.Warn(ctx, "mentor match failed", logger.Error(err))
		return
	}
	if match.Found {
		r.c.matches.Add(1)
	}
}

// displayFinalStats logs the run summary.
func (r *runner) displayFinalStats(ctx context.Context, stats *Stats) {
	var completionRate, jobsPerSecond float64
	if stats.Submitted > 0 {
		completionRate = float64(stats.Completed) / float64(stats.Submitted) * 100
	}
	if stats.Duration > 0 {
		jobsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	r.log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("rejectedLocally", stats.RejectedLocally),
		logger.Int("rejectedRemote", stats.RejectedRemote),
		logger.Int("submitted", stats.Submitted),
		logger.Int("completed", stats.Completed),
		logger.Int("failed", stats.Failed),
		logger.Int("reports", stats.Reports),
		logger.Int("mentorMatches", stats.MentorMatches),
		logger.Int("stageViolations", stats.StageViolations),
		logger.Duration("duration", stats.Duration),
		logger.Float64("completionRate", completionRate),
		logger.Float64("jobsPerSecond", jobsPerSecond))
}

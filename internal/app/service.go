// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/skinmate/internal/adapters/mq/queue"
	"github.com/okian/skinmate/internal/adapters/mq/worker"
	"github.com/okian/skinmate/internal/adapters/repository"
	"github.com/okian/skinmate/internal/domain/dedupe"
	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/matcher"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/progress"
	"github.com/okian/skinmate/internal/domain/quality"
	"github.com/okian/skinmate/internal/domain/retry"
	"github.com/okian/skinmate/internal/domain/scoring"
	"github.com/okian/skinmate/internal/domain/types"
	"github.com/okian/skinmate/pkg/logger"
	"github.com/okian/skinmate/pkg/metrics"
)

// Message of the first progress record of every accepted job.
const msgQueued = "queued for analysis"

// Service implements the API dependencies for skin analysis.
type Service struct {
	mu sync.RWMutex

	// Core components
	pipeline      *quality.Pipeline
	deduper       dedupe.Deduper
	queue         *queue.InMemoryQueue
	pool          *worker.Pool
	scorer        scoring.Scorer
	progressStore progress.Store
	channel       *progress.Channel
	mentors       repository.MentorStore
	matcher       *matcher.Matcher
	reports       repository.ReportStore

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	reportCapacity int
	progressOpts   []progress.Option
	matcherOpts    []matcher.Option
	retryOpts      []retry.Option
	closers        []io.Closer

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Unset collaborators default to in-memory ones.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      1000,
		dedupeSize:     50000,
		reportCapacity: 10000,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.pipeline == nil {
		s.pipeline = quality.NewPipeline(quality.NewPreprocessor(0), quality.NewGate(), 0, 0)
	}
	if s.scorer == nil {
		s.scorer = scoring.NewSimulatedScorer()
	}
	if s.progressStore == nil {
		s.progressStore = progress.NewMemoryStore()
	}
	if s.mentors == nil {
		empty, _ := repository.NewMemoryMentorStore()
		s.mentors = empty
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.reports = repository.NewMemoryReportStore(s.reportCapacity)
	s.channel = progress.NewChannel(s.progressStore,
		append([]progress.Option{progress.WithLogger(s.logger.Named("progress"))}, s.progressOpts...)...)
	s.matcher = matcher.New(s.mentors,
		append([]matcher.Option{matcher.WithLogger(s.logger.Named("matcher"))}, s.matcherOpts...)...)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.scorer, s.channel, s.reports,
		worker.WithLogger(s.logger),
		worker.WithRetry(s.retryOpts...),
	)
	return s
}

// Start launches the worker pool and the progress scavenger.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.queue.IsClosed() {
		return ErrNotStarted
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.channel.Start(runCtx)
	s.pool.Start(runCtx)
	s.started = true

	s.logger.Info(ctx, "analysis service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queue.Capacity()),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued jobs, stops the scavenger and releases backends.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping analysis service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()
	if err := s.channel.Close(); err != nil {
		errs = append(errs, err)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	s.started = false
	s.logger.Info(ctx, "analysis service stopped")
	return errors.Join(errs...)
}

// CheckQuality preprocesses raw and returns the gate verdict without
// submitting anything.
func (s *Service) CheckQuality(_ context.Context, raw []byte) (types.QualityResponse, error) {
	prepared, res, err := s.pipeline.Process(raw)
	if err != nil {
		return types.QualityResponse{}, failure.Classify(err)
	}
	return types.QualityResponse{
		Width:   prepared.Width,
		Height:  prepared.Height,
		Bytes:   len(prepared.Encoded),
		Quality: res,
	}, nil
}

// Submit gates, deduplicates and enqueues one image for analysis. The job's
// progress record exists before Submit returns.
func (s *Service) Submit(ctx context.Context, req types.SubmitRequest) (types.SubmitResponse, error) {
	prepared, res, err := s.pipeline.Process(req.Image)
	if err != nil {
		return types.SubmitResponse{}, failure.Classify(err)
	}
	if !res.IsGood && !req.Override {
		return types.SubmitResponse{}, &quality.RejectedError{Result: res}
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	if !s.deduper.Claim(ctx, jobID) {
		metrics.RecordJobDuplicate()
		s.logger.Debug(ctx, "duplicate job id", logger.String("job_id", jobID))
		return types.SubmitResponse{}, errDuplicateJob(jobID)
	}

	if _, err := s.channel.Publish(ctx, jobID, model.StageConnecting, 0, msgQueued); err != nil {
		s.deduper.Release(ctx, jobID)
		return types.SubmitResponse{}, failure.Classify(err)
	}

	job := model.AnalysisJob{
		JobID:       jobID,
		UserID:      req.UserID,
		Image:       prepared.Encoded,
		Quality:     res,
		Override:    req.Override,
		SubmittedAt: time.Now(),
	}
	if !s.queue.Enqueue(ctx, job) {
		s.deduper.Release(ctx, jobID)
		s.logger.Warn(ctx, "queue full, rejecting job", logger.String("job_id", jobID))
		return types.SubmitResponse{}, queue.ErrBackpressure
	}

	metrics.RecordJobSubmitted()
	s.logger.Debug(ctx, "job accepted",
		logger.String("job_id", jobID),
		logger.Bool("override", req.Override && !res.IsGood),
		logger.Float64("sharpness", res.SharpnessScore),
	)
	return types.SubmitResponse{JobID: jobID, Quality: res}, nil
}

// PublishProgress is the producer-facing sink for out-of-process workers.
func (s *Service) PublishProgress(ctx context.Context, u types.ProgressUpdate) (model.ProgressRecord, error) {
	rec, err := s.channel.Publish(ctx, u.JobID, model.Stage(u.Stage), u.Progress, u.Message)
	if err != nil {
		return model.ProgressRecord{}, failure.Classify(err)
	}
	return rec, nil
}

// Subscribe streams progress for jobID until a terminal record or ctx ends.
func (s *Service) Subscribe(ctx context.Context, jobID string) (<-chan model.ProgressRecord, error) {
	ch, err := s.channel.Subscribe(ctx, jobID)
	if err != nil {
		return nil, failure.Classify(err)
	}
	return ch, nil
}

// Report returns the finished report for jobID. found is false until the
// job completes.
func (s *Service) Report(ctx context.Context, jobID string) (model.Report, bool, error) {
	r, err := s.reports.Get(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Report{}, false, nil
	}
	if err != nil {
		return model.Report{}, false, failure.Wrap(failure.KindServer, err)
	}
	return r, true, nil
}

// MatchMentor finds the best mentor for a concern and score.
func (s *Service) MatchMentor(ctx context.Context, req matcher.MatchRequest) (types.MatchResult, error) {
	return s.matcher.FindMatch(ctx, req)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queueLen := s.queue.Len(ctx)
	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.pool.Size(),
		"queueCapacity": s.queue.Capacity(),
		"queueLength":   queueLen,
		"dedupeSize":    s.deduper.Size(),
		"reports":       s.reports.Count(ctx),
	}

	if live, finished, err := s.channel.Stats(ctx); err == nil {
		stats["progressLive"] = live
		stats["progressFinished"] = finished
		metrics.UpdateProgressRecords(live)
	} else {
		s.logger.Warn(ctx, "progress stats unavailable", logger.Error(err))
	}
	if n, err := s.mentors.Count(ctx); err == nil {
		stats["mentors"] = n
	} else {
		s.logger.Warn(ctx, "mentor count unavailable", logger.Error(err))
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.pool.Size())
	return stats
}

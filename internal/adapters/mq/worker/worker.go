// Package worker runs analysis jobs off the queue and reports their progress.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/skinmate/internal/adapters/mq/queue"
	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/internal/domain/retry"
	"github.com/okian/skinmate/internal/domain/scoring"
	"github.com/okian/skinmate/pkg/logger"
	"github.com/okian/skinmate/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Progress messages published at each stage boundary.
const (
	msgUploading = "image received"
	msgAnalyzing = "analyzing skin"
	msgScoring   = "building report"
	msgComplete  = "analysis complete"
)

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Publisher posts stage updates for a job.
type Publisher interface {
	Publish(ctx context.Context, jobID string, stage model.Stage, progress int, message string) (model.ProgressRecord, error)
}

// ReportSaver stores finished reports.
type ReportSaver interface {
	Save(ctx context.Context, r model.Report) error
}

// Worker processes jobs until its queue closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	scorer    scoring.Scorer
	publisher Publisher
	reports   ReportSaver
	name      string
	retryOpts []retry.Option
	now       func() time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, scorer scoring.Scorer, publisher Publisher, reports ReportSaver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		scorer:    scorer,
		publisher: publisher,
		reports:   reports,
		name:      "worker",
		now:       time.Now,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.Process(ctx, j); err != nil {
				w.logger.Warn(ctx, "job failed", logger.String("job_id", j.JobID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Process runs one job through the stages and stores its report. A failure
// at any point publishes the error stage with the classified message.
func (w *InMemoryWorker) Process(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job must be passed by value for channel semantics
	start := time.Now()
	metrics.AddWorkerActive(1)
	defer func() {
		metrics.AddWorkerActive(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.run(ctx, j); err != nil {
		ce := failure.Classify(err)
		metrics.RecordWorkerError()
		metrics.RecordClassifiedError(string(ce.Kind))
		metrics.RecordJobCompleted(string(model.StageError))
		if _, perr := w.publisher.Publish(context.WithoutCancel(ctx), j.JobID, model.StageError, 100, ce.Message); perr != nil {
			w.logger.Error(ctx, "failed to publish error stage", logger.String("job_id", j.JobID), logger.Error(perr))
		}
		return ce
	}
	metrics.RecordJobCompleted(string(model.StageComplete))
	return nil
}

func (w *InMemoryWorker) run(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam
	if err := w.stage(ctx, j.JobID, model.StageUploading, 20, msgUploading); err != nil {
		return err
	}
	if err := w.stage(ctx, j.JobID, model.StageAnalyzing, 40, msgAnalyzing); err != nil {
		return err
	}

	opts := append([]retry.Option{retry.WithName("score"), retry.WithLogger(w.logger)}, w.retryOpts...)
	analysis, err := retry.DoValue(ctx, func(ctx context.Context) (scoring.Analysis, error) {
		return w.scorer.Score(ctx, j.Image)
	}, opts...)
	if err != nil {
		return err
	}

	if err := w.stage(ctx, j.JobID, model.StageScoring, 80, msgScoring); err != nil {
		return err
	}
	report := model.Report{
		JobID:          j.JobID,
		UserID:         j.UserID,
		Scores:         analysis.Scores,
		SkinScore:      analysis.SkinScore(),
		PrimaryConcern: analysis.PrimaryConcern(),
		Confidence:     analysis.Confidence,
		Uncertainty:    analysis.Uncertainty,
		CompletedAt:    w.now(),
	}
	if err := w.reports.Save(ctx, report); err != nil {
		return failure.Wrap(failure.KindServer, err)
	}

	w.logger.Info(ctx, "analysis finished",
		logger.String("job_id", j.JobID),
		logger.Float64("skin_score", report.SkinScore),
		logger.String("primary_concern", report.PrimaryConcern),
	)
	return w.stage(ctx, j.JobID, model.StageComplete, 100, msgComplete)
}

func (w *InMemoryWorker) stage(ctx context.Context, jobID string, st model.Stage, pct int, msg string) error {
	_, err := w.publisher.Publish(ctx, jobID, st, pct, msg)
	return err
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. Options apply to every worker.
func NewPool(workerCount int, q Queue, scorer scoring.Scorer, publisher Publisher, reports ReportSaver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, scorer, publisher, reports, wopts...)
		pool.workers[i] = w
	}
	if len(pool.workers) > 0 {
		pool.logger = pool.workers[0].logger
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and lets workers drain what is already queued.
// Workers still busy when ctx or the pool timeout expires are told to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut++
			w.shutdownOnce.Do(func() { close(w.shutdown) })
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not drain: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}

// Package progress delivers stage updates for long-running analysis jobs
// from a producer to any number of polling observers.
//
// Delivery is level-triggered: every subscriber tick re-emits the current
// record even when nothing changed. A terminal record is delivered at most
// once per subscriber, after which the stored record is removed.
package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
	"github.com/okian/skinmate/pkg/logger"
	"github.com/okian/skinmate/pkg/metrics"
)

// Default channel timings.
const (
	DefaultPollInterval  = time.Second
	DefaultIdleTimeout   = 10 * time.Minute
	DefaultSweepInterval = 30 * time.Second
)

// PlaceholderMessage is the message of the synthetic record emitted before
// the producer has published anything.
const PlaceholderMessage = "preparing"

type finishedEntry struct {
	record    model.ProgressRecord
	expiresAt time.Time
}

// Channel publishes and streams progress records over a Store.
type Channel struct {
	store         Store
	pollInterval  time.Duration
	idleTimeout   time.Duration
	sweepInterval time.Duration
	monotonic     bool
	now           func() time.Time
	log           logger.Logger

	// finished remembers delivered terminal records so observers that
	// subscribe after cleanup still see how the job ended.
	mu       sync.Mutex
	finished map[string]finishedEntry

	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewChannel creates a channel over store. Call Start to run the scavenger.
func NewChannel(store Store, opts ...Option) *Channel {
	c := &Channel{
		store:         store,
		pollInterval:  DefaultPollInterval,
		idleTimeout:   DefaultIdleTimeout,
		sweepInterval: DefaultSweepInterval,
		monotonic:     true,
		now:           time.Now,
		log:           logger.Nop(),
		finished:      make(map[string]finishedEntry),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish records the latest state of jobID. Progress is clamped to [0,100].
func (c *Channel) Publish(ctx context.Context, jobID string, stage model.Stage, progress int, message string) (model.ProgressRecord, error) {
	if jobID == "" {
		metrics.RecordProgressRejected()
		return model.ProgressRecord{}, failure.ErrEmptyJobID
	}
	if _, err := model.ParseStage(string(stage)); err != nil {
		metrics.RecordProgressRejected()
		return model.ProgressRecord{}, errUnknownStage(stage)
	}
	if c.monotonic {
		if done, ok := c.finishedRecord(jobID); ok {
			metrics.RecordProgressRejected()
			return model.ProgressRecord{}, errFinished(jobID, done.Stage)
		}
	}

	next := model.ProgressRecord{
		JobID:     jobID,
		Stage:     stage,
		Progress:  model.ClampProgress(progress),
		Message:   message,
		UpdatedAt: c.now(),
	}
	rec, err := c.store.Update(ctx, jobID, func(cur model.ProgressRecord, exists bool) (model.ProgressRecord, error) {
		if c.monotonic && exists {
			if cur.Stage.Terminal() {
				return cur, errFinished(jobID, cur.Stage)
			}
			if stage.Before(cur.Stage) {
				return cur, errRegression(jobID, cur.Stage, stage)
			}
		}
		return next, nil
	})
	if err != nil {
		metrics.RecordProgressRejected()
		var tagged *failure.ClassifiedError
		if errors.As(err, &tagged) {
			return model.ProgressRecord{}, tagged
		}
		return model.ProgressRecord{}, errStore("update", err)
	}

	metrics.RecordProgressPublish(string(stage))
	c.log.Debug(ctx, "progress published",
		logger.String("job_id", jobID),
		logger.String("stage", string(stage)),
		logger.Int("progress", rec.Progress),
	)
	return rec, nil
}

// Subscribe streams records for jobID. The first record is sent right away
// and then one per poll interval. The channel closes after a terminal record,
// when ctx is done, or when the Channel is closed. Only the terminal path
// removes the stored record.
func (c *Channel) Subscribe(ctx context.Context, jobID string) (<-chan model.ProgressRecord, error) {
	if jobID == "" {
		return nil, failure.ErrEmptyJobID
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()

	out := make(chan model.ProgressRecord)
	go c.watch(ctx, jobID, out)
	return out, nil
}

func (c *Channel) watch(ctx context.Context, jobID string, out chan<- model.ProgressRecord) {
	defer c.wg.Done()
	defer close(out)
	metrics.AddProgressSubscribers(1)
	defer metrics.AddProgressSubscribers(-1)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	last := model.ProgressRecord{
		JobID:     jobID,
		Stage:     model.StageConnecting,
		Progress:  0,
		Message:   PlaceholderMessage,
		UpdatedAt: c.now(),
	}
	for {
		last = c.current(ctx, jobID, last)

		select {
		case out <- last:
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		}

		if last.Stage.Terminal() {
			c.finish(ctx, last)
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		}
	}
}

// current resolves what a subscriber should see now. A store failure repeats
// the previous emission rather than regressing to the placeholder.
func (c *Channel) current(ctx context.Context, jobID string, last model.ProgressRecord) model.ProgressRecord {
	rec, ok, err := c.store.Get(ctx, jobID)
	if err != nil {
		c.log.Warn(ctx, "progress store read failed", logger.String("job_id", jobID), logger.Error(err))
		return last
	}
	if ok {
		return rec
	}
	if done, ok := c.finishedRecord(jobID); ok {
		return done
	}
	return last
}

// finish remembers rec before deleting it so a concurrent subscriber never
// sees the gap.
func (c *Channel) finish(ctx context.Context, rec model.ProgressRecord) {
	c.mu.Lock()
	if _, seen := c.finished[rec.JobID]; !seen {
		c.finished[rec.JobID] = finishedEntry{record: rec, expiresAt: c.now().Add(c.idleTimeout)}
	}
	c.mu.Unlock()

	if err := c.store.Delete(ctx, rec.JobID); err != nil {
		c.log.Warn(ctx, "progress record cleanup failed", logger.String("job_id", rec.JobID), logger.Error(err))
	}
}

func (c *Channel) finishedRecord(jobID string) (model.ProgressRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.finished[jobID]
	if !ok || c.now().After(e.expiresAt) {
		return model.ProgressRecord{}, false
	}
	return e.record, true
}

// Get returns the current record for jobID, falling back to a remembered
// terminal record.
func (c *Channel) Get(ctx context.Context, jobID string) (model.ProgressRecord, bool, error) {
	rec, ok, err := c.store.Get(ctx, jobID)
	if err != nil {
		return model.ProgressRecord{}, false, errStore("get", err)
	}
	if ok {
		return rec, true, nil
	}
	rec, ok = c.finishedRecord(jobID)
	return rec, ok, nil
}

// Stats reports the number of live and remembered finished jobs. Counting
// live records may scan the store, so the records gauge is only refreshed
// here and by Sweep.
func (c *Channel) Stats(ctx context.Context) (live int, finished int, err error) {
	live, err = c.store.Len(ctx)
	if err == nil {
		metrics.UpdateProgressRecords(live)
	}
	c.mu.Lock()
	finished = len(c.finished)
	c.mu.Unlock()
	return live, finished, err
}

// Close stops the scavenger and all subscriptions and waits for them.
func (c *Channel) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.stop)
	}
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

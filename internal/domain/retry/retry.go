// Package retry runs fallible operations with exponential backoff, retrying
// only what the failure classifier marks as retryable.
package retry

import (
	"context"
	"time"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/pkg/logger"
	"github.com/okian/skinmate/pkg/metrics"
)

// Default executor configuration.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type config struct {
	maxAttempts  int
	initialDelay time.Duration
	sleep        SleepFunc
	log          logger.Logger
	name         string
}

func newConfig(opts []Option) *config {
	c := &config{
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
		sleep:        sleepCtx,
		log:          logger.Nop(),
		name:         "operation",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs op until it succeeds, fails with a non-retryable error, or runs out
// of attempts. Every returned error is a *failure.ClassifiedError.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	_, err := DoValue(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	c := newConfig(opts)
	var zero T

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, failure.Classify(err)
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		ce := failure.Classify(err)
		if !ce.Retryable {
			return zero, ce
		}
		if attempt+1 >= c.maxAttempts {
			metrics.RecordRetryExhausted()
			c.log.Warn(ctx, "retry attempts exhausted",
				logger.String("operation", c.name),
				logger.Int("attempts", attempt+1),
				logger.String("kind", string(ce.Kind)),
			)
			return zero, ce
		}

		delay := Backoff(c.initialDelay, attempt)
		metrics.RecordRetryAttempt(string(ce.Kind))
		c.log.Debug(ctx, "retrying after failure",
			logger.String("operation", c.name),
			logger.Int("attempt", attempt+1),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return zero, failure.Classify(err)
		}
	}
}

// Backoff returns initial * 2^attempt.
func Backoff(initial time.Duration, attempt int) time.Duration {
	return initial << uint(attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

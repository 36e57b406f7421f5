package retry

import (
	"time"

	"github.com/okian/skinmate/pkg/logger"
)

// Option applies a configuration option to an executor run.
type Option func(*config)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the wait before the second attempt. Later waits double.
func WithInitialDelay(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.initialDelay = d
		}
	}
}

// WithSleep replaces the backoff wait. Tests use it to observe delays
// without sleeping.
func WithSleep(fn SleepFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithLogger sets the logger used to report retried attempts.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithName labels log lines for the wrapped operation.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

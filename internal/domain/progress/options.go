package progress

import (
	"time"

	"github.com/okian/skinmate/pkg/logger"
)

// Option applies a configuration option to the Channel.
type Option func(*Channel)

// WithPollInterval sets how often subscribers re-read the store.
func WithPollInterval(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithIdleTimeout sets how long a record may go without updates before the
// scavenger removes it. Finished jobs are remembered for the same window.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

// WithSweepInterval sets how often the scavenger runs.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithMonotonicStages toggles rejection of stage regressions and of writes
// after a terminal stage. Enabled by default.
func WithMonotonicStages(enabled bool) Option {
	return func(c *Channel) {
		c.monotonic = enabled
	}
}

// WithClock replaces time.Now for record timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Channel) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the channel logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.log = l
		}
	}
}

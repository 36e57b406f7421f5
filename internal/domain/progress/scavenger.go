package progress

import (
	"context"
	"time"

	"github.com/okian/skinmate/pkg/logger"
	"github.com/okian/skinmate/pkg/metrics"
)

// Start runs the idle scavenger until ctx is done or Close is called.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := c.Sweep(ctx); err != nil {
					c.log.Warn(ctx, "progress sweep failed", logger.Error(err))
				}
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			}
		}
	}()
}

// Sweep removes records idle longer than the idle timeout and forgets
// expired finished jobs. It returns the number of store records removed.
func (c *Channel) Sweep(ctx context.Context) (int, error) {
	now := c.now()

	c.mu.Lock()
	for id, e := range c.finished {
		if now.After(e.expiresAt) {
			delete(c.finished, id)
		}
	}
	c.mu.Unlock()

	removed, err := c.store.Sweep(ctx, now.Add(-c.idleTimeout))
	if err != nil {
		return 0, errStore("sweep", err)
	}
	metrics.RecordProgressScavenged(removed)
	if n, err := c.store.Len(ctx); err == nil {
		metrics.UpdateProgressRecords(n)
	}
	if removed > 0 {
		c.log.Info(ctx, "scavenged idle progress records", logger.Int("removed", removed))
	}
	return removed, nil
}

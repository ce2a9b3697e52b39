package cache

import (
	"context"
	"time"
)

// Start fills the window, then on every tick:
//   - rebuilds the window when the dataset changed
//   - generates the leading day
//   - evicts days that fell behind
//
// Blocks until ctx is cancelled.
func (c *FrameCache) Start(ctx context.Context) {
	if !c.waitForData(ctx) {
		return
	}

	c.rebuild(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache generator stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// waitForData blocks until the store holds a dataset, checking every
// second. Returns false if ctx is cancelled.
func (c *FrameCache) waitForData(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("cache waiting for element data")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("element data available, starting cache warmup")
				return true
			}
		}
	}
}

func (c *FrameCache) tick(ctx context.Context) {
	if c.datasetChanged() {
		c.rebuild(ctx)
		return
	}
	c.generateLeadingEdge(ctx)
	c.evictExpired()
}

// generateLeadingEdge computes today+horizon if it is missing.
func (c *FrameCache) generateLeadingEdge(ctx context.Context) {
	target := c.today().AddDate(0, 0, c.config.HorizonDays)

	c.mu.RLock()
	_, ok := c.entries[target]
	c.mu.RUnlock()
	if ok {
		return
	}

	start := time.Now()
	ds := c.store.Get()
	set, err := c.prop.PropagateAt(ctx, c.prop.Config(), target)
	if err != nil {
		c.logger.Warn("leading edge generation failed",
			"date", target.Format(time.DateOnly),
			"error", err,
		)
		return
	}
	c.put(set, ds)

	c.logger.Debug("leading edge generated",
		"date", target.Format(time.DateOnly),
		"duration_us", time.Since(start).Microseconds(),
	)
}

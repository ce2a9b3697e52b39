package cache

import (
	"context"
	"time"
)

// datasetChanged reports whether the store holds a snapshot the window was
// not built from.
func (c *FrameCache) datasetChanged() bool {
	ds := c.store.Get()
	return ds != nil && ds != c.builtFrom.Load()
}

// rebuild computes the whole window from the current snapshot on the worker
// pool and swaps it in. Reads keep hitting the old window until the swap.
// A failed rebuild leaves the old window serving.
func (c *FrameCache) rebuild(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}

	c.rebuilding.Store(true)
	defer c.rebuilding.Store(false)

	start := time.Now()
	first := c.today().AddDate(0, 0, -c.config.BufferDays)
	sets, err := c.prop.Timeline(ctx, c.prop.Config(), first, c.config.BufferDays+c.config.HorizonDays, 1)
	if err != nil {
		c.logger.Warn("cache rebuild failed", "source", ds.Source, "error", err)
		return
	}

	generated := c.now()
	entries := make(map[time.Time]*Entry, len(sets))
	for _, set := range sets {
		entries[Day(set.Date)] = &Entry{Set: set, Dataset: ds, GeneratedAt: generated}
	}
	c.replaceAll(entries)
	c.builtFrom.Store(ds)

	c.logger.Info("cache rebuilt",
		"source", ds.Source,
		"frames", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

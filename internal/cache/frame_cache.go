// Package cache keeps the default computation's daily position sets for a
// rolling window of days.
//
// The cache holds frames for [today, today+horizon]. A background worker
// generates the leading day and evicts days that fell behind. When the
// element dataset changes, the window is rebuilt without interrupting reads.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/metrics"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
)

// Config sizes the rolling window.
type Config struct {
	HorizonDays int           // Days ahead of today to cache (default: 30)
	BufferDays  int           // Keep days this long after they pass (default: 1)
	Interval    time.Duration // Maintenance tick (default: 1m)
}

func (c Config) withDefaults() Config {
	if c.HorizonDays <= 0 {
		c.HorizonDays = 30
	}
	if c.BufferDays < 0 {
		c.BufferDays = 0
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	return c
}

// Entry wraps a frame with generation metadata. Dataset is the snapshot the
// frame was computed from.
type Entry struct {
	Set         *propagation.PositionSet
	Dataset     *elements.Dataset
	GeneratedAt time.Time
}

// FrameCache is an in-memory cache of daily position sets.
// Safe for concurrent use by multiple goroutines.
type FrameCache struct {
	mu      sync.RWMutex
	entries map[time.Time]*Entry

	config Config
	prop   *propagation.Propagator
	store  *elements.Store
	logger *slog.Logger
	now    func() time.Time

	// Dataset the entries were built from.
	builtFrom atomic.Pointer[elements.Dataset]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	rebuilding atomic.Bool
}

// NewFrameCache creates an empty cache. Call Start to fill and maintain it.
func NewFrameCache(config Config, prop *propagation.Propagator, store *elements.Store, logger *slog.Logger) *FrameCache {
	config = config.withDefaults()
	logger.Info("cache initialized",
		"horizon_days", config.HorizonDays,
		"buffer_days", config.BufferDays,
		"interval_seconds", config.Interval.Seconds(),
	)

	return &FrameCache{
		entries: make(map[time.Time]*Entry),
		config:  config,
		prop:    prop,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Day normalizes t to its UTC calendar day, the cache key.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (c *FrameCache) today() time.Time {
	return Day(c.now())
}

// Get returns the cached frame for t's day, or nil. A frame computed from a
// snapshot other than the store's current one is a miss.
func (c *FrameCache) Get(t time.Time) *propagation.PositionSet {
	key := Day(t)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && entry.Dataset == c.store.Get() {
		c.hits.Add(1)
		metrics.RecordCacheLookup(true)
		return entry.Set
	}

	c.misses.Add(1)
	metrics.RecordCacheLookup(false)
	return nil
}

// Frame returns t's day from the cache, computing and storing it on a miss.
// Days outside the window are computed but not stored.
func (c *FrameCache) Frame(ctx context.Context, t time.Time) (*propagation.PositionSet, error) {
	if set := c.Get(t); set != nil {
		return set, nil
	}
	ds := c.store.Get()
	set, err := c.prop.PropagateAt(ctx, c.prop.Config(), t)
	if err != nil {
		return nil, err
	}
	if c.inWindow(set.Date) {
		c.put(set, ds)
	}
	return set, nil
}

// Range returns count consecutive daily frames starting at from, oldest
// first. Missing days are computed.
func (c *FrameCache) Range(ctx context.Context, from time.Time, count int) ([]*propagation.PositionSet, error) {
	from = Day(from)
	sets := make([]*propagation.PositionSet, 0, count)
	for i := 0; i < count; i++ {
		set, err := c.Frame(ctx, from.AddDate(0, 0, i))
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func (c *FrameCache) inWindow(day time.Time) bool {
	today := c.today()
	first := today.AddDate(0, 0, -c.config.BufferDays)
	last := today.AddDate(0, 0, c.config.HorizonDays)
	return !day.Before(first) && !day.After(last)
}

// put stores a frame computed from ds. Caller must not hold mu.
func (c *FrameCache) put(set *propagation.PositionSet, ds *elements.Dataset) {
	entry := &Entry{Set: set, Dataset: ds, GeneratedAt: c.now()}

	c.mu.Lock()
	c.entries[Day(set.Date)] = entry
	c.mu.Unlock()

	c.updateMetrics()
}

// evictExpired removes days older than today - buffer.
func (c *FrameCache) evictExpired() int {
	cutoff := c.today().AddDate(0, 0, -c.config.BufferDays)
	var removed int

	c.mu.Lock()
	for day := range c.entries {
		if day.Before(cutoff) {
			delete(c.entries, day)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		c.updateMetrics()
		c.logger.Debug("cache eviction", "days_removed", removed)
	}
	return removed
}

// replaceAll swaps in a freshly built window.
func (c *FrameCache) replaceAll(entries map[time.Time]*Entry) {
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.updateMetrics()
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Frames     int       `json:"frames"`
	OldestDay  time.Time `json:"oldest_day"`
	NewestDay  time.Time `json:"newest_day"`
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Evictions  int64     `json:"evictions"`
	Rebuilding bool      `json:"rebuilding"`
}

// Stats returns current cache statistics.
func (c *FrameCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	var oldest, newest time.Time
	for day := range c.entries {
		if oldest.IsZero() || day.Before(oldest) {
			oldest = day
		}
		if newest.IsZero() || day.After(newest) {
			newest = day
		}
	}
	c.mu.RUnlock()

	return Stats{
		Frames:     count,
		OldestDay:  oldest,
		NewestDay:  newest,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		Rebuilding: c.rebuilding.Load(),
	}
}

func (c *FrameCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()
	metrics.SetCacheFrames(count)
}

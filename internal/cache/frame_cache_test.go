package cache

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testStore() *elements.Store {
	store := elements.NewStore()
	store.Set(elements.DefaultDataset())
	return store
}

func testPropagator(store *elements.Store) *propagation.Propagator {
	return propagation.NewPropagator(store, propagation.PropConfig{Workers: 2}, propagation.DefaultConfig(), testLogger())
}

func testConfig() Config {
	return Config{HorizonDays: 5, BufferDays: 1, Interval: 10 * time.Millisecond}
}

var fixedNow = time.Date(2024, 3, 10, 13, 45, 0, 0, time.UTC)

func newTestCache(store *elements.Store) *FrameCache {
	c := NewFrameCache(testConfig(), testPropagator(store), store, testLogger())
	c.now = func() time.Time { return fixedNow }
	return c
}

// TestFrameCache tests basic cache operations: put, get, evict.
func TestFrameCache(t *testing.T) {
	store := testStore()
	c := newTestCache(store)

	set, err := c.prop.PropagateAt(context.Background(), c.prop.Config(), fixedNow)
	if err != nil {
		t.Fatalf("PropagateAt failed: %v", err)
	}
	c.put(set, store.Get())

	// Any time of the same day hits.
	got := c.Get(fixedNow.Add(-13 * time.Hour))
	if got == nil {
		t.Fatal("expected cache hit, got nil")
	}
	if !got.Date.Equal(Day(fixedNow)) {
		t.Errorf("date mismatch: got %v, want %v", got.Date, Day(fixedNow))
	}
	if c.Get(fixedNow.AddDate(0, 0, 1)) != nil {
		t.Error("expected miss for tomorrow")
	}

	stats := c.Stats()
	if stats.Frames != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v", stats)
	}

	// Move the clock past the buffer and evict.
	c.now = func() time.Time { return fixedNow.AddDate(0, 0, 3) }
	if removed := c.evictExpired(); removed != 1 {
		t.Errorf("evicted %d, want 1", removed)
	}
	if stats := c.Stats(); stats.Frames != 0 || stats.Evictions != 1 {
		t.Errorf("after eviction stats = %+v", stats)
	}
}

func TestRebuild(t *testing.T) {
	store := testStore()
	c := newTestCache(store)
	c.rebuild(context.Background())

	stats := c.Stats()
	// Buffer day + today + 5 horizon days.
	if stats.Frames != 7 {
		t.Fatalf("frames = %d, want 7", stats.Frames)
	}
	if want := Day(fixedNow).AddDate(0, 0, -1); !stats.OldestDay.Equal(want) {
		t.Errorf("oldest = %v, want %v", stats.OldestDay, want)
	}
	if want := Day(fixedNow).AddDate(0, 0, 5); !stats.NewestDay.Equal(want) {
		t.Errorf("newest = %v, want %v", stats.NewestDay, want)
	}
	if c.datasetChanged() {
		t.Error("dataset reported changed right after rebuild")
	}

	// A new snapshot triggers a rebuild on the next tick.
	old := c.Get(fixedNow)
	store.Set(elements.DefaultDataset())
	if !c.datasetChanged() {
		t.Fatal("new snapshot not detected")
	}
	c.tick(context.Background())
	if c.datasetChanged() {
		t.Error("tick did not rebuild")
	}
	if got := c.Get(fixedNow); got == old {
		t.Error("frame not replaced by rebuild")
	}
}

func TestLeadingEdge(t *testing.T) {
	store := testStore()
	c := newTestCache(store)
	c.rebuild(context.Background())

	// A day later the window slides by one.
	c.now = func() time.Time { return fixedNow.AddDate(0, 0, 1) }
	c.tick(context.Background())

	stats := c.Stats()
	if stats.Frames != 7 {
		t.Errorf("frames = %d, want 7", stats.Frames)
	}
	if want := Day(fixedNow).AddDate(0, 0, 6); !stats.NewestDay.Equal(want) {
		t.Errorf("newest = %v, want %v", stats.NewestDay, want)
	}
}

func TestFrameComputesOnMiss(t *testing.T) {
	store := testStore()
	c := newTestCache(store)
	ctx := context.Background()

	set, err := c.Frame(ctx, fixedNow.AddDate(0, 0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if set == nil || len(set.Samples) != 9 {
		t.Fatalf("unexpected frame %+v", set)
	}
	if c.Get(fixedNow.AddDate(0, 0, 2)) == nil {
		t.Error("in-window frame was not stored")
	}

	if _, err := c.Frame(ctx, fixedNow.AddDate(1, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if c.Stats().Frames != 1 {
		t.Error("out-of-window frame was stored")
	}
}

// TestFrameAfterReload verifies a published snapshot is served before the
// next maintenance tick rebuilds the window.
func TestFrameAfterReload(t *testing.T) {
	store := testStore()
	c := newTestCache(store)
	ctx := context.Background()

	before, err := c.Frame(ctx, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	earthBefore, _ := before.Lookup("Earth")

	doubled := elements.DefaultDataset()
	for i := range doubled.Keplerian.Bodies {
		doubled.Keplerian.Bodies[i].SemiMajorAxis *= 2
	}
	store.Set(doubled)

	if c.Get(fixedNow) != nil {
		t.Error("frame from the replaced snapshot was served")
	}
	after, err := c.Frame(ctx, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	earthAfter, _ := after.Lookup("Earth")
	if math.Abs(earthAfter.X-2*earthBefore.X) > 1e-9 {
		t.Errorf("Earth X after reload = %v, want %v", earthAfter.X, 2*earthBefore.X)
	}
	if got := c.Get(fixedNow); got != after {
		t.Error("recomputed frame was not stored")
	}
}

func TestRange(t *testing.T) {
	store := testStore()
	c := newTestCache(store)

	sets, err := c.Range(context.Background(), fixedNow, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 4 {
		t.Fatalf("got %d frames, want 4", len(sets))
	}
	for i, s := range sets {
		if want := Day(fixedNow).AddDate(0, 0, i); !s.Date.Equal(want) {
			t.Errorf("frame %d date = %v, want %v", i, s.Date, want)
		}
	}
}

func TestStartStops(t *testing.T) {
	store := testStore()
	c := newTestCache(store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for c.Stats().Frames == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if c.Stats().Frames == 0 {
		t.Error("cache never warmed up")
	}
}

func TestWaitForDataCancelled(t *testing.T) {
	store := elements.NewStore()
	c := newTestCache(store)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c.Start(ctx)

	if c.Stats().Frames != 0 {
		t.Error("cache filled without data")
	}
}

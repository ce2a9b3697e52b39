package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
)

// frameJob is a unit of work for the worker pool: one date of a timeline.
type frameJob struct {
	index int
	date  time.Time
}

// frameResult is the output of a single date computation.
type frameResult struct {
	index int
	set   *PositionSet
	err   error
}

// WorkerPool manages a fixed number of goroutines computing independent
// position sets in parallel.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// ComputeBatch computes one position set per date against the same dataset
// snapshot. Results come back in date order. The first failure cancels the
// remaining work and is returned alone.
func (wp *WorkerPool) ComputeBatch(ctx context.Context, cfg Config, ds *elements.Dataset, dates []time.Time) ([]*PositionSet, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan frameJob, wp.workers*2)
	results := make(chan frameResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				set, err := ComputeAt(cfg, ds, job.date)
				select {
				case results <- frameResult{index: job.index, set: set, err: err}:
				case <-runCtx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, d := range dates {
			select {
			case jobs <- frameJob{index: i, date: d}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	sets := make([]*PositionSet, len(dates))
	var firstErr error
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
				wp.logger.Warn("timeline frame failed",
					"date", dates[result.index].Format(DateLayout),
					"error", result.err,
				)
				cancel()
			}
			continue
		}
		sets[result.index] = result.set
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sets, nil
}

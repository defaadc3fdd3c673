// Package workpool runs independent jobs on a fixed number of goroutines.
//
// Jobs never share mutable state: every result travels back over a single
// channel and is stored by the collector, which keeps the output in input
// order regardless of which worker finished first.
package workpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Job is one unit of work handed to a worker.
type Job[T any] struct {
	Index int
	Item  T
}

type result[R any] struct {
	index int
	value R
}

// Stats reports how a Map call went.
type Stats struct {
	Workers   int
	Submitted int64
	Processed int64
}

// Workers returns n, or the number of CPUs when n <= 0.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Map applies fn to every item using the given number of workers
// (0 = one per CPU) and returns the results in input order. When ctx is
// cancelled no new jobs are handed out; Map waits for running jobs and
// returns ctx.Err() alongside whatever results were collected.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) R) ([]R, Stats, error) {
	numWorkers := Workers(workers)
	if numWorkers > len(items) && len(items) > 0 {
		numWorkers = len(items)
	}
	stats := Stats{Workers: numWorkers}
	out := make([]R, len(items))
	if len(items) == 0 {
		return out, stats, ctx.Err()
	}

	jobs := make(chan Job[T], numWorkers*2)
	results := make(chan result[R], numWorkers*2)

	var processed int64
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				v := fn(ctx, job.Item)
				atomic.AddInt64(&processed, 1)
				results <- result[R]{index: job.Index, value: v}
			}
		}()
	}

	// Feed jobs until done or cancelled
	var submitted int64
	go func() {
		defer close(jobs)
		for i, item := range items {
			select {
			case <-ctx.Done():
				return
			case jobs <- Job[T]{Index: i, Item: item}:
				atomic.AddInt64(&submitted, 1)
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		out[r.index] = r.value
	}

	stats.Submitted = atomic.LoadInt64(&submitted)
	stats.Processed = atomic.LoadInt64(&processed)
	return out, stats, ctx.Err()
}

// Package parallel provides small helpers for data-parallel passes over
// pixel rows and Gaussian records.
//
// The render and gradient passes are embarrassingly parallel: each task
// writes to a disjoint region (row bands for rendering, per-record gradient
// slots for the backward pass), so no synchronization beyond the final join
// is needed.
package parallel

import (
	"runtime"
	"sync"
)

// Workers normalizes a worker-count setting: values <= 0 mean GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// ForRange splits [0, n) into at most workers contiguous chunks and invokes
// fn(start, end) for each chunk on its own goroutine, then waits for all of
// them. fn must only write to state owned by its chunk.
//
// Small inputs run inline: parallel dispatch for a handful of rows costs
// more than it saves.
func ForRange(workers, n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers = Workers(workers)
	if workers > n {
		workers = n
	}
	if workers == 1 || n < 2*workers {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

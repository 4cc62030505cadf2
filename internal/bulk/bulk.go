// Package bulk runs one function over many items with a bounded worker
// pool.
package bulk

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
)

// Operation represents a bulk operation configuration
type Operation struct {
	// Jobs bounds concurrency. 0 uses runtime.NumCPU(); 1 runs in order.
	Jobs int
}

// Result represents the result of a bulk operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Errors     []ItemError // in item order
}

// ItemError represents an error for a specific item
type ItemError struct {
	Index int
	Item  string
	Error error
}

// ItemFunc is the function to execute for each item. i is the item's index
// in the input, so callers can store per-item results without locking.
type ItemFunc func(ctx context.Context, i int, item string) error

// Execute runs fn on every item. A failing item never stops the others;
// fn is expected to observe ctx itself.
func (op Operation) Execute(ctx context.Context, items []string, fn ItemFunc) *Result {
	result := &Result{TotalItems: len(items)}
	if len(items) == 0 {
		return result
	}

	jobs := op.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	jobs = min(jobs, len(items))

	if jobs == 1 {
		for i, item := range items {
			result.record(i, item, fn(ctx, i, item))
		}
		return result
	}
	return op.executeParallel(ctx, items, fn, jobs)
}

func (r *Result) record(i int, item string, err error) {
	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, ItemError{Index: i, Item: item, Error: err})
		return
	}
	r.Succeeded++
}

// executeParallel processes items in parallel using a worker pool
func (op Operation) executeParallel(ctx context.Context, items []string, fn ItemFunc, workers int) *Result {
	result := &Result{TotalItems: len(items)}

	work := make(chan int, len(items))
	for i := range items {
		work <- i
	}
	close(work)

	var (
		succeeded int32
		errorsMux sync.Mutex
		wg        sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if err := fn(ctx, i, items[i]); err != nil {
					errorsMux.Lock()
					result.Errors = append(result.Errors, ItemError{Index: i, Item: items[i], Error: err})
					errorsMux.Unlock()
					continue
				}
				atomic.AddInt32(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	sort.Slice(result.Errors, func(a, b int) bool { return result.Errors[a].Index < result.Errors[b].Index })
	result.Succeeded = int(succeeded)
	result.Failed = len(result.Errors)
	return result
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs the partitions of a kernel window in parallel goroutines,
// with a soft limit on the number of goroutines running at the same time.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool of workers shared by the kernels of one backend.
type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Signaled whenever numRunning is decreased.
	numRunning     int
}

// New return a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{}
	w.maxParallelism = runtime.NumCPU()
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// MaxParallelism is a soft-target for parallelism.
// If set to 0 parallelism is disabled and everything runs inline.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// It should only be changed before any workers start running.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with w.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// lockedRunTaskInGoroutine and keep tabs on w.numRunning.
//
// It must be called with w.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}

// WaitToStart waits until there is a worker available to run the task.
//
// If parallelism is disabled, it runs the task inline and returns when it is finished.
func (w *Pool) WaitToStart(task func()) {
	if w.maxParallelism < 0 {
		go task()
		return
	} else if w.maxParallelism == 0 {
		task()
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.lockedRunTaskInGoroutine(task)
}

// StartIfAvailable runs the task in a separate goroutine, if there are enough workers left.
// It returns true if it found a worker to run the function, false otherwise.
func (w *Pool) StartIfAvailable(task func()) bool {
	if w.maxParallelism < 0 {
		go task()
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lockedIsFull() {
		return false
	}
	w.lockedRunTaskInGoroutine(task)
	return true
}

// Partition splits [0, size) in at most numParts contiguous ranges of (almost) equal length.
// It returns the boundaries: range i is [bounds[i], bounds[i+1]).
func Partition(size, numParts int) []int {
	if size <= 0 {
		return []int{0, 0}
	}
	numParts = max(min(numParts, size), 1)
	bounds := make([]int, numParts+1)
	for ii := range numParts + 1 {
		bounds[ii] = ii * size / numParts
	}
	return bounds
}

// ParallelFor calls fn for each of at most numParts ranges of [0, size), and waits for all of them.
//
// Ranges that find no free worker run in the calling goroutine. It returns the error of the
// lowest-numbered range that failed.
func (w *Pool) ParallelFor(size, numParts int, fn func(begin, end int) error) error {
	bounds := Partition(size, numParts)
	numRanges := len(bounds) - 1
	errs := make([]error, numRanges)
	var wg sync.WaitGroup
	for ii := range numRanges {
		begin, end := bounds[ii], bounds[ii+1]
		task := func() {
			errs[ii] = fn(begin, end)
		}
		if ii == numRanges-1 {
			task()
			break
		}
		wg.Add(1)
		started := w.StartIfAvailable(func() {
			defer wg.Done()
			task()
		})
		if !started {
			wg.Done()
			task()
		}
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

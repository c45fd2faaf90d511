// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cpu

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/internal/workerspool"
	"github.com/gomlx/nngraph/pkg/core/graph"
)

// minWindowPerThread is the smallest part of a window run in its own goroutine.
const minWindowPerThread = 1

// Dispatcher runs kernel calls in the calling goroutine, splitting their window in up to
// NumThreads parts run in parallel by the worker pool.
type Dispatcher struct {
	pool       *workerspool.Pool
	numThreads int
}

// NewDispatcher creates a dispatcher running at most numThreads parts of each kernel call.
func NewDispatcher(numThreads int) *Dispatcher {
	numThreads = max(numThreads, 1)
	pool := workerspool.New()
	pool.SetMaxParallelism(numThreads - 1)
	return &Dispatcher{pool: pool, numThreads: numThreads}
}

// NumThreads returns the maximum number of parts a kernel window is split into.
func (d *Dispatcher) NumThreads() int { return d.numThreads }

// Dispatch implements backends.Dispatcher.
func (d *Dispatcher) Dispatch(call *backends.KernelCall) error {
	kernel := backends.LookupKernel(graph.TargetCPU, call.Name)
	if kernel == nil || d.numThreads == 1 || call.Window.Len() <= minWindowPerThread {
		return backends.RunKernel(graph.TargetCPU, call)
	}
	numParts := min(d.numThreads, call.Window.Len()/minWindowPerThread)
	return d.pool.ParallelFor(call.Window.Len(), numParts, func(begin, end int) error {
		part := *call
		part.Window = backends.Window{Begin: call.Window.Begin + begin, End: call.Window.Begin + end}
		return backends.RunKernel(graph.TargetCPU, &part)
	})
}

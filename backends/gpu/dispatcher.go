// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gpu

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
)

// Dispatcher enqueues kernel calls on the device queue. Dispatch returns once the call is
// enqueued: kernel errors are reported by Queue.Finish.
type Dispatcher struct {
	queue *Queue
}

var _ backends.Dispatcher = (*Dispatcher)(nil)

// Dispatch implements backends.Dispatcher.
func (d *Dispatcher) Dispatch(call *backends.KernelCall) error {
	enqueued := *call
	return d.queue.Enqueue(call.Name, func() error {
		return backends.RunKernel(graph.TargetGPU, &enqueued)
	})
}

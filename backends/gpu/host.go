// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gpu

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/backends/functions"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
)

// HostWrapperFunction runs a host function over device tensors: it maps the registered
// tensors (waiting for the queue), runs the function and unmaps them.
type HostWrapperFunction struct {
	function backends.Function
	tensors  []*Tensor
}

var _ backends.Function = (*HostWrapperFunction)(nil)

// NewHostWrapperFunction wraps function. Absent (nil) tensors are ignored.
func NewHostWrapperFunction(function backends.Function, tensors ...*Tensor) *HostWrapperFunction {
	w := &HostWrapperFunction{function: function}
	for _, t := range tensors {
		w.RegisterTensor(t)
	}
	return w
}

// RegisterTensor adds a tensor to be mapped around each Run. Registering it twice is a no-op.
func (w *HostWrapperFunction) RegisterTensor(t *Tensor) {
	if t == nil {
		return
	}
	for _, registered := range w.tensors {
		if registered == t {
			return
		}
	}
	w.tensors = append(w.tensors, t)
}

// Tensors registered to be mapped.
func (w *HostWrapperFunction) Tensors() []*Tensor { return w.tensors }

// Run implements backends.Function.
func (w *HostWrapperFunction) Run() error {
	var mapped []*Tensor
	defer func() {
		for _, t := range mapped {
			t.Unmap()
		}
	}()
	for _, t := range w.tensors {
		if err := t.Map(true); err != nil {
			return errors.WithMessage(err, "host function")
		}
		mapped = append(mapped, t)
	}
	return w.function.Run()
}

// hostInfo is the lowering.TargetInfo of functions run on the host over device tensors.
type hostInfo struct {
	device *targetInfo
}

func (i *hostInfo) Target() graph.Target            { return graph.TargetCPU }
func (i *hostInfo) Dispatcher() backends.Dispatcher { return backends.SerialDispatcher{Target: graph.TargetCPU} }
func (i *hostInfo) Allocator() graph.Allocator      { return i.device.Allocator() }

func (i *hostInfo) Workspace() functions.WorkspaceFactory[*Tensor] { return i.device.Workspace() }

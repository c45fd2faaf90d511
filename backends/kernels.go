// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"
	"sync"

	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Window is the range [Begin, End) of the outermost dimension of a kernel's output a call
// covers. Dispatchers split a window to run the parts in parallel.
type Window struct {
	Begin, End int
}

// Len of the window.
func (w Window) Len() int { return w.End - w.Begin }

func (w Window) String() string { return fmt.Sprintf("[%d, %d)", w.Begin, w.End) }

// KernelCall is one invocation of a numeric kernel by a function.
type KernelCall struct {
	// Name of the kernel, e.g. "Convolution/GEMM".
	Name string

	// Op is the node type the calling function implements.
	Op graph.NodeType

	Inputs, Outputs []Tensor

	// Params are the operator parameters, specific to each kernel (e.g. graph.PadStrideInfo).
	Params any

	// Window of the output covered by this call.
	Window Window
}

func (c *KernelCall) String() string {
	return fmt.Sprintf("%s(%s, %d inputs, %d outputs, window=%s)", c.Name, c.Op, len(c.Inputs), len(c.Outputs), c.Window)
}

// Kernel implements the numeric computation of a KernelCall.
type Kernel func(call *KernelCall) error

// Dispatcher runs kernel calls, synchronously or by enqueuing them on a device.
type Dispatcher interface {
	Dispatch(call *KernelCall) error
}

type kernelKey struct {
	target graph.Target
	name   string
}

var (
	muKernels sync.RWMutex
	kernels   = make(map[kernelKey]Kernel)
)

// RegisterKernel registers the kernel with the given name for target, replacing any previous one.
func RegisterKernel(target graph.Target, name string, kernel Kernel) {
	muKernels.Lock()
	defer muKernels.Unlock()
	kernels[kernelKey{target, name}] = kernel
}

// LookupKernel returns the kernel registered under name for target, or nil.
func LookupKernel(target graph.Target, name string) Kernel {
	muKernels.RLock()
	defer muKernels.RUnlock()
	return kernels[kernelKey{target, name}]
}

// RunKernel runs the kernel registered for the call on target.
// Calls without a registered kernel are logged and ignored.
func RunKernel(target graph.Target, call *KernelCall) error {
	kernel := LookupKernel(target, call.Name)
	if kernel == nil {
		if klog.V(2).Enabled() {
			klog.Infof("no %s kernel registered for %s, skipping", target, call)
		}
		return nil
	}
	if err := kernel(call); err != nil {
		return errors.WithMessagef(err, "kernel %s on %s", call, target)
	}
	return nil
}

// SerialDispatcher runs the whole window of each call inline, with the kernels of Target.
type SerialDispatcher struct {
	Target graph.Target
}

// Dispatch implements Dispatcher.
func (d SerialDispatcher) Dispatch(call *KernelCall) error {
	return RunKernel(d.Target, call)
}

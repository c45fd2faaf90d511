// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gpu implements the accelerator backend (TargetGPU) over a simulated device: kernel
// calls are enqueued on an in-order asynchronous queue and device tensors are only
// accessible from the host while mapped.
//
// Functions without a device implementation (DetectionOutput) run on the host, wrapped by a
// HostWrapperFunction that maps their tensors around each run.
//
// It registers itself in the backends registry on import.
package gpu

import (
	"sync"

	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/backends/cpu"
	"github.com/gomlx/nngraph/backends/functions"
	"github.com/gomlx/nngraph/backends/lowering"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName of the GPU backend.
const BackendName = "gpu"

func init() {
	backends.Register(graph.TargetGPU, New)
}

// Backend implements backends.Backend for the device.
type Backend struct {
	mu           sync.Mutex
	allocator    *backends.HostAllocator
	queue        *Queue
	tuner        *Tuner
	capabilities backends.Capabilities
	workspaces   []*Tensor
	finalized    bool
}

var _ backends.Backend = (*Backend)(nil)

// New returns a new, uninitialized, GPU backend.
func New() backends.Backend {
	return &Backend{capabilities: cpu.Capabilities.Clone()}
}

func (b *Backend) Name() string                        { return BackendName }
func (b *Backend) Target() graph.Target                { return graph.TargetGPU }
func (b *Backend) IsSupported() bool                   { return true }
func (b *Backend) Capabilities() backends.Capabilities { return b.capabilities }

// Initialize creates the device queue and memory pool.
func (b *Backend) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocator = backends.NewHostAllocator()
	b.queue = NewQueue()
	b.finalized = false
	return nil
}

// Queue of the device.
func (b *Backend) Queue() *Queue { return b.queue }

// Tuner returns the kernel tuner, if enabled by the context configuration.
func (b *Backend) Tuner() *Tuner {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tuner
}

// SetupContext loads the tuner, if enabled, and registers the device memory manager.
func (b *Backend) SetupContext(ctx *graph.Context) {
	cfg := ctx.Config()
	b.mu.Lock()
	defer b.mu.Unlock()
	if cfg.UseTuner && b.tuner == nil {
		tuner, err := LoadTuner(cfg.TunerFile)
		if err != nil {
			klog.Warningf("gpu backend: tuning disabled: %+v", err)
		} else {
			b.tuner = tuner
			b.queue.SetObserver(tuner.Observe)
		}
	}
	ctx.InsertMemoryManagerContext(&graph.MemoryManagerContext{Target: graph.TargetGPU, Allocator: b.allocator})
}

// CreateTensor implements backends.Backend.
func (b *Backend) CreateTensor(tensor *graph.Tensor) (graph.TensorHandle, error) {
	desc := tensor.Desc()
	if !desc.Ok() {
		return nil, errors.Errorf("gpu backend: cannot create tensor #%d with unresolved descriptor %s", tensor.ID(), desc)
	}
	return &Handle{tensor: newTensor(desc, b.queue), allocator: b.allocator}, nil
}

// CreateSubTensor implements backends.Backend.
func (b *Backend) CreateSubTensor(parent graph.TensorHandle, shape shapes.Shape, coords []int, extendParent bool) (graph.TensorHandle, error) {
	handle, ok := parent.(*Handle)
	if !ok {
		return nil, errors.Errorf("gpu backend: cannot create a sub-tensor of a %T handle", parent)
	}
	sub, err := subTensor(handle, shape, coords, extendParent)
	if err != nil {
		return nil, errors.WithMessage(err, "gpu backend")
	}
	return sub, nil
}

// ConfigureNode implements backends.Backend.
func (b *Backend) ConfigureNode(node graph.Node, ctx *graph.Context) (backends.Function, error) {
	return createFunction(node, &targetInfo{backend: b, ctx: ctx})
}

// ValidateNode implements backends.Backend.
func (b *Backend) ValidateNode(node graph.Node) error {
	if err := lowering.ValidateNodeSupport(b.capabilities, node); err != nil {
		return errors.WithMessage(err, "gpu backend")
	}
	if conv, ok := node.(*graph.ConvolutionNode); ok {
		return lowering.ValidateConvolutionMethod(conv)
	}
	return nil
}

// Sync waits for all enqueued kernels and returns their first error.
func (b *Backend) Sync() error {
	if err := b.queue.Finish(); err != nil {
		return errors.WithMessage(err, "gpu backend")
	}
	return nil
}

// Finalize drains the queue, saves the tuner and releases the device memory.
func (b *Backend) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	if err := b.queue.Close(); err != nil {
		klog.Warningf("gpu backend: pending kernel failed: %+v", err)
	}
	if b.tuner != nil {
		if err := b.tuner.Save(); err != nil {
			klog.Warningf("gpu backend: %+v", err)
		}
		b.tuner = nil
	}
	for _, ws := range b.workspaces {
		b.allocator.Free(ws.storage.data)
		ws.storage.data = nil
	}
	b.workspaces = nil
	b.allocator.Release()
	b.finalized = true
}

func (b *Backend) newWorkspace(ctx *graph.Context, desc graph.TensorDescriptor) (*Tensor, error) {
	t := newTensor(desc, b.queue)
	data, err := b.allocator.Allocate(desc.Shape.Memory())
	if err != nil {
		return nil, err
	}
	t.storage.data = data
	b.mu.Lock()
	b.workspaces = append(b.workspaces, t)
	b.mu.Unlock()
	if ctx != nil && ctx.Config().UseFunctionMemoryManager {
		if mm := ctx.MemoryManagerContext(graph.TargetGPU); mm != nil {
			mm.CrossGroupSize += len(data)
		}
	}
	return t, nil
}

// targetInfo implements lowering.TargetInfo for the device.
type targetInfo struct {
	backend *Backend
	ctx     *graph.Context
}

func (i *targetInfo) Target() graph.Target            { return graph.TargetGPU }
func (i *targetInfo) Dispatcher() backends.Dispatcher { return &Dispatcher{queue: i.backend.queue} }
func (i *targetInfo) Allocator() graph.Allocator      { return i.backend.allocator }

func (i *targetInfo) Workspace() functions.WorkspaceFactory[*Tensor] {
	return func(desc graph.TensorDescriptor) (*Tensor, error) {
		return i.backend.newWorkspace(i.ctx, desc)
	}
}

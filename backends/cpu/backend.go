// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package cpu implements the host backend (TargetCPU): host tensors with strided sub-tensors,
// a pooled allocator and a dispatcher that splits each kernel call across NumThreads goroutines.
//
// It registers itself in the backends registry on import.
package cpu

import (
	"runtime"
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/backends/functions"
	"github.com/gomlx/nngraph/backends/lowering"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName of the CPU backend.
const BackendName = "cpu"

func init() {
	backends.Register(graph.TargetCPU, New)
}

// Backend implements backends.Backend for the host.
type Backend struct {
	mu           sync.Mutex
	allocator    *backends.HostAllocator
	dispatcher   *Dispatcher
	capabilities backends.Capabilities
	workspaces   []*Tensor
	finalized    bool
}

var _ backends.Backend = (*Backend)(nil)

// New returns a new, uninitialized, CPU backend.
func New() backends.Backend {
	return &Backend{capabilities: Capabilities.Clone()}
}

// Capabilities of the CPU backend.
var Capabilities = backends.MakeCapabilities(
	[]graph.NodeType{
		graph.NodeTypeInput, graph.NodeTypeOutput, graph.NodeTypeConst,
		graph.NodeTypeActivation, graph.NodeTypeBatchNormalization, graph.NodeTypeConcatenate,
		graph.NodeTypeConvolution, graph.NodeTypeDepthwiseConvolution, graph.NodeTypeFusedConvolutionBatchNormalization,
		graph.NodeTypeEltwise, graph.NodeTypeFullyConnected, graph.NodeTypePooling, graph.NodeTypeSoftmax,
		graph.NodeTypeFlatten, graph.NodeTypeReshape, graph.NodeTypeSplit, graph.NodeTypePrint,
		graph.NodeTypeQuantization, graph.NodeTypePriorBox, graph.NodeTypeDetectionOutput,
	},
	[]dtypes.DType{dtypes.Float32, dtypes.Float16, dtypes.Uint8, dtypes.Int8, dtypes.Int32},
)

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// Target implements backends.Backend.
func (b *Backend) Target() graph.Target { return graph.TargetCPU }

// Initialize implements backends.Backend.
func (b *Backend) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocator = backends.NewHostAllocator()
	b.dispatcher = NewDispatcher(runtime.NumCPU())
	b.finalized = false
	return nil
}

// IsSupported implements backends.Backend. The host is always available.
func (b *Backend) IsSupported() bool { return true }

// SetupContext sets the number of threads from the context configuration and registers the
// host memory manager.
func (b *Backend) SetupContext(ctx *graph.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if threads := ctx.Config().Threads(); threads != b.dispatcher.NumThreads() {
		b.dispatcher = NewDispatcher(threads)
		klog.V(1).Infof("cpu backend: using %d threads", threads)
	}
	ctx.InsertMemoryManagerContext(&graph.MemoryManagerContext{Target: graph.TargetCPU, Allocator: b.allocator})
}

// Capabilities implements backends.Backend.
func (b *Backend) Capabilities() backends.Capabilities { return b.capabilities }

// Dispatcher used by the functions of the backend.
func (b *Backend) Dispatcher() *Dispatcher {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dispatcher
}

// Allocator of the backend.
func (b *Backend) Allocator() *backends.HostAllocator { return b.allocator }

// CreateTensor implements backends.Backend.
func (b *Backend) CreateTensor(tensor *graph.Tensor) (graph.TensorHandle, error) {
	desc := tensor.Desc()
	if !desc.Ok() {
		return nil, errors.Errorf("cpu backend: cannot create tensor #%d with unresolved descriptor %s", tensor.ID(), desc)
	}
	return &Handle{tensor: newTensor(desc), allocator: b.allocator}, nil
}

// CreateSubTensor implements backends.Backend.
func (b *Backend) CreateSubTensor(parent graph.TensorHandle, shape shapes.Shape, coords []int, extendParent bool) (graph.TensorHandle, error) {
	handle, ok := parent.(*Handle)
	if !ok {
		return nil, errors.Errorf("cpu backend: cannot create a sub-tensor of a %T handle", parent)
	}
	sub, err := subTensor(handle, shape, coords, extendParent)
	if err != nil {
		return nil, errors.WithMessage(err, "cpu backend")
	}
	return sub, nil
}

// ConfigureNode implements backends.Backend.
func (b *Backend) ConfigureNode(node graph.Node, ctx *graph.Context) (backends.Function, error) {
	info := &targetInfo{backend: b, ctx: ctx}
	return createFunction(node, info)
}

// ValidateNode implements backends.Backend.
func (b *Backend) ValidateNode(node graph.Node) error {
	if err := lowering.ValidateNodeSupport(b.capabilities, node); err != nil {
		return errors.WithMessage(err, "cpu backend")
	}
	if conv, ok := node.(*graph.ConvolutionNode); ok {
		return lowering.ValidateConvolutionMethod(conv)
	}
	return nil
}

// Sync implements backends.Backend. Kernels run synchronously, so there is nothing to wait for.
func (b *Backend) Sync() error { return nil }

// Finalize releases the workspaces and the pooled memory.
func (b *Backend) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	for _, ws := range b.workspaces {
		b.allocator.Free(ws.storage.data)
		ws.storage.data = nil
	}
	b.workspaces = nil
	b.allocator.Release()
	b.finalized = true
}

// newWorkspace creates an allocated tensor owned by the backend.
func (b *Backend) newWorkspace(ctx *graph.Context, desc graph.TensorDescriptor) (*Tensor, error) {
	t := newTensor(desc)
	data, err := b.allocator.Allocate(desc.Shape.Memory())
	if err != nil {
		return nil, err
	}
	t.storage.data = data
	b.mu.Lock()
	b.workspaces = append(b.workspaces, t)
	b.mu.Unlock()
	if ctx != nil && ctx.Config().UseFunctionMemoryManager {
		if mm := ctx.MemoryManagerContext(graph.TargetCPU); mm != nil {
			mm.CrossGroupSize += len(data)
		}
	}
	return t, nil
}

// targetInfo implements lowering.TargetInfo for the CPU backend.
type targetInfo struct {
	backend *Backend
	ctx     *graph.Context
}

func (i *targetInfo) Target() graph.Target            { return graph.TargetCPU }
func (i *targetInfo) Dispatcher() backends.Dispatcher { return i.backend.Dispatcher() }
func (i *targetInfo) Allocator() graph.Allocator      { return i.backend.allocator }

func (i *targetInfo) Workspace() functions.WorkspaceFactory[*Tensor] {
	return func(desc graph.TensorDescriptor) (*Tensor, error) {
		return i.backend.newWorkspace(i.ctx, desc)
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gpu

import (
	"fmt"

	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// storage is the device memory shared by a tensor and its sub-tensors.
type storage struct {
	data     []byte
	mapCount int
}

// Tensor is a device tensor. Its memory is only accessible from the host (with Bytes) while
// mapped: kernels running on the queue use DeviceBytes.
type Tensor struct {
	desc    graph.TensorDescriptor
	storage *storage
	queue   *Queue
	offset  int
	strides []int
	unused  bool
}

func newTensor(desc graph.TensorDescriptor, queue *Queue) *Tensor {
	return &Tensor{desc: desc, storage: &storage{}, queue: queue, strides: desc.Shape.Strides()}
}

// Desc implements graph.BackendTensor.
func (t *Tensor) Desc() graph.TensorDescriptor { return t.desc }

// DeviceBytes returns the device memory spanned by the tensor, or nil if not allocated.
func (t *Tensor) DeviceBytes() []byte {
	if t.storage.data == nil {
		return nil
	}
	elemSize := t.desc.DType().Size()
	begin := t.offset * elemSize
	end := begin + backends.ViewExtent(t.desc.Shape, t.strides)*elemSize
	return t.storage.data[begin:end:end]
}

// Bytes returns the memory of the tensor if it is mapped, nil otherwise.
func (t *Tensor) Bytes() []byte {
	if t.storage.mapCount == 0 {
		return nil
	}
	return t.DeviceBytes()
}

// IsMapped returns whether the tensor memory is accessible from the host.
func (t *Tensor) IsMapped() bool { return t.storage.mapCount > 0 }

// Map makes the memory accessible from the host. If blocking, it first waits for all the
// enqueued kernels to finish.
func (t *Tensor) Map(blocking bool) error {
	if blocking {
		if err := t.queue.Finish(); err != nil {
			return errors.WithMessagef(err, "mapping %s", t)
		}
	}
	t.storage.mapCount++
	return nil
}

// Unmap releases one Map.
func (t *Tensor) Unmap() {
	if t.storage.mapCount > 0 {
		t.storage.mapCount--
	}
}

// MarkAsUnused implements backends.Tensor.
func (t *Tensor) MarkAsUnused() { t.unused = true }

// IsUsed implements backends.Tensor.
func (t *Tensor) IsUsed() bool { return !t.unused }

func (t *Tensor) String() string {
	return fmt.Sprintf("gpu.Tensor(%s, offset=%d)", t.desc, t.offset)
}

// Handle is the graph.TensorHandle of the GPU backend.
type Handle struct {
	tensor    *Tensor
	allocator graph.Allocator
	parent    *Handle
}

var _ graph.TensorHandle = (*Handle)(nil)

// Allocate reserves the device memory of a root tensor.
func (h *Handle) Allocate() error {
	if h.parent != nil || h.tensor.storage.data != nil {
		return nil
	}
	data, err := h.allocator.Allocate(h.tensor.desc.Shape.Memory())
	if err != nil {
		return errors.WithMessagef(err, "allocating %s", h.tensor)
	}
	h.tensor.storage.data = data
	return nil
}

// Free releases the device memory of a root tensor, after pending kernels finished.
func (h *Handle) Free() {
	if h.parent != nil || h.tensor.storage.data == nil {
		return
	}
	_ = h.tensor.queue.Finish()
	h.allocator.Free(h.tensor.storage.data)
	h.tensor.storage.data = nil
}

func (h *Handle) Map(blocking bool) error     { return h.tensor.Map(blocking) }
func (h *Handle) Unmap()                      { h.tensor.Unmap() }
func (h *Handle) Tensor() graph.BackendTensor { return h.tensor }
func (h *Handle) IsSubTensor() bool           { return h.parent != nil }
func (h *Handle) Target() graph.Target        { return graph.TargetGPU }

// ReleaseIfUnused frees the memory of a root tensor marked as unused.
func (h *Handle) ReleaseIfUnused() {
	if !h.tensor.IsUsed() {
		h.Free()
	}
}

// Parent returns the handle of the root tensor, or h itself.
func (h *Handle) Parent() graph.TensorHandle {
	if h.parent == nil {
		return h
	}
	return h.parent.Parent()
}

func subTensor(parent *Handle, shape shapes.Shape, coords []int, extendParent bool) (*Handle, error) {
	pt := parent.tensor
	if extendParent {
		extended := backends.ExtendShape(pt.desc.Shape, shape, coords)
		if !extended.Equal(pt.desc.Shape) {
			if parent.parent != nil || pt.storage.data != nil {
				return nil, errors.Errorf("cannot extend %s to %s: it is allocated or a sub-tensor", pt, extended)
			}
			pt.desc.Shape = extended
			pt.strides = extended.Strides()
		}
	}
	if _, err := backends.SubTensorOffset(pt.desc.Shape, shape, coords); err != nil {
		return nil, err
	}
	offset := pt.offset
	for axis, coord := range coords {
		offset += coord * pt.strides[axis]
	}
	desc := pt.desc.Clone()
	desc.Shape = shapes.Make(pt.desc.DType(), shape.Dimensions...)
	t := &Tensor{desc: desc, storage: pt.storage, queue: pt.queue, offset: offset, strides: pt.strides}
	return &Handle{tensor: t, allocator: parent.allocator, parent: parent}, nil
}

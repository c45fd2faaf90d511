// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cpu

import (
	"fmt"

	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// storage is the memory shared by a tensor and all its sub-tensors.
type storage struct {
	data []byte
}

// Tensor is the host tensor of the CPU backend. Sub-tensors are strided views over the
// storage of their root tensor.
type Tensor struct {
	desc    graph.TensorDescriptor
	storage *storage

	// offset of the first element and strides, in number of elements, in the root storage.
	offset  int
	strides []int
	unused  bool
}

func newTensor(desc graph.TensorDescriptor) *Tensor {
	return &Tensor{desc: desc, storage: &storage{}, strides: desc.Shape.Strides()}
}

// Desc implements graph.BackendTensor.
func (t *Tensor) Desc() graph.TensorDescriptor { return t.desc }

// Bytes returns the memory spanned by the tensor, from its first to its last element, or nil
// if not allocated. For non-contiguous sub-tensors, use Strides to address elements.
func (t *Tensor) Bytes() []byte {
	if t.storage.data == nil {
		return nil
	}
	elemSize := t.desc.DType().Size()
	begin := t.offset * elemSize
	end := begin + backends.ViewExtent(t.desc.Shape, t.strides)*elemSize
	return t.storage.data[begin:end:end]
}

// Offset of the first element in the storage of the root tensor, in number of elements.
func (t *Tensor) Offset() int { return t.offset }

// Strides of each axis, in number of elements.
func (t *Tensor) Strides() []int { return t.strides }

// IsContiguous returns whether the elements of the tensor are contiguous in memory.
func (t *Tensor) IsContiguous() bool { return backends.IsContiguous(t.desc.Shape, t.strides) }

// MarkAsUnused implements backends.Tensor.
func (t *Tensor) MarkAsUnused() { t.unused = true }

// IsUsed implements backends.Tensor.
func (t *Tensor) IsUsed() bool { return !t.unused }

func (t *Tensor) String() string {
	return fmt.Sprintf("cpu.Tensor(%s, offset=%d)", t.desc, t.offset)
}

// Handle is the graph.TensorHandle of the CPU backend.
type Handle struct {
	tensor    *Tensor
	allocator graph.Allocator
	parent    *Handle
}

var _ graph.TensorHandle = (*Handle)(nil)

// Allocate reserves the memory of a root tensor. Sub-tensors use the memory of their root.
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

// Free releases the memory of a root tensor.
func (h *Handle) Free() {
	if h.parent != nil || h.tensor.storage.data == nil {
		return
	}
	h.allocator.Free(h.tensor.storage.data)
	h.tensor.storage.data = nil
}

// Map is a no-op: host memory is always accessible.
func (h *Handle) Map(blocking bool) error { return nil }

// Unmap is a no-op.
func (h *Handle) Unmap() {}

// ReleaseIfUnused frees the memory of a root tensor marked as unused.
func (h *Handle) ReleaseIfUnused() {
	if !h.tensor.IsUsed() {
		h.Free()
	}
}

// Tensor implements graph.TensorHandle.
func (h *Handle) Tensor() graph.BackendTensor { return h.tensor }

// Parent returns the handle of the root tensor, or h itself if it is not a sub-tensor.
func (h *Handle) Parent() graph.TensorHandle {
	if h.parent == nil {
		return h
	}
	return h.parent.Parent()
}

// IsSubTensor implements graph.TensorHandle.
func (h *Handle) IsSubTensor() bool { return h.parent != nil }

// Target implements graph.TensorHandle.
func (h *Handle) Target() graph.Target { return graph.TargetCPU }

// subTensor creates a view of parent with the given shape at coords.
func subTensor(parent *Handle, shape shapes.Shape, coords []int, extendParent bool) (*Handle, error) {
	root := parent.Parent().(*Handle)
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
	t := &Tensor{desc: desc, storage: pt.storage, offset: offset, strides: pt.strides}
	return &Handle{tensor: t, allocator: root.allocator, parent: parent}, nil
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/nngraph/pkg/support/sets"
	"github.com/pkg/errors"
)

// BackendTensor is the backend-native tensor object bound to a graph Tensor.
type BackendTensor interface {
	// Desc returns the metadata the backend tensor was created with.
	Desc() TensorDescriptor

	// Bytes returns the tensor's contents. It is only valid while the owning handle is mapped,
	// and it returns nil if the memory is not allocated.
	//
	// For sub-tensors this returns the parent's storage starting at the sub-tensor's offset.
	Bytes() []byte
}

// TensorHandle is the backend handle of a graph Tensor.
type TensorHandle interface {
	// Allocate backing memory. Sub-tensors allocate nothing: they share the parent's memory.
	Allocate() error

	// Free backing memory.
	Free()

	// Map makes the memory accessible from the host. If blocking is true it first waits for
	// all pending device work touching the tensor.
	Map(blocking bool) error

	// Unmap releases the host mapping.
	Unmap()

	// ReleaseIfUnused frees the memory if the backend tensor was marked as unused.
	ReleaseIfUnused()

	// Tensor returns the backend-native tensor.
	Tensor() BackendTensor

	// Parent returns the handle owning the memory: itself if it is not a sub-tensor.
	Parent() TensorHandle

	// IsSubTensor returns whether the handle is a view into another handle's memory.
	IsSubTensor() bool

	// Target returns the backend target the handle lives on.
	Target() Target
}

// TensorAccessor binds external data to a tensor: it is called to fill inputs and constants
// and to consume outputs.
type TensorAccessor interface {
	// AccessTensor is called with the backend tensor. It returns false when there is no more
	// data to process.
	AccessTensor(tensor BackendTensor) bool

	// AccessTensorData returns whether the accessor reads or writes the tensor contents,
	// in which case the tensor is mapped before calling AccessTensor.
	AccessTensorData() bool
}

// Tensor is a tensor in the graph: a descriptor, the optional backend handle and accessor,
// and the set of edges it flows along.
//
// Tensors are owned by a Graph and created with Graph.CreateTensor or by Graph.AddNode.
type Tensor struct {
	id         TensorID
	desc       TensorDescriptor
	handle     TensorHandle
	accessor   TensorAccessor
	boundEdges sets.Set[EdgeID]
}

func newTensor(id TensorID, desc TensorDescriptor) *Tensor {
	return &Tensor{id: id, desc: desc, boundEdges: sets.Make[EdgeID]()}
}

// ID of the tensor.
func (t *Tensor) ID() TensorID { return t.id }

// Desc returns the tensor descriptor.
func (t *Tensor) Desc() TensorDescriptor { return t.desc }

// SetDesc replaces the tensor descriptor.
func (t *Tensor) SetDesc(desc TensorDescriptor) { t.desc = desc }

// Handle returns the backend handle, or nil if not configured yet.
func (t *Tensor) Handle() TensorHandle { return t.handle }

// SetHandle sets the backend handle.
func (t *Tensor) SetHandle(handle TensorHandle) { t.handle = handle }

// Accessor returns the accessor, or nil.
func (t *Tensor) Accessor() TensorAccessor { return t.accessor }

// SetAccessor sets the accessor.
func (t *Tensor) SetAccessor(accessor TensorAccessor) { t.accessor = accessor }

// ExtractAccessor returns the accessor and removes it from the tensor.
func (t *Tensor) ExtractAccessor() TensorAccessor {
	accessor := t.accessor
	t.accessor = nil
	return accessor
}

// CallAccessor calls the tensor's accessor on its backend tensor, mapping it first if the
// accessor needs the data.
//
// It returns false (and no error) if the tensor has no accessor or no handle.
func (t *Tensor) CallAccessor() (bool, error) {
	if t.accessor == nil || t.handle == nil {
		return false, nil
	}
	accessData := t.accessor.AccessTensorData()
	if accessData {
		if err := t.handle.Map(true); err != nil {
			return false, errors.WithMessagef(err, "mapping tensor #%d for its accessor", t.id)
		}
		if t.handle.Tensor().Bytes() == nil {
			t.handle.Unmap()
			return false, nil
		}
	}
	more := t.accessor.AccessTensor(t.handle.Tensor())
	if accessData {
		t.handle.Unmap()
	}
	return more, nil
}

// BoundEdges returns the ids of the edges this tensor flows along, in increasing order.
func (t *Tensor) BoundEdges() []EdgeID { return sets.Sorted(t.boundEdges) }

func (t *Tensor) bindEdge(eid EdgeID)   { t.boundEdges.Insert(eid) }
func (t *Tensor) unbindEdge(eid EdgeID) { t.boundEdges.Remove(eid) }

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor#%d%s", t.id, t.desc)
}

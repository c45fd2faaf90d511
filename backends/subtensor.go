// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"slices"

	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// SubTensorOffset validates that a sub-tensor of the given shape starting at coords fits in
// parent, and returns the offset, in number of elements, of its first element.
func SubTensorOffset(parent, shape shapes.Shape, coords []int) (int, error) {
	if parent.Rank() != shape.Rank() || len(coords) != shape.Rank() {
		return 0, errors.Errorf("sub-tensor %s at %v doesn't match the rank of parent %s", shape, coords, parent)
	}
	strides := parent.Strides()
	offset := 0
	for axis, coord := range coords {
		if coord < 0 || coord+shape.Dimensions[axis] > parent.Dimensions[axis] {
			return 0, errors.Errorf("sub-tensor %s at %v is out of the bounds of parent %s (axis %d)", shape, coords, parent, axis)
		}
		offset += coord * strides[axis]
	}
	return offset, nil
}

// ExtendShape returns parent grown, where needed, to contain a sub-tensor of the given shape at coords.
func ExtendShape(parent, shape shapes.Shape, coords []int) shapes.Shape {
	extended := parent.Clone()
	for axis := range min(len(coords), parent.Rank(), shape.Rank()) {
		extended.Dimensions[axis] = max(extended.Dimensions[axis], coords[axis]+shape.Dimensions[axis])
	}
	return extended
}

// ViewExtent returns the number of elements spanned by a view of shape over storage with the
// given strides, from its first to its last element.
func ViewExtent(shape shapes.Shape, strides []int) int {
	if shape.Size() == 0 {
		return 0
	}
	extent := 1
	for axis, dim := range shape.Dimensions {
		extent += (dim - 1) * strides[axis]
	}
	return extent
}

// IsContiguous returns whether a view of shape over storage with the given strides has no gaps.
func IsContiguous(shape shapes.Shape, strides []int) bool {
	return slices.Equal(shape.Strides(), strides) || ViewExtent(shape, strides) == shape.Size()
}

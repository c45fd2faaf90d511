// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/shapes"
)

// TensorDescriptor is the metadata of a tensor: shape (which includes the data type),
// layout, quantization and target. It is a value type: copy it with Clone before mutating slices.
type TensorDescriptor struct {
	Shape        shapes.Shape
	Layout       shapes.DataLayout
	Quantization QuantizationInfo
	Target       Target
}

// MakeDescriptor returns a descriptor for a non-quantized tensor.
func MakeDescriptor(shape shapes.Shape, layout shapes.DataLayout) TensorDescriptor {
	return TensorDescriptor{Shape: shape, Layout: layout}
}

// DType returns the data type of the tensor.
func (d TensorDescriptor) DType() dtypes.DType { return d.Shape.DType }

// Ok returns whether shape and data type are resolved.
func (d TensorDescriptor) Ok() bool { return d.Shape.Ok() }

// Clone returns a deep copy of the descriptor.
func (d TensorDescriptor) Clone() TensorDescriptor {
	d2 := d
	d2.Shape = d.Shape.Clone()
	d2.Quantization = d.Quantization.Clone()
	return d2
}

// Equal compares all fields of the descriptors.
func (d TensorDescriptor) Equal(d2 TensorDescriptor) bool {
	return d.Shape.Equal(d2.Shape) && d.Layout == d2.Layout && d.Target == d2.Target &&
		d.Quantization.Equal(d2.Quantization)
}

// Dim returns the logical dimension dim, using the descriptor's layout.
//
// For tensors that are not 4D the layout is ignored and Batch refers to axis 0, and
// Channel refers to the last axis (or axis 1 for NCHW).
func (d TensorDescriptor) Dim(dim shapes.DataLayoutDimension) int {
	if d.Shape.Rank() == 4 && d.Layout != shapes.LayoutUnknown {
		return d.Shape.LayoutDim(d.Layout, dim)
	}
	switch dim {
	case shapes.DimBatch:
		return d.Shape.Dim(0)
	case shapes.DimChannel:
		if d.Layout == shapes.LayoutNCHW && d.Shape.Rank() > 1 {
			return d.Shape.Dim(1)
		}
		return d.Shape.Dim(-1)
	}
	return d.Shape.Dim(shapes.DimensionIndex(shapes.LayoutNCHW, dim))
}

// AxisOf returns the axis of the logical dimension dim in the tensor's shape.
func (d TensorDescriptor) AxisOf(dim shapes.DataLayoutDimension) int {
	if d.Shape.Rank() == 4 && d.Layout != shapes.LayoutUnknown {
		return shapes.DimensionIndex(d.Layout, dim)
	}
	if dim == shapes.DimChannel && !(d.Layout == shapes.LayoutNCHW && d.Shape.Rank() > 1) {
		return d.Shape.Rank() - 1
	}
	return shapes.DimensionIndex(shapes.LayoutNCHW, dim)
}

// WithDim returns a copy with the logical dimension dim set to value.
func (d TensorDescriptor) WithDim(dim shapes.DataLayoutDimension, value int) TensorDescriptor {
	d2 := d.Clone()
	d2.Shape = d.Shape.WithDim(d.AxisOf(dim), value)
	return d2
}

// WithShape returns a copy with a new shape.
func (d TensorDescriptor) WithShape(shape shapes.Shape) TensorDescriptor {
	d2 := d.Clone()
	d2.Shape = shape
	return d2
}

// WithDType returns a copy with the data type changed.
func (d TensorDescriptor) WithDType(dtype dtypes.DType) TensorDescriptor {
	d2 := d.Clone()
	d2.Shape.DType = dtype
	return d2
}

// WithQuantization returns a copy with new quantization parameters.
func (d TensorDescriptor) WithQuantization(q QuantizationInfo) TensorDescriptor {
	d2 := d.Clone()
	d2.Quantization = q.Clone()
	return d2
}

// IsQuantized returns whether the data type is an 8-bit quantized type.
func (d TensorDescriptor) IsQuantized() bool {
	return d.Shape.DType == dtypes.Uint8 || d.Shape.DType == dtypes.Int8
}

func (d TensorDescriptor) String() string {
	s := fmt.Sprintf("%s %s", d.Shape, d.Layout)
	if !d.Quantization.Empty() {
		s += " q" + d.Quantization.String()
	}
	if d.Target != TargetUnspecified {
		s += " @" + d.Target.String()
	}
	return s
}

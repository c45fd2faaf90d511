// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// DataLayout defines the order of the axes of 4D tensors.
type DataLayout int

//go:generate go tool enumer -type=DataLayout -trimprefix=Layout -output=gen_datalayout_enumer.go layout.go

const (
	LayoutUnknown DataLayout = iota

	// LayoutNCHW has the channels before the spatial dimensions: [batch, channels, height, width].
	LayoutNCHW

	// LayoutNHWC has the channels last: [batch, height, width, channels].
	LayoutNHWC
)

// DataLayoutDimension is a logical dimension of a 4D tensor, independent of its layout.
//
// For convolution weights Batch is used for the number of output feature maps and
// Channel for the number of input feature maps.
type DataLayoutDimension int

//go:generate go tool enumer -type=DataLayoutDimension -trimprefix=Dim -output=gen_datalayoutdimension_enumer.go layout.go

const (
	DimBatch DataLayoutDimension = iota
	DimChannel
	DimHeight
	DimWidth
)

// DimensionIndex returns the axis where the logical dimension dim is stored for the given layout.
//
// It panics for LayoutUnknown or an invalid layout.
func DimensionIndex(layout DataLayout, dim DataLayoutDimension) int {
	switch layout {
	case LayoutNCHW:
		switch dim {
		case DimBatch:
			return 0
		case DimChannel:
			return 1
		case DimHeight:
			return 2
		case DimWidth:
			return 3
		}
	case LayoutNHWC:
		switch dim {
		case DimBatch:
			return 0
		case DimHeight:
			return 1
		case DimWidth:
			return 2
		case DimChannel:
			return 3
		}
	default:
		exceptions.Panicf("shapes.DimensionIndex: unsupported data layout %s", layout)
	}
	exceptions.Panicf("shapes.DimensionIndex: invalid dimension %s", dim)
	return -1
}

// MakeWithLayout creates a 4D shape with the logical dimensions placed according to layout.
func MakeWithLayout(dtype dtypes.DType, layout DataLayout, n, c, h, w int) Shape {
	dims := make([]int, 4)
	dims[DimensionIndex(layout, DimBatch)] = n
	dims[DimensionIndex(layout, DimChannel)] = c
	dims[DimensionIndex(layout, DimHeight)] = h
	dims[DimensionIndex(layout, DimWidth)] = w
	return Make(dtype, dims...)
}

// LayoutDim returns the logical dimension dim of a 4D shape stored with layout.
func (s Shape) LayoutDim(layout DataLayout, dim DataLayoutDimension) int {
	return s.Dim(DimensionIndex(layout, dim))
}

// WithLayoutDim returns a copy of the shape with the logical dimension dim set to value.
func (s Shape) WithLayoutDim(layout DataLayout, dim DataLayoutDimension, value int) Shape {
	return s.WithDim(DimensionIndex(layout, dim), value)
}

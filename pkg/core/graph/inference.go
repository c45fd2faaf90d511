// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Descriptor inference functions: pure functions computing an output descriptor from the input
// descriptors and the operator parameters. They are used by ConfigureOutput (dropping the error)
// and by Validate (returning it).

// ScaledDimension returns the output size of a sliding window of the given kernel size over an
// input dimension: (in + padBefore + padAfter - effectiveKernel) / stride + 1, where
// effectiveKernel = (kernel-1)*dilation + 1. Rounding selects floor or ceil of the division.
func ScaledDimension(in, kernel, stride, padBefore, padAfter, dilation int, rounding DimensionRoundingType) (int, error) {
	if stride <= 0 {
		return 0, errors.Errorf("stride must be > 0, got %d", stride)
	}
	if dilation <= 0 {
		return 0, errors.Errorf("dilation must be > 0, got %d", dilation)
	}
	if kernel <= 0 {
		return 0, errors.Errorf("kernel size must be > 0, got %d", kernel)
	}
	effectiveKernel := (kernel-1)*dilation + 1
	padded := in + padBefore + padAfter
	if padded < effectiveKernel {
		return 0, errors.Errorf("padded input size %d is smaller than the effective kernel size %d", padded, effectiveKernel)
	}
	num := padded - effectiveKernel
	if rounding == RoundCeil {
		return (num+stride-1)/stride + 1, nil
	}
	return num/stride + 1, nil
}

func checkSpatial(op string, desc TensorDescriptor, name string) error {
	if !desc.Ok() {
		return errors.Errorf("%s: %s descriptor is not resolved", op, name)
	}
	if desc.Shape.Rank() != 4 {
		return errors.Errorf("%s: %s must have rank 4, got shape %s", op, name, desc.Shape)
	}
	if desc.Layout != shapes.LayoutNCHW && desc.Layout != shapes.LayoutNHWC {
		return errors.Errorf("%s: %s has unsupported data layout %s", op, name, desc.Layout)
	}
	return nil
}

func spatialOutput(op string, input TensorDescriptor, kernelW, kernelH int, info PadStrideInfo, dilationX, dilationY int) (TensorDescriptor, error) {
	strideX, strideY := info.Strides()
	width, err := ScaledDimension(input.Dim(shapes.DimWidth), kernelW, strideX, info.PadLeft, info.PadRight, dilationX, info.Rounding)
	if err != nil {
		return TensorDescriptor{}, errors.WithMessagef(err, "%s: invalid width", op)
	}
	height, err := ScaledDimension(input.Dim(shapes.DimHeight), kernelH, strideY, info.PadTop, info.PadBottom, dilationY, info.Rounding)
	if err != nil {
		return TensorDescriptor{}, errors.WithMessagef(err, "%s: invalid height", op)
	}
	return input.WithDim(shapes.DimWidth, width).WithDim(shapes.DimHeight, height), nil
}

// ConvolutionDescriptor returns the output descriptor of a grouped 2D convolution.
//
// Weights have the same layout as the input, with Batch = output feature maps and
// Channel = input feature maps per group.
func ConvolutionDescriptor(input, weights TensorDescriptor, info PadStrideInfo, numGroups, dilationX, dilationY int) (TensorDescriptor, error) {
	const op = "Convolution"
	if err := checkSpatial(op, input, "input"); err != nil {
		return TensorDescriptor{}, err
	}
	if err := checkSpatial(op, weights, "weights"); err != nil {
		return TensorDescriptor{}, err
	}
	if numGroups <= 0 {
		return TensorDescriptor{}, errors.Errorf("%s: number of groups must be > 0, got %d", op, numGroups)
	}
	inChannels := input.Dim(shapes.DimChannel)
	if weights.Dim(shapes.DimChannel)*numGroups != inChannels {
		return TensorDescriptor{}, errors.Errorf("%s: input has %d channels but weights %s expect %d (groups=%d)",
			op, inChannels, weights.Shape, weights.Dim(shapes.DimChannel)*numGroups, numGroups)
	}
	output, err := spatialOutput(op, input, weights.Dim(shapes.DimWidth), weights.Dim(shapes.DimHeight), info, dilationX, dilationY)
	if err != nil {
		return TensorDescriptor{}, err
	}
	return output.WithDim(shapes.DimChannel, weights.Dim(shapes.DimBatch)), nil
}

// DepthwiseConvolutionDescriptor returns the output descriptor of a depthwise convolution:
// the number of channels is multiplied by depthMultiplier.
func DepthwiseConvolutionDescriptor(input, weights TensorDescriptor, info PadStrideInfo, depthMultiplier, dilationX, dilationY int) (TensorDescriptor, error) {
	const op = "DepthwiseConvolution"
	if err := checkSpatial(op, input, "input"); err != nil {
		return TensorDescriptor{}, err
	}
	if err := checkSpatial(op, weights, "weights"); err != nil {
		return TensorDescriptor{}, err
	}
	if depthMultiplier <= 0 {
		return TensorDescriptor{}, errors.Errorf("%s: depth multiplier must be > 0, got %d", op, depthMultiplier)
	}
	outChannels := input.Dim(shapes.DimChannel) * depthMultiplier
	if weights.Dim(shapes.DimChannel) != outChannels {
		return TensorDescriptor{}, errors.Errorf("%s: weights %s should have %d channels (input channels x depth multiplier)",
			op, weights.Shape, outChannels)
	}
	output, err := spatialOutput(op, input, weights.Dim(shapes.DimWidth), weights.Dim(shapes.DimHeight), info, dilationX, dilationY)
	if err != nil {
		return TensorDescriptor{}, err
	}
	return output.WithDim(shapes.DimChannel, outChannels), nil
}

// PoolingDescriptor returns the output descriptor of a pooling operation. Global pooling outputs 1x1.
func PoolingDescriptor(input TensorDescriptor, info PoolingInfo) (TensorDescriptor, error) {
	const op = "Pooling"
	if err := checkSpatial(op, input, "input"); err != nil {
		return TensorDescriptor{}, err
	}
	if info.Global {
		return input.WithDim(shapes.DimWidth, 1).WithDim(shapes.DimHeight, 1), nil
	}
	return spatialOutput(op, input, info.PoolWidth, info.PoolHeight, info.PadStride, 1, 1)
}

// ConcatenateDescriptor returns the descriptor of the concatenation of inputs along the logical
// dimension axis. All other dimensions, the data type and the layout must match.
func ConcatenateDescriptor(inputs []TensorDescriptor, axis shapes.DataLayoutDimension) (TensorDescriptor, error) {
	const op = "Concatenate"
	if len(inputs) == 0 {
		return TensorDescriptor{}, errors.Errorf("%s requires at least one input", op)
	}
	first := inputs[0]
	if !first.Ok() {
		return TensorDescriptor{}, errors.Errorf("%s: input #0 descriptor is not resolved", op)
	}
	axisIdx := first.AxisOf(axis)
	rank := first.Shape.Rank()
	if axisIdx < 0 || axisIdx >= rank {
		return TensorDescriptor{}, errors.Errorf("%s: invalid concatenation axis %s for shape %s", op, axis, first.Shape)
	}
	output := first.Clone()
	for ii := 1; ii < len(inputs); ii++ {
		current := inputs[ii]
		if !current.Ok() {
			return TensorDescriptor{}, errors.Errorf("%s: input #%d descriptor is not resolved", op, ii)
		}
		if current.DType() != first.DType() {
			return TensorDescriptor{}, errors.Errorf("%s: mismatched DTypes, input #0 has %s, input #%d has %s",
				op, first.DType(), ii, current.DType())
		}
		if current.Shape.Rank() != rank || current.Layout != first.Layout {
			return TensorDescriptor{}, errors.Errorf("%s: input #%d %s is incompatible with input #0 %s", op, ii, current, first)
		}
		for d := range rank {
			if d == axisIdx {
				output.Shape.Dimensions[d] += current.Shape.Dimensions[d]
			} else if current.Shape.Dimensions[d] != first.Shape.Dimensions[d] {
				return TensorDescriptor{}, errors.Errorf("%s: mismatched dimensions at axis %d (non-concatenation axis): input #0 has %d, input #%d has %d",
					op, d, first.Shape.Dimensions[d], ii, current.Shape.Dimensions[d])
			}
		}
	}
	return output, nil
}

// EltwiseDescriptor returns the output of a binary element-wise operation. Shapes must have the same
// rank and each pair of dimensions must be equal or 1; the output takes the larger one.
func EltwiseDescriptor(lhs, rhs TensorDescriptor) (TensorDescriptor, error) {
	const op = "Eltwise"
	if !lhs.Ok() || !rhs.Ok() {
		return TensorDescriptor{}, errors.Errorf("%s: input descriptors are not resolved", op)
	}
	if lhs.DType() != rhs.DType() {
		return TensorDescriptor{}, errors.Errorf("%s: mismatched DTypes %s and %s", op, lhs.DType(), rhs.DType())
	}
	if lhs.Shape.Rank() != rhs.Shape.Rank() {
		return TensorDescriptor{}, errors.Errorf("%s: mismatched ranks for shapes %s and %s", op, lhs.Shape, rhs.Shape)
	}
	output := lhs.Clone()
	for axis, dim := range rhs.Shape.Dimensions {
		lhsDim := lhs.Shape.Dimensions[axis]
		switch {
		case dim == lhsDim:
		case lhsDim == 1:
			output.Shape.Dimensions[axis] = dim
		case dim == 1:
		default:
			return TensorDescriptor{}, errors.Errorf("%s: shapes %s and %s cannot be broadcast at axis %d", op, lhs.Shape, rhs.Shape, axis)
		}
	}
	return output, nil
}

// FullyConnectedDescriptor returns the output of a fully connected layer: [batch, numOutputs],
// where batch is the first dimension of the input. Weights (if resolved) must be
// [numOutputs, inputSize / batch].
func FullyConnectedDescriptor(input, weights TensorDescriptor, numOutputs int) (TensorDescriptor, error) {
	const op = "FullyConnected"
	if !input.Ok() || input.Shape.Rank() == 0 {
		return TensorDescriptor{}, errors.Errorf("%s: input descriptor is not resolved", op)
	}
	if numOutputs <= 0 {
		return TensorDescriptor{}, errors.Errorf("%s: number of outputs must be > 0, got %d", op, numOutputs)
	}
	batch := input.Shape.Dim(0)
	if weights.Ok() {
		features := input.Shape.Size() / batch
		if weights.Shape.Rank() != 2 || weights.Shape.Dim(0) != numOutputs || weights.Shape.Dim(1) != features {
			return TensorDescriptor{}, errors.Errorf("%s: weights %s should be [%d %d]", op, weights.Shape, numOutputs, features)
		}
	}
	output := input.WithShape(shapes.Make(input.DType(), batch, numOutputs))
	output.Layout = shapes.LayoutUnknown
	return output, nil
}

// FlattenDescriptor collapses all axes but the first: [N, C*H*W].
func FlattenDescriptor(input TensorDescriptor) (TensorDescriptor, error) {
	if !input.Ok() || input.Shape.Rank() == 0 {
		return TensorDescriptor{}, errors.Errorf("Flatten: input descriptor is not resolved")
	}
	batch := input.Shape.Dim(0)
	output := input.WithShape(shapes.Make(input.DType(), batch, input.Shape.Size()/batch))
	output.Layout = shapes.LayoutUnknown
	return output, nil
}

// ReshapeDescriptor returns the input descriptor with new dimensions. The number of elements must match.
func ReshapeDescriptor(input TensorDescriptor, dimensions []int) (TensorDescriptor, error) {
	if !input.Ok() {
		return TensorDescriptor{}, errors.Errorf("Reshape: input descriptor is not resolved")
	}
	size := 1
	for _, dim := range dimensions {
		if dim <= 0 {
			return TensorDescriptor{}, errors.Errorf("Reshape: invalid dimensions %v", dimensions)
		}
		size *= dim
	}
	if size != input.Shape.Size() {
		return TensorDescriptor{}, errors.Errorf("Reshape: cannot reshape %s (%d elements) to %v (%d elements)",
			input.Shape, input.Shape.Size(), dimensions, size)
	}
	output := input.WithShape(shapes.Make(input.DType(), dimensions...))
	if len(dimensions) != 4 {
		output.Layout = shapes.LayoutUnknown
	}
	return output, nil
}

// SplitDescriptor returns the descriptor of each of the numSplits equal parts of input along axis.
func SplitDescriptor(input TensorDescriptor, numSplits, axis int) (TensorDescriptor, error) {
	if !input.Ok() {
		return TensorDescriptor{}, errors.Errorf("Split: input descriptor is not resolved")
	}
	if axis < 0 {
		axis += input.Shape.Rank()
	}
	if axis < 0 || axis >= input.Shape.Rank() {
		return TensorDescriptor{}, errors.Errorf("Split: invalid axis %d for shape %s", axis, input.Shape)
	}
	dim := input.Shape.Dim(axis)
	if numSplits <= 0 || dim%numSplits != 0 {
		return TensorDescriptor{}, errors.Errorf("Split: dimension %d of axis %d is not divisible in %d splits", dim, axis, numSplits)
	}
	return input.WithShape(input.Shape.WithDim(axis, dim/numSplits)), nil
}

// PriorBoxDescriptor returns [1, 2, 4 * numPriors * layerH * layerW] from the feature map input.
func PriorBoxDescriptor(input TensorDescriptor, info PriorBoxInfo) (TensorDescriptor, error) {
	if err := checkSpatial("PriorBox", input, "input"); err != nil {
		return TensorDescriptor{}, err
	}
	numPriors := info.NumPriors()
	if numPriors == 0 {
		return TensorDescriptor{}, errors.Errorf("PriorBox: no min sizes given")
	}
	size := 4 * numPriors * input.Dim(shapes.DimHeight) * input.Dim(shapes.DimWidth)
	return TensorDescriptor{
		Shape:  shapes.Make(dtypes.Float32, 1, 2, size),
		Target: input.Target,
	}, nil
}

// DetectionOutputDescriptor returns [1, keepTopK, 7] from the box location input.
func DetectionOutputDescriptor(location TensorDescriptor, info DetectionOutputInfo) (TensorDescriptor, error) {
	if !location.Ok() {
		return TensorDescriptor{}, errors.Errorf("DetectionOutput: location descriptor is not resolved")
	}
	if info.KeepTopK <= 0 {
		return TensorDescriptor{}, errors.Errorf("DetectionOutput: keep top k must be > 0, got %d", info.KeepTopK)
	}
	return TensorDescriptor{
		Shape:  shapes.Make(location.DType(), 1, info.KeepTopK, DetectionOutputValuesPerBox),
		Target: location.Target,
	}, nil
}

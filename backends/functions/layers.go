// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package functions

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
)

// Activation applies an activation function element-wise.
type Activation[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the activation of input into output. Both can be the same tensor (in-place).
func (f *Activation[T]) Configure(d backends.Dispatcher, input, output T, info graph.ActivationInfo) error {
	const op = "Activation"
	if err := requirePresent(op, []string{"input", "output"}, input, output); err != nil {
		return err
	}
	if err := checkSameShape(op, input, output); err != nil {
		return err
	}
	return f.setup(d, op+"/"+info.Function.String(), graph.NodeTypeActivation, info, []T{input}, []T{output})
}

// BatchNormalizationParams are passed to the BatchNormalization kernel.
type BatchNormalizationParams struct {
	Epsilon         float32
	FusedActivation graph.ActivationInfo
}

// BatchNormalization normalizes input per channel: (x-mean)/sqrt(var+epsilon)*gamma+beta.
// Inputs of the kernel call are input, mean, variance, beta and gamma (the last two may be nil).
type BatchNormalization[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the batch normalization. beta and gamma are optional.
func (f *BatchNormalization[T]) Configure(d backends.Dispatcher, input, output, mean, variance, beta, gamma T, params BatchNormalizationParams) error {
	const op = "BatchNormalization"
	if err := requirePresent(op, []string{"input", "output", "mean", "variance"}, input, output, mean, variance); err != nil {
		return err
	}
	if err := checkSameShape(op, input, output); err != nil {
		return err
	}
	if params.Epsilon < 0 {
		return errors.Errorf("%s: epsilon must be >= 0, got %g", op, params.Epsilon)
	}
	return f.setup(d, op, graph.NodeTypeBatchNormalization, params, []T{input, mean, variance, beta, gamma}, []T{output})
}

// Concatenate copies all inputs into output along the given axis.
type Concatenate[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the concatenation of inputs along axis (an axis of the output shape).
func (f *Concatenate[T]) Configure(d backends.Dispatcher, inputs []T, output T, axis int) error {
	const op = "Concatenate"
	if len(inputs) == 0 {
		return errors.Errorf("%s: no inputs given", op)
	}
	if err := requirePresent(op, []string{"output"}, output); err != nil {
		return err
	}
	outShape := output.Desc().Shape
	if axis < 0 || axis >= outShape.Rank() {
		return errors.Errorf("%s: axis %d out of range for output %s", op, axis, outShape)
	}
	total := 0
	for ii, input := range inputs {
		if !isPresent(input) {
			return errors.Errorf("%s: input #%d not given", op, ii)
		}
		total += input.Desc().Shape.Dim(axis)
	}
	if total != outShape.Dim(axis) {
		return errors.Errorf("%s: inputs add up to %d along axis %d, output %s has %d", op, total, axis, outShape, outShape.Dim(axis))
	}
	return f.setup(d, op, graph.NodeTypeConcatenate, axis, inputs, []T{output})
}

// EltwiseParams are passed to the Eltwise kernel.
type EltwiseParams struct {
	Operation       graph.EltwiseOperation
	FusedActivation graph.ActivationInfo
}

// Eltwise is a binary element-wise operation with broadcasting.
type Eltwise[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the element-wise operation.
func (f *Eltwise[T]) Configure(d backends.Dispatcher, lhs, rhs, output T, params EltwiseParams) error {
	const op = "Eltwise"
	if err := requirePresent(op, []string{"lhs", "rhs", "output"}, lhs, rhs, output); err != nil {
		return err
	}
	if _, err := graph.EltwiseDescriptor(lhs.Desc(), rhs.Desc()); err != nil {
		return err
	}
	return f.setup(d, op+"/"+params.Operation.String(), graph.NodeTypeEltwise, params, []T{lhs, rhs}, []T{output})
}

// Pooling reduces windows of the spatial plane.
type Pooling[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the pooling of input into output.
func (f *Pooling[T]) Configure(d backends.Dispatcher, input, output T, info graph.PoolingInfo) error {
	const op = "Pooling"
	if err := requirePresent(op, []string{"input", "output"}, input, output); err != nil {
		return err
	}
	want, err := graph.PoolingDescriptor(input.Desc(), info)
	if err != nil {
		return err
	}
	if !want.Shape.EqualDimensions(output.Desc().Shape) {
		return errors.Errorf("%s: output %s should be %s", op, output.Desc().Shape, want.Shape)
	}
	return f.setup(d, op+"/"+info.Type.String(), graph.NodeTypePooling, info, []T{input}, []T{output})
}

// Softmax over the innermost axis, with inputs scaled by beta.
type Softmax[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the softmax of input into output.
func (f *Softmax[T]) Configure(d backends.Dispatcher, input, output T, beta float32) error {
	const op = "Softmax"
	if err := requirePresent(op, []string{"input", "output"}, input, output); err != nil {
		return err
	}
	if err := checkSameShape(op, input, output); err != nil {
		return err
	}
	return f.setup(d, op, graph.NodeTypeSoftmax, beta, []T{input}, []T{output})
}

// Reshape copies input into output with a different shape (same number of elements).
// It implements both Flatten and Reshape nodes.
type Reshape[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the reshape of input into output.
func (f *Reshape[T]) Configure(d backends.Dispatcher, input, output T, nodeType graph.NodeType) error {
	const op = "Reshape"
	if err := requirePresent(op, []string{"input", "output"}, input, output); err != nil {
		return err
	}
	if in, out := input.Desc().Shape, output.Desc().Shape; in.Size() != out.Size() {
		return errors.Errorf("%s: output %s has a different number of elements than input %s", op, out, in)
	}
	return f.setup(d, op, nodeType, nil, []T{input}, []T{output})
}

// SplitParams are passed to the Split kernel.
type SplitParams struct {
	Axis    int
	Offsets []int
}

// Split copies consecutive slices of input along axis into the outputs.
type Split[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the split of input into outputs.
func (f *Split[T]) Configure(d backends.Dispatcher, input T, outputs []T, axis int) error {
	const op = "Split"
	if err := requirePresent(op, []string{"input"}, input); err != nil {
		return err
	}
	inShape := input.Desc().Shape
	if axis < 0 || axis >= inShape.Rank() {
		return errors.Errorf("%s: axis %d out of range for input %s", op, axis, inShape)
	}
	params := SplitParams{Axis: axis, Offsets: make([]int, len(outputs))}
	offset := 0
	for ii, output := range outputs {
		if !isPresent(output) {
			return errors.Errorf("%s: output #%d not given", op, ii)
		}
		params.Offsets[ii] = offset
		offset += output.Desc().Shape.Dim(axis)
	}
	if offset != inShape.Dim(axis) {
		return errors.Errorf("%s: outputs add up to %d along axis %d, input %s has %d", op, offset, axis, inShape, inShape.Dim(axis))
	}
	return f.setup(d, op, graph.NodeTypeSplit, params, []T{input}, outputs)
}

// Quantization converts input to the quantized data type of output.
type Quantization[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the quantization of input into output.
func (f *Quantization[T]) Configure(d backends.Dispatcher, input, output T) error {
	const op = "Quantization"
	if err := requirePresent(op, []string{"input", "output"}, input, output); err != nil {
		return err
	}
	if err := checkSameShape(op, input, output); err != nil {
		return err
	}
	if !output.Desc().IsQuantized() {
		return errors.Errorf("%s: output %s has no quantization information", op, output.Desc())
	}
	return f.setup(d, op, graph.NodeTypeQuantization, output.Desc().Quantization, []T{input}, []T{output})
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package functions

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ConvolutionParams are passed to the convolution kernels.
type ConvolutionParams struct {
	Info                 graph.PadStrideInfo
	NumGroups            int
	DilationX, DilationY int
	Method               graph.ConvolutionMethod
	FastMath             graph.FastMathHint
	FusedActivation      graph.ActivationInfo
}

// transformedWeights holds weights rewritten once, on Prepare, by a transformation kernel.
type transformedWeights[T NativeTensor] struct {
	prepared  bool
	workspace WorkspaceFactory[T]
}

// transform runs the kernel transformName from sources into a new workspace tensor with
// descriptor desc, and marks the sources as unused.
func (w *transformedWeights[T]) transform(f *kernelFunction[T], transformName string, desc graph.TensorDescriptor, params any, sources ...T) (T, error) {
	var zero T
	if w.workspace == nil {
		return zero, errors.Errorf("%s: no workspace factory to transform weights", f.name)
	}
	transformed, err := w.workspace(desc)
	if err != nil {
		return zero, errors.WithMessagef(err, "%s: failed to create workspace", f.name)
	}
	call := &backends.KernelCall{
		Name:    transformName,
		Op:      f.op,
		Inputs:  toTensors(sources),
		Outputs: []backends.Tensor{transformed},
		Params:  params,
		Window:  backends.Window{Begin: 0, End: max(desc.Shape.Dim(0), 1)},
	}
	if err := f.dispatcher.Dispatch(call); err != nil {
		return zero, err
	}
	for _, source := range sources {
		if isPresent(source) {
			source.MarkAsUnused()
		}
	}
	klog.V(2).Infof("%s: transformed weights with %s into %s", f.name, transformName, desc)
	return transformed, nil
}

// Convolution is a grouped 2D convolution with optional bias and fused activation.
//
// For the GEMM and Winograd methods the weights are transformed on Prepare and the original
// weights are marked as unused. Inputs of the kernel call: input, weights and bias (may be nil).
type Convolution[T NativeTensor] struct {
	kernelFunction[T]
	transformedWeights[T]
	config ConvolutionParams
}

// Configure the convolution.
func (f *Convolution[T]) Configure(d backends.Dispatcher, workspace WorkspaceFactory[T], input, weights, bias, output T, params ConvolutionParams) error {
	const op = "Convolution"
	if err := requirePresent(op, []string{"input", "weights", "output"}, input, weights, output); err != nil {
		return err
	}
	params.NumGroups = max(params.NumGroups, 1)
	params.DilationX, params.DilationY = max(params.DilationX, 1), max(params.DilationY, 1)
	want, err := graph.ConvolutionDescriptor(input.Desc(), weights.Desc(), params.Info, params.NumGroups, params.DilationX, params.DilationY)
	if err != nil {
		return err
	}
	if !want.Shape.EqualDimensions(output.Desc().Shape) {
		return errors.Errorf("%s: output %s should be %s", op, output.Desc().Shape, want.Shape)
	}
	if isPresent(bias) && bias.Desc().Shape.Size() != want.Dim(shapes.DimChannel) {
		return errors.Errorf("%s: bias %s should have %d elements", op, bias.Desc().Shape, want.Dim(shapes.DimChannel))
	}
	if params.Method == graph.ConvolutionMethodDefault {
		params.Method = graph.ConvolutionMethodGEMM
	}
	f.config = params
	f.workspace = workspace
	return f.setup(d, op+"/"+params.Method.String(), graph.NodeTypeConvolution, params, []T{input, weights, bias}, []T{output})
}

// Method returns the convolution method used.
func (f *Convolution[T]) Method() graph.ConvolutionMethod { return f.config.Method }

// Prepare implements backends.Preparer.
func (f *Convolution[T]) Prepare() error {
	if f.prepared || f.config.Method == graph.ConvolutionMethodDirect {
		f.prepared = true
		return nil
	}
	weights := f.inputs[1]
	transformed, err := f.transform(&f.kernelFunction, f.name+"/TransformWeights", weights.Desc(), f.config, weights)
	if err != nil {
		return err
	}
	f.inputs[1] = transformed
	f.prepared = true
	return nil
}

// DepthwiseConvolution is a depthwise 2D convolution with optional bias.
type DepthwiseConvolution[T NativeTensor] struct {
	kernelFunction[T]
}

// DepthwiseConvolutionParams are passed to the DepthwiseConvolution kernel.
type DepthwiseConvolutionParams struct {
	Info                 graph.PadStrideInfo
	DepthMultiplier      int
	DilationX, DilationY int
	FusedActivation      graph.ActivationInfo
}

// Configure the depthwise convolution.
func (f *DepthwiseConvolution[T]) Configure(d backends.Dispatcher, input, weights, bias, output T, params DepthwiseConvolutionParams) error {
	const op = "DepthwiseConvolution"
	if err := requirePresent(op, []string{"input", "weights", "output"}, input, weights, output); err != nil {
		return err
	}
	params.DepthMultiplier = max(params.DepthMultiplier, 1)
	params.DilationX, params.DilationY = max(params.DilationX, 1), max(params.DilationY, 1)
	want, err := graph.DepthwiseConvolutionDescriptor(input.Desc(), weights.Desc(), params.Info, params.DepthMultiplier, params.DilationX, params.DilationY)
	if err != nil {
		return err
	}
	if !want.Shape.EqualDimensions(output.Desc().Shape) {
		return errors.Errorf("%s: output %s should be %s", op, output.Desc().Shape, want.Shape)
	}
	return f.setup(d, op, graph.NodeTypeDepthwiseConvolution, params, []T{input, weights, bias}, []T{output})
}

// FusedConvolutionBatchNormalizationParams are passed to the fused kernels.
type FusedConvolutionBatchNormalizationParams struct {
	Convolution ConvolutionParams
	Epsilon     float32
}

// FusedConvolutionBatchNormalization is a convolution whose weights and bias are rewritten on
// Prepare to include the batch normalization that followed it.
//
// After Prepare the kernel call inputs are input, fused weights and fused bias: the original
// weights, bias and normalization parameters are marked as unused.
type FusedConvolutionBatchNormalization[T NativeTensor] struct {
	kernelFunction[T]
	transformedWeights[T]
	config   FusedConvolutionBatchNormalizationParams
	bnParams []T
}

// Configure the fused convolution. bias, beta and gamma are optional.
func (f *FusedConvolutionBatchNormalization[T]) Configure(d backends.Dispatcher, workspace WorkspaceFactory[T],
	input, weights, bias, output, mean, variance, beta, gamma T, params FusedConvolutionBatchNormalizationParams) error {
	const op = "FusedConvolutionBatchNormalization"
	if err := requirePresent(op, []string{"input", "weights", "output", "mean", "variance"}, input, weights, output, mean, variance); err != nil {
		return err
	}
	conv := &params.Convolution
	conv.NumGroups = max(conv.NumGroups, 1)
	conv.DilationX, conv.DilationY = max(conv.DilationX, 1), max(conv.DilationY, 1)
	if conv.Method == graph.ConvolutionMethodDefault {
		conv.Method = graph.ConvolutionMethodGEMM
	}
	want, err := graph.ConvolutionDescriptor(input.Desc(), weights.Desc(), conv.Info, conv.NumGroups, conv.DilationX, conv.DilationY)
	if err != nil {
		return err
	}
	if !want.Shape.EqualDimensions(output.Desc().Shape) {
		return errors.Errorf("%s: output %s should be %s", op, output.Desc().Shape, want.Shape)
	}
	channels := want.Dim(shapes.DimChannel)
	for ii, t := range []T{mean, variance, beta, gamma} {
		if isPresent(t) && t.Desc().Shape.Size() != channels {
			return errors.Errorf("%s: normalization parameter #%d %s should have %d elements", op, ii, t.Desc().Shape, channels)
		}
	}
	f.config = params
	f.workspace = workspace
	f.bnParams = []T{mean, variance, beta, gamma}
	return f.setup(d, op+"/"+conv.Method.String(), graph.NodeTypeFusedConvolutionBatchNormalization, params,
		[]T{input, weights, bias}, []T{output})
}

// Prepare implements backends.Preparer.
func (f *FusedConvolutionBatchNormalization[T]) Prepare() error {
	if f.prepared {
		return nil
	}
	weights, bias := f.inputs[1], f.inputs[2]
	sources := append([]T{weights, bias}, f.bnParams...)
	fusedWeights, err := f.transform(&f.kernelFunction, "FusedConvolutionBatchNormalization/FuseWeights", weights.Desc(), f.config, sources...)
	if err != nil {
		return err
	}
	outChannels := weights.Desc().Shape.Dim(0)
	biasDesc := graph.TensorDescriptor{Shape: shapes.Make(weights.Desc().DType(), outChannels), Target: weights.Desc().Target}
	fusedBias, err := f.transform(&f.kernelFunction, "FusedConvolutionBatchNormalization/FuseBias", biasDesc, f.config, sources...)
	if err != nil {
		return err
	}
	f.inputs[1], f.inputs[2] = fusedWeights, fusedBias
	f.prepared = true
	return nil
}

// FullyConnectedParams are passed to the FullyConnected kernel.
type FullyConnectedParams struct {
	NumOutputs      int
	FusedActivation graph.ActivationInfo
}

// FullyConnected multiplies the flattened input by the weights, plus an optional bias.
//
// The weights, given as [outputs, features], are transposed on Prepare to [features, outputs]
// and the original weights are marked as unused.
type FullyConnected[T NativeTensor] struct {
	kernelFunction[T]
	transformedWeights[T]
}

// Configure the fully connected layer.
func (f *FullyConnected[T]) Configure(d backends.Dispatcher, workspace WorkspaceFactory[T], input, weights, bias, output T, params FullyConnectedParams) error {
	const op = "FullyConnected"
	if err := requirePresent(op, []string{"input", "weights", "output"}, input, weights, output); err != nil {
		return err
	}
	want, err := graph.FullyConnectedDescriptor(input.Desc(), weights.Desc(), params.NumOutputs)
	if err != nil {
		return err
	}
	if !want.Shape.EqualDimensions(output.Desc().Shape) {
		return errors.Errorf("%s: output %s should be %s", op, output.Desc().Shape, want.Shape)
	}
	if isPresent(bias) && bias.Desc().Shape.Size() != params.NumOutputs {
		return errors.Errorf("%s: bias %s should have %d elements", op, bias.Desc().Shape, params.NumOutputs)
	}
	f.workspace = workspace
	return f.setup(d, op, graph.NodeTypeFullyConnected, params, []T{input, weights, bias}, []T{output})
}

// Prepare implements backends.Preparer.
func (f *FullyConnected[T]) Prepare() error {
	if f.prepared {
		return nil
	}
	weights := f.inputs[1]
	desc := weights.Desc()
	desc.Shape = shapes.Make(desc.DType(), desc.Shape.Dim(1), desc.Shape.Dim(0))
	transposed, err := f.transform(&f.kernelFunction, "FullyConnected/TransposeWeights", desc, nil, weights)
	if err != nil {
		return err
	}
	f.inputs[1] = transposed
	f.prepared = true
	return nil
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lowering

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/backends/functions"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// CreateActivationLayer lowers an ActivationNode.
func CreateActivationLayer[T functions.NativeTensor](node *graph.ActivationNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 1, 1); err != nil {
		return nil, err
	}
	f := &functions.Activation[T]{}
	err := f.Configure(info.Dispatcher(), inputTensor[T](node, 0), outputTensor[T](node, 0), node.Info())
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateBatchNormalizationLayer lowers a BatchNormalizationNode.
func CreateBatchNormalizationLayer[T functions.NativeTensor](node *graph.BatchNormalizationNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 5, 1); err != nil {
		return nil, err
	}
	f := &functions.BatchNormalization[T]{}
	params := functions.BatchNormalizationParams{Epsilon: node.Epsilon(), FusedActivation: node.FusedActivation()}
	err := f.Configure(info.Dispatcher(),
		inputTensor[T](node, graph.BatchNormInput), outputTensor[T](node, 0),
		inputTensor[T](node, graph.BatchNormMean), inputTensor[T](node, graph.BatchNormVar),
		inputTensor[T](node, graph.BatchNormBeta), inputTensor[T](node, graph.BatchNormGamma), params)
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateConcatenateLayer lowers a ConcatenateNode. A disabled node (its inputs are sub-tensors
// of the output) needs no function and returns (nil, nil).
func CreateConcatenateLayer[T functions.NativeTensor](node *graph.ConcatenateNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, node.NumInputs(), 1); err != nil {
		return nil, err
	}
	if !node.IsEnabled() {
		return nil, nil
	}
	inputs := make([]T, node.NumInputs())
	for idx := range inputs {
		inputs[idx] = inputTensor[T](node, idx)
	}
	output := outputTensor[T](node, 0)
	f := &functions.Concatenate[T]{}
	axis := node.Output(0).Desc().AxisOf(node.Axis())
	if err := f.Configure(info.Dispatcher(), inputs, output, axis); err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// SelectConvolutionMethod picks the convolution method when none is requested: Winograd for
// float 3x3 unit-stride convolutions if fast math is allowed, Direct for 1x1 convolutions and
// GEMM otherwise.
func SelectConvolutionMethod(input, weights graph.TensorDescriptor, info graph.PadStrideInfo, numGroups int, fastMath graph.FastMathHint) graph.ConvolutionMethod {
	kernelW, kernelH := weights.Dim(shapes.DimWidth), weights.Dim(shapes.DimHeight)
	switch {
	case fastMath == graph.FastMathEnabled && supportsWinograd(input, kernelW, kernelH, info, numGroups):
		return graph.ConvolutionMethodWinograd
	case kernelW == 1 && kernelH == 1 && numGroups <= 1:
		return graph.ConvolutionMethodDirect
	default:
		return graph.ConvolutionMethodGEMM
	}
}

func supportsWinograd(input graph.TensorDescriptor, kernelW, kernelH int, info graph.PadStrideInfo, numGroups int) bool {
	strideX, strideY := info.Strides()
	return input.DType() == dtypes.Float32 && kernelW == 3 && kernelH == 3 &&
		strideX == 1 && strideY == 1 && numGroups <= 1
}

// ValidateConvolutionMethod checks that an explicitly requested method can run the convolution.
func ValidateConvolutionMethod(node *graph.ConvolutionNode) error {
	if node.ConvolutionMethod() != graph.ConvolutionMethodWinograd {
		return nil
	}
	input, weights := node.Input(graph.ConvInput), node.Input(graph.ConvWeights)
	if input == nil || weights == nil {
		return nil
	}
	w := weights.Desc()
	dilationX, dilationY := node.Dilation()
	if !supportsWinograd(input.Desc(), w.Dim(shapes.DimWidth), w.Dim(shapes.DimHeight), node.Info(), node.NumGroups()) ||
		dilationX > 1 || dilationY > 1 {
		return errors.Errorf("%s: Winograd method requires float 3x3 kernels with unit stride and no dilation or groups", node)
	}
	return nil
}

// CreateConvolutionLayer lowers a ConvolutionNode. The method is selected by
// SelectConvolutionMethod if none was requested.
func CreateConvolutionLayer[T functions.NativeTensor](node *graph.ConvolutionNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 3, 1); err != nil {
		return nil, err
	}
	input, weights := inputTensor[T](node, graph.ConvInput), inputTensor[T](node, graph.ConvWeights)
	var zero T
	if input == zero || weights == zero {
		return nil, errors.Errorf("lowering %s: input or weights have no backing tensor", node)
	}
	method := node.ConvolutionMethod()
	if method == graph.ConvolutionMethodDefault {
		method = SelectConvolutionMethod(input.Desc(), weights.Desc(), node.Info(), node.NumGroups(), node.FastMathHint())
	}
	dilationX, dilationY := node.Dilation()
	params := functions.ConvolutionParams{
		Info:            node.Info(),
		NumGroups:       node.NumGroups(),
		DilationX:       dilationX,
		DilationY:       dilationY,
		Method:          method,
		FastMath:        node.FastMathHint(),
		FusedActivation: node.FusedActivation(),
	}
	f := &functions.Convolution[T]{}
	err := f.Configure(info.Dispatcher(), info.Workspace(), input, weights, inputTensor[T](node, graph.ConvBias), outputTensor[T](node, 0), params)
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateDepthwiseConvolutionLayer lowers a DepthwiseConvolutionNode.
func CreateDepthwiseConvolutionLayer[T functions.NativeTensor](node *graph.DepthwiseConvolutionNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 3, 1); err != nil {
		return nil, err
	}
	dilationX, dilationY := node.Dilation()
	params := functions.DepthwiseConvolutionParams{
		Info:            node.Info(),
		DepthMultiplier: node.DepthMultiplier(),
		DilationX:       dilationX,
		DilationY:       dilationY,
		FusedActivation: node.FusedActivation(),
	}
	f := &functions.DepthwiseConvolution[T]{}
	err := f.Configure(info.Dispatcher(), inputTensor[T](node, graph.ConvInput), inputTensor[T](node, graph.ConvWeights),
		inputTensor[T](node, graph.ConvBias), outputTensor[T](node, 0), params)
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateFusedConvolutionBatchNormalizationLayer lowers a FusedConvolutionBatchNormalizationNode.
func CreateFusedConvolutionBatchNormalizationLayer[T functions.NativeTensor](node *graph.FusedConvolutionBatchNormalizationNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 7, 1); err != nil {
		return nil, err
	}
	params := functions.FusedConvolutionBatchNormalizationParams{
		Convolution: functions.ConvolutionParams{
			Info:            node.Info(),
			NumGroups:       node.NumGroups(),
			Method:          node.ConvolutionMethod(),
			FastMath:        node.FastMathHint(),
			FusedActivation: node.FusedActivation(),
		},
		Epsilon: node.Epsilon(),
	}
	f := &functions.FusedConvolutionBatchNormalization[T]{}
	err := f.Configure(info.Dispatcher(), info.Workspace(),
		inputTensor[T](node, graph.ConvInput), inputTensor[T](node, graph.ConvWeights), inputTensor[T](node, graph.ConvBias),
		outputTensor[T](node, 0),
		inputTensor[T](node, graph.FusedConvMean), inputTensor[T](node, graph.FusedConvVar),
		inputTensor[T](node, graph.FusedConvBeta), inputTensor[T](node, graph.FusedConvGamma), params)
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateEltwiseLayer lowers an EltwiseNode.
func CreateEltwiseLayer[T functions.NativeTensor](node *graph.EltwiseNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 2, 1); err != nil {
		return nil, err
	}
	f := &functions.Eltwise[T]{}
	params := functions.EltwiseParams{Operation: node.Operation(), FusedActivation: node.FusedActivation()}
	err := f.Configure(info.Dispatcher(), inputTensor[T](node, 0), inputTensor[T](node, 1), outputTensor[T](node, 0), params)
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateFullyConnectedLayer lowers a FullyConnectedNode.
func CreateFullyConnectedLayer[T functions.NativeTensor](node *graph.FullyConnectedNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 3, 1); err != nil {
		return nil, err
	}
	f := &functions.FullyConnected[T]{}
	params := functions.FullyConnectedParams{NumOutputs: node.NumOutputFeatures(), FusedActivation: node.FusedActivation()}
	err := f.Configure(info.Dispatcher(), info.Workspace(), inputTensor[T](node, 0), inputTensor[T](node, 1),
		inputTensor[T](node, 2), outputTensor[T](node, 0), params)
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreatePoolingLayer lowers a PoolingNode.
func CreatePoolingLayer[T functions.NativeTensor](node *graph.PoolingNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 1, 1); err != nil {
		return nil, err
	}
	f := &functions.Pooling[T]{}
	if err := f.Configure(info.Dispatcher(), inputTensor[T](node, 0), outputTensor[T](node, 0), node.Info()); err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateSoftmaxLayer lowers a SoftmaxNode.
func CreateSoftmaxLayer[T functions.NativeTensor](node *graph.SoftmaxNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 1, 1); err != nil {
		return nil, err
	}
	f := &functions.Softmax[T]{}
	if err := f.Configure(info.Dispatcher(), inputTensor[T](node, 0), outputTensor[T](node, 0), node.Beta()); err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateReshapeLayer lowers a FlattenNode or a ReshapeNode.
func CreateReshapeLayer[T functions.NativeTensor](node graph.Node, info TargetInfo[T]) (backends.Function, error) {
	if node.Type() != graph.NodeTypeFlatten && node.Type() != graph.NodeTypeReshape {
		return nil, errors.Errorf("lowering %s: not a Flatten or Reshape node", node)
	}
	if err := ValidateNode(node, 1, 1); err != nil {
		return nil, err
	}
	f := &functions.Reshape[T]{}
	if err := f.Configure(info.Dispatcher(), inputTensor[T](node, 0), outputTensor[T](node, 0), node.Type()); err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateSplitLayer lowers a SplitNode. A disabled node (its outputs are sub-tensors of the
// input) needs no function and returns (nil, nil).
func CreateSplitLayer[T functions.NativeTensor](node *graph.SplitNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 1, node.NumSplits()); err != nil {
		return nil, err
	}
	if !node.IsEnabled() {
		return nil, nil
	}
	outputs := make([]T, node.NumOutputs())
	for idx := range outputs {
		outputs[idx] = outputTensor[T](node, idx)
	}
	f := &functions.Split[T]{}
	if err := f.Configure(info.Dispatcher(), inputTensor[T](node, 0), outputs, node.Axis()); err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateQuantizationLayer lowers a QuantizationNode.
func CreateQuantizationLayer[T functions.NativeTensor](node *graph.QuantizationNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 1, 1); err != nil {
		return nil, err
	}
	f := &functions.Quantization[T]{}
	if err := f.Configure(info.Dispatcher(), inputTensor[T](node, 0), outputTensor[T](node, 0)); err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreatePriorBoxLayer lowers a PriorBoxNode.
func CreatePriorBoxLayer[T functions.NativeTensor](node *graph.PriorBoxNode, info TargetInfo[T]) (backends.Function, error) {
	if err := ValidateNode(node, 2, 1); err != nil {
		return nil, err
	}
	f := &functions.PriorBox[T]{}
	err := f.Configure(info.Dispatcher(), inputTensor[T](node, 0), inputTensor[T](node, 1), outputTensor[T](node, 0), node.Info())
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

// CreateDetectionOutputLayer lowers a DetectionOutputNode. The returned function is a
// *functions.DetectionOutput[T].
func CreateDetectionOutputLayer[T functions.NativeTensor](node *graph.DetectionOutputNode, info TargetInfo[T]) (*functions.DetectionOutput[T], error) {
	if err := ValidateNode(node, 3, 1); err != nil {
		return nil, err
	}
	f := &functions.DetectionOutput[T]{}
	err := f.Configure(info.Dispatcher(), inputTensor[T](node, graph.DetectionLocation), inputTensor[T](node, graph.DetectionConfidence),
		inputTensor[T](node, graph.DetectionPriors), outputTensor[T](node, 0), node.Info())
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering %s", node)
	}
	logInstantiated(info.Target(), node, f.KernelName())
	return f, nil
}

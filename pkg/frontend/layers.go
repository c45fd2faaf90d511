// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"io"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/builder"
	"github.com/gomlx/nngraph/pkg/core/graph"
)

func params(s Builder, name string) builder.Params {
	return builder.Params{Name: name, Target: s.Hints().Target}
}

// tailPair returns output 0 of the tail, panicking if the builder has no tail yet.
func tailPair(s Builder, layer string) graph.NodeIdxPair {
	if s.Tail() == graph.EmptyNodeID {
		exceptions.Panicf("frontend: %s layer has no input, add an InputLayer first", layer)
	}
	return graph.NodeIdxPair{NodeID: s.Tail()}
}

// InputLayer adds a graph input, filled by Accessor before each execution.
type InputLayer struct {
	Name     string
	Desc     graph.TensorDescriptor
	Accessor graph.TensorAccessor
}

// Create implements Layer.
func (l *InputLayer) Create(s Builder) graph.NodeID {
	return builder.AddInputNode(s.Graph(), params(s, l.Name), l.Desc, l.Accessor)
}

// OutputLayer adds a graph output consuming the tail, read by Accessor after each execution.
//
// The tail is not moved: the output node has no outputs itself.
type OutputLayer struct {
	Name     string
	Accessor graph.TensorAccessor
}

// Create implements Layer.
func (l *OutputLayer) Create(s Builder) graph.NodeID {
	builder.AddOutputNode(s.Graph(), params(s, l.Name), tailPair(s, "Output"), l.Accessor)
	return s.Tail()
}

// ConvolutionLayer adds a convolution of Depth feature maps. The stream hints select the
// convolution method and the fast math hint.
type ConvolutionLayer struct {
	Name                      string
	KernelWidth, KernelHeight int
	Depth                     int
	Info                      graph.PadStrideInfo
	NumGroups                 int
	Weights, Bias             graph.TensorAccessor
	WeightsQuantization       graph.QuantizationInfo
	OutputQuantization        graph.QuantizationInfo
}

// Create implements Layer.
func (l *ConvolutionLayer) Create(s Builder) graph.NodeID {
	return builder.AddConvolutionNode(s.Graph(), params(s, l.Name), tailPair(s, "Convolution"), builder.ConvolutionParams{
		KernelWidth:         l.KernelWidth,
		KernelHeight:        l.KernelHeight,
		Depth:               l.Depth,
		Info:                l.Info,
		NumGroups:           l.NumGroups,
		Method:              s.Hints().ConvolutionMethod,
		FastMath:            s.Hints().FastMath,
		WeightsAccessor:     l.Weights,
		BiasAccessor:        l.Bias,
		WeightsQuantization: l.WeightsQuantization,
		OutputQuantization:  l.OutputQuantization,
	})
}

// DepthwiseConvolutionLayer adds a depthwise convolution.
type DepthwiseConvolutionLayer struct {
	Name                      string
	KernelWidth, KernelHeight int
	Info                      graph.PadStrideInfo
	DepthMultiplier           int
	Weights, Bias             graph.TensorAccessor
	WeightsQuantization       graph.QuantizationInfo
	OutputQuantization        graph.QuantizationInfo
}

// Create implements Layer.
func (l *DepthwiseConvolutionLayer) Create(s Builder) graph.NodeID {
	return builder.AddDepthwiseConvolutionNode(s.Graph(), params(s, l.Name), tailPair(s, "DepthwiseConvolution"), builder.DepthwiseConvolutionParams{
		KernelWidth:         l.KernelWidth,
		KernelHeight:        l.KernelHeight,
		Info:                l.Info,
		DepthMultiplier:     l.DepthMultiplier,
		WeightsAccessor:     l.Weights,
		BiasAccessor:        l.Bias,
		WeightsQuantization: l.WeightsQuantization,
		OutputQuantization:  l.OutputQuantization,
	})
}

// ActivationLayer adds an activation.
type ActivationLayer struct {
	Name               string
	Info               graph.ActivationInfo
	OutputQuantization graph.QuantizationInfo
}

// Create implements Layer.
func (l *ActivationLayer) Create(s Builder) graph.NodeID {
	return builder.AddActivationNode(s.Graph(), params(s, l.Name), tailPair(s, "Activation"), l.Info, l.OutputQuantization)
}

// BatchNormalizationLayer adds a batch normalization. Beta and Gamma are optional.
type BatchNormalizationLayer struct {
	Name                   string
	Mean, Var, Beta, Gamma graph.TensorAccessor
	Epsilon                float32
	FusedActivation        graph.ActivationInfo
}

// Create implements Layer.
func (l *BatchNormalizationLayer) Create(s Builder) graph.NodeID {
	return builder.AddBatchNormalizationNode(s.Graph(), params(s, l.Name), tailPair(s, "BatchNormalization"), l.Epsilon,
		builder.BatchNormalizationAccessors{Mean: l.Mean, Var: l.Var, Beta: l.Beta, Gamma: l.Gamma}, l.FusedActivation)
}

// PoolingLayer adds a pooling.
type PoolingLayer struct {
	Name string
	Info graph.PoolingInfo
}

// Create implements Layer.
func (l *PoolingLayer) Create(s Builder) graph.NodeID {
	return builder.AddPoolingNode(s.Graph(), params(s, l.Name), tailPair(s, "Pooling"), l.Info)
}

// FullyConnectedLayer adds a fully connected layer with NumOutputs outputs.
type FullyConnectedLayer struct {
	Name                string
	NumOutputs          int
	Weights, Bias       graph.TensorAccessor
	WeightsQuantization graph.QuantizationInfo
	OutputQuantization  graph.QuantizationInfo
}

// Create implements Layer.
func (l *FullyConnectedLayer) Create(s Builder) graph.NodeID {
	return builder.AddFullyConnectedNode(s.Graph(), params(s, l.Name), tailPair(s, "FullyConnected"), builder.FullyConnectedParams{
		NumOutputs:          l.NumOutputs,
		WeightsAccessor:     l.Weights,
		BiasAccessor:        l.Bias,
		WeightsQuantization: l.WeightsQuantization,
		OutputQuantization:  l.OutputQuantization,
	})
}

// SoftmaxLayer adds a softmax. A zero Beta is taken as 1.
type SoftmaxLayer struct {
	Name string
	Beta float32
}

// Create implements Layer.
func (l *SoftmaxLayer) Create(s Builder) graph.NodeID {
	beta := l.Beta
	if beta == 0 {
		beta = 1
	}
	return builder.AddSoftmaxNode(s.Graph(), params(s, l.Name), tailPair(s, "Softmax"), beta)
}

// FlattenLayer flattens all but the batch dimension.
type FlattenLayer struct {
	Name string
}

// Create implements Layer.
func (l *FlattenLayer) Create(s Builder) graph.NodeID {
	return builder.AddFlattenNode(s.Graph(), params(s, l.Name), tailPair(s, "Flatten"))
}

// ReshapeLayer reshapes to Dimensions.
type ReshapeLayer struct {
	Name       string
	Dimensions []int
}

// Create implements Layer.
func (l *ReshapeLayer) Create(s Builder) graph.NodeID {
	return builder.AddReshapeNode(s.Graph(), params(s, l.Name), tailPair(s, "Reshape"), l.Dimensions...)
}

// PrintLayer writes the values of the tail to Writer on every execution. Filter is optional.
type PrintLayer struct {
	Name   string
	Writer io.Writer
	Filter graph.PrintFilter
}

// Create implements Layer.
func (l *PrintLayer) Create(s Builder) graph.NodeID {
	return builder.AddPrintNode(s.Graph(), params(s, l.Name), tailPair(s, "Print"), graph.NewPrintNode(l.Writer, l.Filter))
}

// QuantizationLayer converts the tail to a quantized DType (Uint8 if not set).
type QuantizationLayer struct {
	Name         string
	Quantization graph.QuantizationInfo
	DType        dtypes.DType
}

// Create implements Layer.
func (l *QuantizationLayer) Create(s Builder) graph.NodeID {
	dtype := l.DType
	if dtype == dtypes.InvalidDType {
		dtype = dtypes.Uint8
	}
	return builder.AddQuantizationNode(s.Graph(), params(s, l.Name), tailPair(s, "Quantization"), l.Quantization, dtype)
}

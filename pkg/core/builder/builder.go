// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package builder has one function per operator, adding the node to a graph with its
// parameter constants (weights, biases, statistics) and connecting it to its inputs.
//
// Structural misuse (an input that is not in the graph) panics, like the graph's own indexing errors.
package builder

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
)

// Params are the common parameters of the nodes created by the builder functions.
type Params struct {
	// Name of the node. Parameter constants get it as prefix, e.g. "conv1/Weights".
	Name string

	// Target requested for the node. TargetUnspecified uses the graph's target.
	Target graph.Target
}

func (p Params) suffixed(suffix string) Params {
	if p.Name == "" {
		return p
	}
	return Params{Name: p.Name + "/" + suffix, Target: p.Target}
}

func checkInput(g *graph.Graph, input graph.NodeIdxPair) graph.Node {
	node := g.Node(input.NodeID)
	if node == nil {
		exceptions.Panicf("builder: input node %s is not in graph %q", input, g.Name())
	}
	if input.Index < 0 || input.Index >= node.NumOutputs() {
		exceptions.Panicf("builder: invalid output index for %s, node %s has %d outputs", input, node, node.NumOutputs())
	}
	return node
}

// inputDesc returns the descriptor of the tensor at input.
func inputDesc(g *graph.Graph, input graph.NodeIdxPair) graph.TensorDescriptor {
	return checkInput(g, input).Output(input.Index).Desc()
}

func addNode(g *graph.Graph, params Params, node graph.Node) graph.NodeID {
	node.SetName(params.Name)
	node.SetRequestedTarget(params.Target)
	return g.AddNode(node)
}

// addSimpleNode adds node and connects each input to the input slot of the same index.
func addSimpleNode(g *graph.Graph, params Params, node graph.Node, inputs ...graph.NodeIdxPair) graph.NodeID {
	for _, input := range inputs {
		checkInput(g, input)
	}
	nid := addNode(g, params, node)
	for idx, input := range inputs {
		g.AddConnection(input.NodeID, input.Index, nid, idx)
	}
	return nid
}

// AddConstNode adds a constant whose content is provided by accessor (which can be nil).
func AddConstNode(g *graph.Graph, params Params, desc graph.TensorDescriptor, accessor graph.TensorAccessor) graph.NodeID {
	nid := addNode(g, params, graph.NewConstNode(desc))
	g.Node(nid).Output(0).SetAccessor(accessor)
	return nid
}

// AddInputNode adds a graph input, filled by accessor at every execution.
func AddInputNode(g *graph.Graph, params Params, desc graph.TensorDescriptor, accessor graph.TensorAccessor) graph.NodeID {
	nid := addNode(g, params, graph.NewInputNode(desc))
	g.Node(nid).Output(0).SetAccessor(accessor)
	return nid
}

// AddOutputNode adds a graph output, consumed by accessor at every execution.
func AddOutputNode(g *graph.Graph, params Params, input graph.NodeIdxPair, accessor graph.TensorAccessor) graph.NodeID {
	nid := addSimpleNode(g, params, graph.NewOutputNode(), input)
	if t := g.Node(nid).Input(0); t != nil {
		t.SetAccessor(accessor)
	}
	return nid
}

// AddActivationNode adds an activation. outQuant may be empty.
func AddActivationNode(g *graph.Graph, params Params, input graph.NodeIdxPair, info graph.ActivationInfo, outQuant graph.QuantizationInfo) graph.NodeID {
	return addSimpleNode(g, params, graph.NewActivationNode(info, outQuant), input)
}

// BatchNormalizationAccessors provide the parameters of a batch normalization. Beta and Gamma are
// optional: their constants are only created if the accessor is set.
type BatchNormalizationAccessors struct {
	Mean, Var, Beta, Gamma graph.TensorAccessor
}

// channelParamDesc is the descriptor of a per-channel parameter of the input.
func channelParamDesc(input graph.TensorDescriptor, dtype dtypes.DType) graph.TensorDescriptor {
	return graph.TensorDescriptor{
		Shape:  shapes.Make(dtype, input.Dim(shapes.DimChannel)),
		Target: input.Target,
	}
}

// AddBatchNormalizationNode adds a batch normalization with its mean, variance and optionally beta and gamma constants.
func AddBatchNormalizationNode(g *graph.Graph, params Params, input graph.NodeIdxPair, epsilon float32,
	accessors BatchNormalizationAccessors, fusedActivation graph.ActivationInfo) graph.NodeID {
	desc := inputDesc(g, input)
	paramDesc := channelParamDesc(desc, desc.DType())
	mean := AddConstNode(g, params.suffixed("Mean"), paramDesc, accessors.Mean)
	variance := AddConstNode(g, params.suffixed("Variance"), paramDesc, accessors.Var)
	nid := addSimpleNode(g, params, graph.NewBatchNormalizationNode(epsilon, fusedActivation), input,
		graph.NodeIdxPair{NodeID: mean}, graph.NodeIdxPair{NodeID: variance})
	if accessors.Beta != nil {
		beta := AddConstNode(g, params.suffixed("Beta"), paramDesc, accessors.Beta)
		g.AddConnection(beta, 0, nid, graph.BatchNormBeta)
	}
	if accessors.Gamma != nil {
		gamma := AddConstNode(g, params.suffixed("Gamma"), paramDesc, accessors.Gamma)
		g.AddConnection(gamma, 0, nid, graph.BatchNormGamma)
	}
	return nid
}

// biasDType is Int32 for quantized inputs, otherwise the input data type.
func biasDType(input graph.TensorDescriptor) dtypes.DType {
	if input.IsQuantized() {
		return dtypes.Int32
	}
	return input.DType()
}

// ConvolutionParams configure AddConvolutionNode.
type ConvolutionParams struct {
	KernelWidth, KernelHeight int
	Depth                     int
	Info                      graph.PadStrideInfo
	NumGroups                 int
	Method                    graph.ConvolutionMethod
	FastMath                  graph.FastMathHint

	// WeightsAccessor provides the weights; BiasAccessor the bias, and no bias is created if nil.
	WeightsAccessor, BiasAccessor graph.TensorAccessor
	WeightsQuantization           graph.QuantizationInfo
	OutputQuantization            graph.QuantizationInfo
}

// AddConvolutionNode adds a convolution of Depth output feature maps, with its weights and optional bias.
//
// Weights have the input's layout with Batch = Depth and Channel = input channels / NumGroups.
func AddConvolutionNode(g *graph.Graph, params Params, input graph.NodeIdxPair, conv ConvolutionParams) graph.NodeID {
	desc := inputDesc(g, input)
	numGroups := max(conv.NumGroups, 1)
	weightsDesc := desc.Clone()
	weightsDesc.Shape = shapes.MakeWithLayout(desc.DType(), desc.Layout, conv.Depth,
		desc.Dim(shapes.DimChannel)/numGroups, conv.KernelHeight, conv.KernelWidth)
	weightsDesc.Quantization = conv.WeightsQuantization.Clone()
	weights := AddConstNode(g, params.suffixed("Weights"), weightsDesc, conv.WeightsAccessor)

	node := graph.NewConvolutionNode(conv.Info, numGroups, conv.Method, conv.FastMath, conv.OutputQuantization)
	nid := addSimpleNode(g, params, node, input, graph.NodeIdxPair{NodeID: weights})
	if conv.BiasAccessor != nil {
		biasDesc := graph.TensorDescriptor{Shape: shapes.Make(biasDType(desc), conv.Depth), Target: desc.Target}
		bias := AddConstNode(g, params.suffixed("Bias"), biasDesc, conv.BiasAccessor)
		g.AddConnection(bias, 0, nid, graph.ConvBias)
	}
	return nid
}

// DepthwiseConvolutionParams configure AddDepthwiseConvolutionNode.
type DepthwiseConvolutionParams struct {
	KernelWidth, KernelHeight     int
	Info                          graph.PadStrideInfo
	DepthMultiplier               int
	WeightsAccessor, BiasAccessor graph.TensorAccessor
	WeightsQuantization           graph.QuantizationInfo
	OutputQuantization            graph.QuantizationInfo
}

// AddDepthwiseConvolutionNode adds a depthwise convolution with its weights and optional bias.
func AddDepthwiseConvolutionNode(g *graph.Graph, params Params, input graph.NodeIdxPair, conv DepthwiseConvolutionParams) graph.NodeID {
	desc := inputDesc(g, input)
	multiplier := max(conv.DepthMultiplier, 1)
	channels := desc.Dim(shapes.DimChannel) * multiplier
	weightsDesc := desc.Clone()
	weightsDesc.Shape = shapes.MakeWithLayout(desc.DType(), desc.Layout, 1, channels, conv.KernelHeight, conv.KernelWidth)
	weightsDesc.Quantization = conv.WeightsQuantization.Clone()
	weights := AddConstNode(g, params.suffixed("Weights"), weightsDesc, conv.WeightsAccessor)

	node := graph.NewDepthwiseConvolutionNode(conv.Info, multiplier, conv.OutputQuantization)
	nid := addSimpleNode(g, params, node, input, graph.NodeIdxPair{NodeID: weights})
	if conv.BiasAccessor != nil {
		biasDesc := graph.TensorDescriptor{Shape: shapes.Make(biasDType(desc), channels), Target: desc.Target}
		bias := AddConstNode(g, params.suffixed("Bias"), biasDesc, conv.BiasAccessor)
		g.AddConnection(bias, 0, nid, graph.ConvBias)
	}
	return nid
}

// AddConcatenateNode adds a concatenation of inputs along axis.
func AddConcatenateNode(g *graph.Graph, params Params, inputs []graph.NodeIdxPair, axis shapes.DataLayoutDimension) graph.NodeID {
	return addSimpleNode(g, params, graph.NewConcatenateNode(len(inputs), axis), inputs...)
}

// AddEltwiseNode adds a binary element-wise operation.
func AddEltwiseNode(g *graph.Graph, params Params, lhs, rhs graph.NodeIdxPair, op graph.EltwiseOperation, outQuant graph.QuantizationInfo) graph.NodeID {
	return addSimpleNode(g, params, graph.NewEltwiseNode(op, outQuant), lhs, rhs)
}

// FullyConnectedParams configure AddFullyConnectedNode.
type FullyConnectedParams struct {
	NumOutputs                    int
	WeightsAccessor, BiasAccessor graph.TensorAccessor
	WeightsQuantization           graph.QuantizationInfo
	OutputQuantization            graph.QuantizationInfo
}

// AddFullyConnectedNode adds a fully connected layer with weights [NumOutputs, features] and optional bias.
func AddFullyConnectedNode(g *graph.Graph, params Params, input graph.NodeIdxPair, fc FullyConnectedParams) graph.NodeID {
	desc := inputDesc(g, input)
	features := desc.Shape.Size() / desc.Shape.Dim(0)
	weightsDesc := graph.TensorDescriptor{
		Shape:        shapes.Make(desc.DType(), fc.NumOutputs, features),
		Quantization: fc.WeightsQuantization.Clone(),
		Target:       desc.Target,
	}
	weights := AddConstNode(g, params.suffixed("Weights"), weightsDesc, fc.WeightsAccessor)
	nid := addSimpleNode(g, params, graph.NewFullyConnectedNode(fc.NumOutputs, fc.OutputQuantization), input, graph.NodeIdxPair{NodeID: weights})
	if fc.BiasAccessor != nil {
		biasDesc := graph.TensorDescriptor{Shape: shapes.Make(biasDType(desc), fc.NumOutputs), Target: desc.Target}
		bias := AddConstNode(g, params.suffixed("Bias"), biasDesc, fc.BiasAccessor)
		g.AddConnection(bias, 0, nid, graph.ConvBias)
	}
	return nid
}

// AddPoolingNode adds a pooling layer.
func AddPoolingNode(g *graph.Graph, params Params, input graph.NodeIdxPair, info graph.PoolingInfo) graph.NodeID {
	return addSimpleNode(g, params, graph.NewPoolingNode(info), input)
}

// AddSoftmaxNode adds a softmax layer.
func AddSoftmaxNode(g *graph.Graph, params Params, input graph.NodeIdxPair, beta float32) graph.NodeID {
	return addSimpleNode(g, params, graph.NewSoftmaxNode(beta), input)
}

// AddFlattenNode adds a flatten layer.
func AddFlattenNode(g *graph.Graph, params Params, input graph.NodeIdxPair) graph.NodeID {
	return addSimpleNode(g, params, graph.NewFlattenNode(), input)
}

// AddReshapeNode adds a reshape to the given dimensions.
func AddReshapeNode(g *graph.Graph, params Params, input graph.NodeIdxPair, dimensions ...int) graph.NodeID {
	return addSimpleNode(g, params, graph.NewReshapeNode(dimensions...), input)
}

// AddSplitNode adds a split in numSplits along axis.
func AddSplitNode(g *graph.Graph, params Params, input graph.NodeIdxPair, numSplits, axis int) graph.NodeID {
	return addSimpleNode(g, params, graph.NewSplitNode(numSplits, axis), input)
}

// AddPrintNode adds a debug print of the input tensor.
func AddPrintNode(g *graph.Graph, params Params, input graph.NodeIdxPair, node *graph.PrintNode) graph.NodeID {
	return addSimpleNode(g, params, node, input)
}

// AddQuantizationNode adds a conversion to the quantized dtype.
func AddQuantizationNode(g *graph.Graph, params Params, input graph.NodeIdxPair, outQuant graph.QuantizationInfo, dtype dtypes.DType) graph.NodeID {
	return addSimpleNode(g, params, graph.NewQuantizationNode(outQuant, dtype), input)
}

// AddPriorBoxNode adds the prior boxes of feature map for the given image.
func AddPriorBoxNode(g *graph.Graph, params Params, featureMap, image graph.NodeIdxPair, info graph.PriorBoxInfo) graph.NodeID {
	return addSimpleNode(g, params, graph.NewPriorBoxNode(info), featureMap, image)
}

// AddDetectionOutputNode adds the SSD detection output over locations, confidences and priors.
func AddDetectionOutputNode(g *graph.Graph, params Params, location, confidence, priors graph.NodeIdxPair, info graph.DetectionOutputInfo) graph.NodeID {
	return addSimpleNode(g, params, graph.NewDetectionOutputNode(info), location, confidence, priors)
}

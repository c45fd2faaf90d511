// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package builder

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopAccessor struct{}

func (nopAccessor) AccessTensor(graph.BackendTensor) bool { return true }
func (nopAccessor) AccessTensorData() bool                { return true }

func nchw(n, c, h, w int) graph.TensorDescriptor {
	return graph.MakeDescriptor(shapes.MakeWithLayout(dtypes.Float32, shapes.LayoutNCHW, n, c, h, w), shapes.LayoutNCHW)
}

func TestConvolutionWithParameters(t *testing.T) {
	g := graph.New(0, "conv")
	input := AddInputNode(g, Params{Name: "in"}, nchw(1, 8, 16, 16), nil)
	conv := AddConvolutionNode(g, Params{Name: "conv1", Target: graph.TargetCPU}, graph.NodeIdxPair{NodeID: input}, ConvolutionParams{
		KernelWidth: 3, KernelHeight: 3, Depth: 4, NumGroups: 2,
		Info:            graph.MakePadStride(1, 1, 1, 1),
		WeightsAccessor: nopAccessor{}, BiasAccessor: nopAccessor{},
	})
	node := g.Node(conv)
	assert.Equal(t, "conv1", node.Name())
	assert.Equal(t, graph.TargetCPU, node.RequestedTarget())

	weights := node.Input(graph.ConvWeights)
	require.NotNil(t, weights)
	assert.Equal(t, []int{4, 4, 3, 3}, weights.Desc().Shape.Dimensions)
	assert.NotNil(t, weights.Accessor())
	assert.Equal(t, "conv1/Weights", g.Edge(node.InputEdge(graph.ConvWeights)).Producer().Name())

	bias := node.Input(graph.ConvBias)
	require.NotNil(t, bias)
	assert.Equal(t, []int{4}, bias.Desc().Shape.Dimensions)
	assert.Equal(t, dtypes.Float32, bias.Desc().DType())

	out := node.Output(0).Desc()
	assert.Equal(t, []int{1, 4, 16, 16}, out.Shape.Dimensions)
	require.NoError(t, node.Validate())
}

func TestQuantizedBiasIsInt32(t *testing.T) {
	g := graph.New(0, "q")
	desc := nchw(1, 3, 8, 8).WithDType(dtypes.Uint8).WithQuantization(graph.MakeQuantizationInfo(0.5, 10))
	input := AddInputNode(g, Params{}, desc, nil)
	dw := AddDepthwiseConvolutionNode(g, Params{}, graph.NodeIdxPair{NodeID: input}, DepthwiseConvolutionParams{
		KernelWidth: 3, KernelHeight: 3, DepthMultiplier: 2,
		Info:         graph.MakePadStride(1, 1, 1, 1),
		BiasAccessor: nopAccessor{},
	})
	bias := g.Node(dw).Input(graph.ConvBias)
	require.NotNil(t, bias)
	assert.Equal(t, dtypes.Int32, bias.Desc().DType())
	assert.Equal(t, []int{6}, bias.Desc().Shape.Dimensions)
	assert.Equal(t, 6, g.Node(dw).Output(0).Desc().Dim(shapes.DimChannel))
}

func TestBatchNormalizationOptionalParams(t *testing.T) {
	g := graph.New(0, "bn")
	input := AddInputNode(g, Params{}, nchw(1, 5, 4, 4), nil)
	bn := AddBatchNormalizationNode(g, Params{Name: "bn"}, graph.NodeIdxPair{NodeID: input}, 0.001,
		BatchNormalizationAccessors{Mean: nopAccessor{}, Var: nopAccessor{}, Gamma: nopAccessor{}}, graph.ActivationInfo{})
	node := g.Node(bn)
	assert.NotNil(t, node.Input(graph.BatchNormMean))
	assert.NotNil(t, node.Input(graph.BatchNormVar))
	assert.Nil(t, node.Input(graph.BatchNormBeta))
	assert.NotNil(t, node.Input(graph.BatchNormGamma))
	assert.Equal(t, 5, node.Input(graph.BatchNormGamma).Desc().Shape.Size())
	require.NoError(t, node.Validate())
	assert.Len(t, g.NodesOfType(graph.NodeTypeConst), 3)
}

func TestFullyConnectedAndOutput(t *testing.T) {
	g := graph.New(0, "fc")
	input := AddInputNode(g, Params{}, nchw(2, 3, 2, 2), nil)
	flat := AddFlattenNode(g, Params{}, graph.NodeIdxPair{NodeID: input})
	fc := AddFullyConnectedNode(g, Params{}, graph.NodeIdxPair{NodeID: flat}, FullyConnectedParams{NumOutputs: 10})
	output := AddOutputNode(g, Params{}, graph.NodeIdxPair{NodeID: fc}, nopAccessor{})

	weights := g.Node(fc).Input(1)
	require.NotNil(t, weights)
	assert.Equal(t, []int{10, 12}, weights.Desc().Shape.Dimensions)
	assert.Nil(t, g.Node(fc).Input(graph.ConvBias))
	assert.Equal(t, []int{2, 10}, g.Node(fc).Output(0).Desc().Shape.Dimensions)
	assert.NotNil(t, g.Node(output).Input(0).Accessor())
}

func TestConcatAndSplit(t *testing.T) {
	g := graph.New(0, "cs")
	input := AddInputNode(g, Params{}, nchw(1, 6, 4, 4), nil)
	split := AddSplitNode(g, Params{}, graph.NodeIdxPair{NodeID: input}, 2, 1)
	concat := AddConcatenateNode(g, Params{}, []graph.NodeIdxPair{{NodeID: split, Index: 1}, {NodeID: split, Index: 0}}, shapes.DimChannel)
	assert.Equal(t, []int{1, 6, 4, 4}, g.Node(concat).Output(0).Desc().Shape.Dimensions)
	assert.Equal(t, 3, g.Node(split).Output(1).Desc().Dim(shapes.DimChannel))
}

func TestInvalidInputPanics(t *testing.T) {
	g := graph.New(0, "bad")
	require.Panics(t, func() { AddActivationNode(g, Params{}, graph.NodeIdxPair{NodeID: 7}, graph.ActivationInfo{}, graph.QuantizationInfo{}) })
	input := AddInputNode(g, Params{}, nchw(1, 1, 1, 1), nil)
	require.Panics(t, func() { AddSoftmaxNode(g, Params{}, graph.NodeIdxPair{NodeID: input, Index: 1}, 1) })
}

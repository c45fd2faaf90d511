// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/backends/cpu"
	"github.com/gomlx/nngraph/pkg/accessors"
	"github.com/gomlx/nngraph/pkg/core/builder"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nchw(n, c, h, w int) graph.TensorDescriptor {
	return graph.MakeDescriptor(shapes.MakeWithLayout(dtypes.Float32, shapes.LayoutNCHW, n, c, h, w), shapes.LayoutNCHW)
}

func pair(nid graph.NodeID) graph.NodeIdxPair { return graph.NodeIdxPair{NodeID: nid} }

// consumersOf returns the consumers of output 0 of nid.
func consumersOf(g *graph.Graph, nid graph.NodeID) []graph.NodeIdxPair {
	return graph.DrivingNodesIdx(g.Node(nid), 0)
}

// producer returns the node connected to input idx of nid.
func producer(g *graph.Graph, nid graph.NodeID, idx int) graph.Node {
	p, ok := producerOf(g.Node(nid), idx)
	if !ok {
		return nil
	}
	return g.Node(p.NodeID)
}

type recordingMutator struct {
	name         string
	mutationType MutationType
	log          *[]string
	err          error
}

func (m *recordingMutator) Name() string       { return m.name }
func (m *recordingMutator) Type() MutationType { return m.mutationType }

func (m *recordingMutator) Mutate(*graph.Graph) error {
	*m.log = append(*m.log, m.name)
	return m.err
}

func TestPassManager(t *testing.T) {
	var log []string
	pm := NewPassManager()
	pm.Append(&recordingMutator{name: "backend1", mutationType: MutationTypeBackend, log: &log})
	pm.Append(&recordingMutator{name: "ir1", mutationType: MutationTypeIR, log: &log})
	pm.Append(&recordingMutator{name: "skipped", mutationType: MutationTypeIR, log: &log}, true, false)
	pm.Append(&recordingMutator{name: "ir2", mutationType: MutationTypeIR, log: &log}, true)
	require.Len(t, pm.Passes(), 3)
	assert.Nil(t, pm.Pass(3))
	assert.Equal(t, "ir1", pm.Pass(1).Name())

	g := graph.New(0, "empty")
	require.NoError(t, pm.RunAll(g))
	assert.Equal(t, []string{"ir1", "ir2", "backend1"}, log)

	log = nil
	require.NoError(t, pm.RunType(g, MutationTypeBackend))
	require.NoError(t, pm.RunIndex(g, 7))
	assert.Equal(t, []string{"backend1"}, log)

	pm.Append(&recordingMutator{name: "failing", mutationType: MutationTypeIR, log: &log, err: errors.New("boom")})
	err := pm.RunAll(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, "IR", MutationTypeIR.String())

	pm.Clear()
	assert.Empty(t, pm.Passes())
}

func TestDefaultPassManager(t *testing.T) {
	names := func(pm *PassManager) []string {
		var ns []string
		for _, m := range pm.Passes() {
			ns = append(ns, m.Name())
		}
		return ns
	}
	cfg := graph.DefaultConfig()
	assert.Equal(t, []string{"NodeFusionMutator", "InPlaceOperationMutator", "DepthConcatSubTensorMutator",
		"SplitLayerSubTensorMutator", "ConvolutionMethodMutator"}, names(DefaultPassManager(graph.TargetCPU, cfg)))
	cfg.UseSyntheticType = true
	assert.Equal(t, "SyntheticDataTypeMutator", DefaultPassManager(graph.TargetCPU, cfg).Pass(0).Name())
}

// quantizableGraph: input -> conv -> bn -> logistic -> fc -> softmax -> output.
func quantizableGraph() (g *graph.Graph, conv, bn, act, fc, softmax graph.NodeID) {
	g = graph.New(0, "quantizable")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, nchw(1, 2, 8, 8), nil)
	conv = builder.AddConvolutionNode(g, p, pair(in), builder.ConvolutionParams{KernelWidth: 3, KernelHeight: 3, Depth: 4, Info: graph.MakePadStride(1, 1, 1, 1)})
	bn = builder.AddBatchNormalizationNode(g, p, pair(conv), 0.001, builder.BatchNormalizationAccessors{}, graph.ActivationInfo{})
	act = builder.AddActivationNode(g, p, pair(bn), graph.MakeActivation(graph.ActivationLogistic, 0, 0), graph.QuantizationInfo{})
	fc = builder.AddFullyConnectedNode(g, p, pair(act), builder.FullyConnectedParams{NumOutputs: 3})
	softmax = builder.AddSoftmaxNode(g, p, pair(fc), 1)
	builder.AddOutputNode(g, p, pair(softmax), nil)
	return
}

func TestSyntheticDataType(t *testing.T) {
	g, conv, bn, act, fc, softmax := quantizableGraph()
	numConsts := len(g.NodesOfType(graph.NodeTypeConst))
	require.NoError(t, NewSyntheticDataTypeMutator(dtypes.Uint8).Mutate(g))

	assert.Nil(t, g.Node(bn))
	assert.Empty(t, g.NodesOfType(graph.NodeTypeBatchNormalization))
	assert.Equal(t, conv, producer(g, act, 0).ID(), "activation reconnected to the convolution")
	// Mean and variance removed, two zero biases added.
	assert.Len(t, g.NodesOfType(graph.NodeTypeConst), numConsts-2+2)

	require.NoError(t, graph.ForwardAllDescriptors(g, 0))
	synthetic := graph.MakeQuantizationInfo(0.125, -10)
	convOut := g.Node(conv).Output(0).Desc()
	assert.Equal(t, dtypes.Uint8, convOut.DType())
	assert.True(t, synthetic.Equal(convOut.Quantization))
	assert.True(t, graph.MakeQuantizationInfo(1.0/256, 0).Equal(g.Node(act).Output(0).Desc().Quantization))
	assert.True(t, graph.MakeQuantizationInfo(1.0/256, 0).Equal(g.Node(softmax).Output(0).Desc().Quantization))
	for _, nid := range []graph.NodeID{conv, fc} {
		bias := g.Node(nid).Input(graph.ConvBias)
		require.NotNil(t, bias, "bias added to %s", g.Node(nid))
		assert.Equal(t, dtypes.Int32, bias.Desc().DType())
		assert.IsType(t, accessors.Fill{}, bias.Accessor())
	}
	assert.Equal(t, []int{4}, g.Node(conv).Input(graph.ConvBias).Desc().Shape.Dimensions)
	assert.Equal(t, []int{3}, g.Node(fc).Input(graph.ConvBias).Desc().Shape.Dimensions)
	require.NoError(t, g.Node(conv).Validate())
	require.NoError(t, g.Node(fc).Validate())
	for _, tensor := range g.Tensors() {
		if tensor != nil {
			assert.NotEqual(t, dtypes.Float32, tensor.Desc().DType(), "tensor #%d", tensor.ID())
		}
	}

	// Int8 quantization.
	g, conv, _, act, _, _ = quantizableGraph()
	require.NoError(t, NewSyntheticDataTypeMutator(dtypes.Int8).Mutate(g))
	require.NoError(t, graph.ForwardAllDescriptors(g, 0))
	assert.True(t, graph.MakeQuantizationInfo(0.125, 10).Equal(g.Node(conv).Output(0).Desc().Quantization))
	assert.True(t, graph.MakeQuantizationInfo(1.0/256, -128).Equal(g.Node(act).Output(0).Desc().Quantization))
}

func TestSyntheticDataTypeAddsMissingBiases(t *testing.T) {
	// The batch normalization sits before the convolutions, so they are visited after its
	// removal left empty slots in the graph.
	g := graph.New(0, "biases")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, nchw(1, 3, 6, 6), accessors.Empty{})
	bn := builder.AddBatchNormalizationNode(g, p, pair(in), 0.001, builder.BatchNormalizationAccessors{}, graph.ActivationInfo{})
	depthwise := builder.AddDepthwiseConvolutionNode(g, p, pair(bn), builder.DepthwiseConvolutionParams{KernelWidth: 3, KernelHeight: 3, DepthMultiplier: 2})
	conv := builder.AddConvolutionNode(g, p, pair(depthwise), builder.ConvolutionParams{KernelWidth: 1, KernelHeight: 1, Depth: 5})
	builder.AddOutputNode(g, p, pair(conv), nil)
	require.NotPanics(t, func() { require.NoError(t, NewSyntheticDataTypeMutator(dtypes.Int8).Mutate(g)) })

	assert.Nil(t, g.Node(bn))
	assert.Equal(t, in, producer(g, depthwise, graph.ConvInput).ID())
	require.NoError(t, graph.ForwardAllDescriptors(g, 0))
	for nid, channels := range map[graph.NodeID]int{depthwise: 6, conv: 5} {
		bias := g.Node(nid).Input(graph.ConvBias)
		require.NotNil(t, bias, "bias added to %s", g.Node(nid))
		assert.Equal(t, dtypes.Int32, bias.Desc().DType())
		assert.Equal(t, []int{channels}, bias.Desc().Shape.Dimensions)
		require.NoError(t, g.Node(nid).Validate())
	}
	assert.Equal(t, []int{1, 5, 4, 4}, g.Node(conv).Output(0).Desc().Shape.Dimensions)
	assert.Equal(t, dtypes.Int8, g.Node(conv).Output(0).Desc().DType())
	require.NoError(t, graph.CheckIntegrity(g))
}

func TestSyntheticDataTypeGates(t *testing.T) {
	// Unsupported data type: error, graph untouched.
	g, _, bn, _, _, _ := quantizableGraph()
	require.Error(t, NewSyntheticDataTypeMutator(dtypes.Float16).Mutate(g))
	assert.NotNil(t, g.Node(bn))

	// Graphs with prior boxes are not converted.
	g, _, bn, _, _, _ = quantizableGraph()
	image := builder.AddInputNode(g, builder.Params{}, nchw(1, 3, 32, 32), nil)
	builder.AddPriorBoxNode(g, builder.Params{}, pair(bn), pair(image), graph.PriorBoxInfo{MinSizes: []float32{8}})
	require.NoError(t, NewSyntheticDataTypeMutator(dtypes.Uint8).Mutate(g))
	assert.NotNil(t, g.Node(bn))
	for _, tensor := range g.Tensors() {
		if tensor != nil && tensor.Desc().Ok() {
			assert.NotEqual(t, dtypes.Uint8, tensor.Desc().DType())
		}
	}
}

func TestBatchNormalizationRemovalKeepsFanOut(t *testing.T) {
	g := graph.New(0, "fanout")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, nchw(1, 2, 4, 4), nil)
	bn := builder.AddBatchNormalizationNode(g, p, pair(in), 0.001, builder.BatchNormalizationAccessors{}, graph.ActivationInfo{})
	a := builder.AddActivationNode(g, p, pair(bn), graph.MakeActivation(graph.ActivationReLU, 0, 0), graph.QuantizationInfo{})
	b := builder.AddEltwiseNode(g, p, pair(in), pair(bn), graph.EltwiseAdd, graph.QuantizationInfo{})
	c := builder.AddOutputNode(g, p, pair(bn), nil)
	require.NoError(t, NewSyntheticDataTypeMutator(dtypes.Uint8).Mutate(g))

	consumers := consumersOf(g, in)
	assert.ElementsMatch(t, []graph.NodeIdxPair{{NodeID: a, Index: 0}, {NodeID: b, Index: 0}, {NodeID: b, Index: 1}, {NodeID: c, Index: 0}}, consumers)
	require.NoError(t, graph.CheckIntegrity(g))
}

func TestFuseConvolutionBatchNormalizationActivation(t *testing.T) {
	g := graph.New(0, "fuse")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, nchw(1, 2, 8, 8), nil)
	conv := builder.AddConvolutionNode(g, builder.Params{Name: "conv"}, pair(in), builder.ConvolutionParams{KernelWidth: 3, KernelHeight: 3, Depth: 4, Info: graph.MakePadStride(1, 1, 1, 1)})
	bn := builder.AddBatchNormalizationNode(g, builder.Params{Name: "bn"}, pair(conv), 0.001, builder.BatchNormalizationAccessors{}, graph.ActivationInfo{})
	relu := builder.AddActivationNode(g, p, pair(bn), graph.MakeActivation(graph.ActivationReLU, 0, 0), graph.QuantizationInfo{})
	out := builder.AddOutputNode(g, p, pair(relu), nil)
	require.NoError(t, NewNodeFusionMutator().Mutate(g))

	assert.Empty(t, g.NodesOfType(graph.NodeTypeConvolution))
	assert.Empty(t, g.NodesOfType(graph.NodeTypeBatchNormalization))
	assert.Empty(t, g.NodesOfType(graph.NodeTypeActivation))
	fusedIDs := g.NodesOfType(graph.NodeTypeFusedConvolutionBatchNormalization)
	require.Len(t, fusedIDs, 1)
	fused := g.Node(fusedIDs[0]).(*graph.FusedConvolutionBatchNormalizationNode)
	assert.Equal(t, "conv+bn", fused.Name())
	assert.Equal(t, graph.ActivationReLU, fused.FusedActivation().Function)
	assert.True(t, fused.FusedActivation().Enabled)
	assert.Equal(t, fused.ID(), producer(g, out, 0).ID())
	assert.Equal(t, in, producer(g, fused.ID(), graph.ConvInput).ID())
	for _, slot := range []int{graph.ConvWeights, graph.FusedConvMean, graph.FusedConvVar} {
		assert.Equal(t, graph.NodeTypeConst, producer(g, fused.ID(), slot).Type())
	}
	assert.Nil(t, fused.Input(graph.ConvBias))
	require.NoError(t, graph.ForwardAllDescriptors(g, 0))
	require.NoError(t, fused.Validate())
	require.NoError(t, graph.CheckIntegrity(g))
}

func TestFusionRequiresSingleConsumer(t *testing.T) {
	g := graph.New(0, "nofuse")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, nchw(1, 2, 8, 8), nil)
	conv := builder.AddConvolutionNode(g, p, pair(in), builder.ConvolutionParams{KernelWidth: 1, KernelHeight: 1, Depth: 2})
	builder.AddBatchNormalizationNode(g, p, pair(conv), 0.001, builder.BatchNormalizationAccessors{}, graph.ActivationInfo{})
	builder.AddOutputNode(g, p, pair(conv), nil)
	require.NoError(t, NewNodeFusionMutator().Mutate(g))
	assert.Len(t, g.NodesOfType(graph.NodeTypeConvolution), 1)
	assert.Len(t, g.NodesOfType(graph.NodeTypeBatchNormalization), 1)
}

func TestFuseActivationKeepsFanOut(t *testing.T) {
	g := graph.New(0, "fanout")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, graph.MakeDescriptor(shapes.Make(dtypes.Float32, 1, 16), shapes.LayoutUnknown), nil)
	fc := builder.AddFullyConnectedNode(g, p, pair(in), builder.FullyConnectedParams{NumOutputs: 8})
	relu := builder.AddActivationNode(g, p, pair(fc), graph.MakeActivation(graph.ActivationBoundedReLU, 6, 0), graph.QuantizationInfo{})
	softmax := builder.AddSoftmaxNode(g, p, pair(relu), 1)
	add := builder.AddEltwiseNode(g, p, pair(relu), pair(relu), graph.EltwiseAdd, graph.QuantizationInfo{})
	out := builder.AddOutputNode(g, p, pair(relu), accessors.Empty{})
	require.NoError(t, NewNodeFusionMutator().Mutate(g))

	assert.Nil(t, g.Node(relu))
	fcNode := g.Node(fc).(*graph.FullyConnectedNode)
	assert.Equal(t, graph.ActivationBoundedReLU, fcNode.FusedActivation().Function)
	assert.ElementsMatch(t, []graph.NodeIdxPair{{NodeID: softmax, Index: 0}, {NodeID: add, Index: 0}, {NodeID: add, Index: 1}, {NodeID: out, Index: 0}},
		consumersOf(g, fc))
	assert.Len(t, g.Node(fc).OutputEdges(), 4)
	require.NoError(t, graph.CheckIntegrity(g))
}

func TestNoActivationFusionIntoQuantizedEltwise(t *testing.T) {
	g := graph.New(0, "quantized")
	p := builder.Params{}
	desc := graph.MakeDescriptor(shapes.Make(dtypes.Uint8, 1, 16), shapes.LayoutUnknown).WithQuantization(graph.MakeQuantizationInfo(0.5, 0))
	a := builder.AddInputNode(g, p, desc, nil)
	b := builder.AddInputNode(g, p, desc, nil)
	add := builder.AddEltwiseNode(g, p, pair(a), pair(b), graph.EltwiseAdd, graph.QuantizationInfo{})
	relu := builder.AddActivationNode(g, p, pair(add), graph.MakeActivation(graph.ActivationReLU, 0, 0), graph.QuantizationInfo{})
	builder.AddOutputNode(g, p, pair(relu), nil)
	require.NoError(t, NewNodeFusionMutator().Mutate(g))
	assert.NotNil(t, g.Node(relu))
}

func TestInPlaceOperation(t *testing.T) {
	g := graph.New(0, "inplace")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, nchw(1, 2, 4, 4), accessors.Empty{})
	direct := builder.AddActivationNode(g, p, pair(in), graph.MakeActivation(graph.ActivationReLU, 0, 0), graph.QuantizationInfo{})
	conv := builder.AddConvolutionNode(g, p, pair(direct), builder.ConvolutionParams{KernelWidth: 1, KernelHeight: 1, Depth: 2})
	relu := builder.AddActivationNode(g, p, pair(conv), graph.MakeActivation(graph.ActivationReLU, 0, 0), graph.QuantizationInfo{})
	outAccessor := accessors.NewOutputBuffer()
	out := builder.AddOutputNode(g, p, pair(relu), outAccessor)
	previous := g.Node(relu).OutputID(0)
	require.NoError(t, NewInPlaceOperationMutator().Mutate(g))

	convOut := g.Node(conv).OutputID(0)
	assert.Equal(t, convOut, g.Node(relu).OutputID(0))
	assert.Equal(t, convOut, g.Node(out).InputID(0))
	assert.Nil(t, g.Tensor(previous))
	assert.Same(t, outAccessor, g.Tensor(convOut).Accessor())

	// The input has an accessor: not in-place.
	assert.NotEqual(t, g.Node(in).OutputID(0), g.Node(direct).OutputID(0))
	require.NoError(t, graph.CheckIntegrity(g))
}

// configureTensors creates CPU handles for all the tensors of g.
func configureTensors(t *testing.T, g *graph.Graph) backends.Backend {
	b := must.M1(backends.Get(graph.TargetCPU))
	for _, tensor := range g.Tensors() {
		if tensor != nil {
			tensor.SetHandle(must.M1(b.CreateTensor(tensor)))
		}
	}
	return b
}

func TestDepthConcatSubTensor(t *testing.T) {
	g := graph.New(0, "concat")
	p := builder.Params{}
	a := builder.AddInputNode(g, p, nchw(1, 2, 4, 4), nil)
	b := builder.AddInputNode(g, p, nchw(1, 3, 4, 4), nil)
	concat := builder.AddConcatenateNode(g, p, []graph.NodeIdxPair{pair(a), pair(b)}, shapes.DimChannel)
	builder.AddOutputNode(g, p, pair(concat), nil)
	configureTensors(t, g)
	require.NoError(t, NewDepthConcatSubTensorMutator().Mutate(g))

	node := g.Node(concat).(*graph.ConcatenateNode)
	assert.False(t, node.IsEnabled())
	outHandle := node.Output(0).Handle()
	for idx, offset := range []int{0, 2 * 4 * 4} {
		handle := node.Input(idx).Handle()
		require.True(t, handle.IsSubTensor())
		assert.Same(t, outHandle, handle.Parent())
		assert.Equal(t, offset, handle.Tensor().(*cpu.Tensor).Offset())
	}
}

func TestDepthConcatSubTensorSkipsNonContiguous(t *testing.T) {
	g := graph.New(0, "batched")
	p := builder.Params{}
	a := builder.AddInputNode(g, p, nchw(2, 2, 4, 4), nil)
	b := builder.AddInputNode(g, p, nchw(2, 3, 4, 4), nil)
	concat := builder.AddConcatenateNode(g, p, []graph.NodeIdxPair{pair(a), pair(b)}, shapes.DimChannel)
	configureTensors(t, g)
	require.NoError(t, NewDepthConcatSubTensorMutator().Mutate(g))
	assert.True(t, g.Node(concat).(*graph.ConcatenateNode).IsEnabled())
	assert.False(t, g.Node(a).Output(0).Handle().IsSubTensor())
}

func TestSplitLayerSubTensor(t *testing.T) {
	g := graph.New(0, "split")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, nchw(1, 4, 2, 2), nil)
	split := builder.AddSplitNode(g, p, pair(in), 2, 1)
	configureTensors(t, g)
	require.NoError(t, NewSplitLayerSubTensorMutator().Mutate(g))

	node := g.Node(split).(*graph.SplitNode)
	assert.False(t, node.IsEnabled())
	inHandle := g.Node(in).Output(0).Handle()
	for idx, offset := range []int{0, 8} {
		handle := node.Output(idx).Handle()
		require.True(t, handle.IsSubTensor())
		assert.Same(t, inHandle, handle.Parent())
		assert.Equal(t, offset, handle.Tensor().(*cpu.Tensor).Offset())
	}
}

func TestConvolutionMethodFallback(t *testing.T) {
	g := graph.New(0, "method")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, nchw(1, 2, 8, 8), nil)
	conv := builder.AddConvolutionNode(g, p, pair(in), builder.ConvolutionParams{KernelWidth: 5, KernelHeight: 5, Depth: 2,
		Method: graph.ConvolutionMethodWinograd})
	direct := builder.AddConvolutionNode(g, p, pair(in), builder.ConvolutionParams{KernelWidth: 1, KernelHeight: 1, Depth: 2,
		Method: graph.ConvolutionMethodDirect})
	for _, nid := range []graph.NodeID{conv, direct} {
		g.Node(nid).SetAssignedTarget(graph.TargetCPU)
	}
	require.NoError(t, NewConvolutionMethodMutator().Mutate(g))
	assert.Equal(t, graph.ConvolutionMethodDefault, g.Node(conv).(*graph.ConvolutionNode).ConvolutionMethod())
	assert.Equal(t, graph.ConvolutionMethodDirect, g.Node(direct).(*graph.ConvolutionNode).ConvolutionMethod())
}

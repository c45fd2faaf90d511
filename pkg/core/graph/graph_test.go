// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math/rand"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

func nchw(dims ...int) TensorDescriptor {
	return MakeDescriptor(shapes.Make(dtypes.Float32, dims...), shapes.LayoutNCHW)
}

// buildConvChain builds input -> convolution -> activation -> pooling -> output and returns the node ids.
func buildConvChain(t *testing.T) (g *Graph, input, conv, act, pool, output NodeID) {
	g = New(0, "chain")
	input = g.AddNode(NewInputNode(nchw(1, 3, 32, 32)))
	weights := g.AddNode(NewConstNode(nchw(16, 3, 3, 3)))
	bias := g.AddNode(NewConstNode(MakeDescriptor(shapes.Make(dtypes.Float32, 16), shapes.LayoutUnknown)))
	conv = g.AddNode(NewConvolutionNode(MakePadStride(1, 1, 1, 1), 1, ConvolutionMethodDefault, FastMathDisabled, QuantizationInfo{}))
	require.NotEqual(t, EmptyEdgeID, g.AddConnection(input, 0, conv, ConvInput))
	require.NotEqual(t, EmptyEdgeID, g.AddConnection(weights, 0, conv, ConvWeights))
	require.NotEqual(t, EmptyEdgeID, g.AddConnection(bias, 0, conv, ConvBias))
	act = g.AddNode(NewActivationNode(MakeActivation(ActivationReLU, 0, 0), QuantizationInfo{}))
	g.AddConnection(conv, 0, act, 0)
	pool = g.AddNode(NewPoolingNode(PoolingInfo{Type: PoolingMax, PoolWidth: 2, PoolHeight: 2, PadStride: MakePadStride(2, 2, 0, 0)}))
	g.AddConnection(act, 0, pool, 0)
	output = g.AddNode(NewOutputNode())
	g.AddConnection(pool, 0, output, 0)
	return
}

func TestAddNodeAndConnection(t *testing.T) {
	g, input, conv, act, pool, output := buildConvChain(t)
	require.NoError(t, CheckIntegrity(g))
	assert.Equal(t, 7, g.NumNodes())
	assert.Equal(t, []NodeID{input}, g.Inputs())
	assert.Equal(t, []NodeID{output}, g.Outputs())

	// Descriptors are forwarded as connections are made.
	assert.Equal(t, []int{1, 16, 32, 32}, g.Node(conv).Output(0).Desc().Shape.Dimensions)
	assert.Equal(t, []int{1, 16, 32, 32}, g.Node(act).Output(0).Desc().Shape.Dimensions)
	assert.Equal(t, []int{1, 16, 16, 16}, g.Node(pool).Output(0).Desc().Shape.Dimensions)

	// Edges and bound tensors mirror each other.
	actNode := g.Node(act)
	e := g.Edge(actNode.InputEdge(0))
	require.NotNil(t, e)
	assert.Equal(t, conv, e.ProducerID())
	assert.Equal(t, act, e.ConsumerID())
	assert.Equal(t, g.Node(conv).OutputID(0), e.TensorID())
	assert.Equal(t, []EdgeID{e.ID()}, e.Tensor().BoundEdges())
	assert.Equal(t, []EdgeID{e.ID()}, g.Node(conv).OutputEdges())
	assert.Equal(t, g.Node(conv).OutputID(0), actNode.InputID(0))

	// Absent lookups are nil.
	assert.Nil(t, g.Node(100))
	assert.Nil(t, g.Edge(-1))
	assert.Nil(t, g.Tensor(NullTensorID))
	assert.Equal(t, EmptyEdgeID, g.AddConnection(100, 0, act, 0))
	assert.Contains(t, g.String(), "Convolution#")
}

func TestAddConnectionReplacesInput(t *testing.T) {
	g := New(0, "replace")
	a := g.AddNode(NewInputNode(nchw(1, 4, 8, 8)))
	b := g.AddNode(NewInputNode(nchw(1, 4, 8, 8)))
	act := g.AddNode(NewActivationNode(MakeActivation(ActivationTanh, 0, 0), QuantizationInfo{}))

	e1 := g.AddConnection(a, 0, act, 0)
	assert.Equal(t, e1, g.AddConnection(a, 0, act, 0), "duplicate connection must return the existing edge")
	e2 := g.AddConnection(b, 0, act, 0)
	assert.NotEqual(t, e1, e2)
	assert.Nil(t, g.Edge(e1))
	assert.Empty(t, g.Node(a).OutputEdges())
	assert.Empty(t, g.Node(a).Output(0).BoundEdges())
	assert.Equal(t, e2, g.Node(act).InputEdge(0))
	require.NoError(t, CheckIntegrity(g))

	assert.True(t, g.RemoveConnection(e2))
	assert.False(t, g.RemoveConnection(e2))
	assert.Equal(t, EmptyEdgeID, g.Node(act).InputEdge(0))
	require.NoError(t, CheckIntegrity(g))
}

func TestRemoveNode(t *testing.T) {
	g, _, conv, act, pool, _ := buildConvChain(t)
	actOutput := g.Node(act).OutputID(0)
	assert.True(t, g.RemoveNode(act))
	assert.False(t, g.RemoveNode(act), "removing twice is a no-op")
	assert.False(t, g.RemoveNode(1000))
	assert.Nil(t, g.Node(act))
	assert.Nil(t, g.Tensor(actOutput), "orphan output tensor is removed")
	assert.Empty(t, g.Node(conv).OutputEdges())
	assert.Equal(t, EmptyEdgeID, g.Node(pool).InputEdge(0))
	assert.Empty(t, g.NodesOfType(NodeTypeActivation))
	require.NoError(t, CheckIntegrity(g))
}

func TestReferentialIntegrity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := New(0, "random")
	desc := nchw(1, 2, 4, 4)
	var live []NodeID
	for step := range 500 {
		switch op := rng.Intn(4); {
		case op == 0 || len(live) < 2:
			var nid NodeID
			if rng.Intn(3) == 0 {
				nid = g.AddNode(NewInputNode(desc))
			} else {
				nid = g.AddNode(NewEltwiseNode(EltwiseAdd, QuantizationInfo{}))
			}
			live = append(live, nid)
		case op == 1 || op == 2:
			src := live[rng.Intn(len(live))]
			dst := live[rng.Intn(len(live))]
			if g.Node(dst).NumInputs() == 0 || src == dst {
				continue
			}
			g.AddConnection(src, 0, dst, rng.Intn(g.Node(dst).NumInputs()))
		default:
			idx := rng.Intn(len(live))
			require.True(t, g.RemoveNode(live[idx]))
			live = append(live[:idx], live[idx+1:]...)
		}
		require.NoErrorf(t, CheckIntegrity(g), "integrity broken at step %d", step)
		for _, e := range g.Edges() {
			if e == nil {
				continue
			}
			assert.NotNil(t, g.Node(e.ProducerID()))
			assert.NotNil(t, g.Node(e.ConsumerID()))
		}
	}
}

func TestSetOutputTensorIdempotent(t *testing.T) {
	g := New(0, "rebind")
	in := g.AddNode(NewInputNode(nchw(1, 2, 4, 4)))
	act := g.AddNode(NewActivationNode(MakeActivation(ActivationReLU, 0, 0), QuantizationInfo{}))
	out1 := g.AddNode(NewOutputNode())
	out2 := g.AddNode(NewOutputNode())
	g.AddConnection(in, 0, act, 0)
	e1 := g.AddConnection(act, 0, out1, 0)
	e2 := g.AddConnection(act, 0, out2, 0)

	oldTid := g.Node(act).OutputID(0)
	newTid := g.CreateTensor(nchw(1, 2, 4, 4))
	node := g.Node(act)
	node.SetOutputTensor(newTid, 0)
	boundOnce := g.Tensor(newTid).BoundEdges()
	node.SetOutputTensor(newTid, 0)
	assert.Equal(t, boundOnce, g.Tensor(newTid).BoundEdges())
	assert.Equal(t, []EdgeID{e1, e2}, boundOnce)
	assert.Equal(t, newTid, node.OutputID(0))
	assert.Empty(t, g.Tensor(oldTid).BoundEdges())
	assert.Equal(t, newTid, g.Edge(e1).TensorID())
	require.NoError(t, CheckIntegrity(g))

	// Invalid rebinds are ignored.
	node.SetOutputTensor(NullTensorID, 0)
	node.SetOutputTensor(newTid, 3)
	assert.Equal(t, newTid, node.OutputID(0))
}

func TestForwardAllDescriptors(t *testing.T) {
	g, _, conv, act, pool, _ := buildConvChain(t)
	// Reset the intermediate descriptors, and resolve them again in one pass.
	for _, nid := range []NodeID{conv, act, pool} {
		g.Node(nid).Output(0).SetDesc(TensorDescriptor{})
	}
	require.NoError(t, ForwardAllDescriptors(g, 0))
	for _, tensor := range g.Tensors() {
		if tensor != nil && len(tensor.BoundEdges()) > 0 {
			assert.Truef(t, tensor.Desc().Ok(), "tensor %s not resolved", tensor)
		}
	}
	assert.Equal(t, shapes.Make(dtypes.Float32, 1, 16, 16, 16), g.Node(pool).Output(0).Desc().Shape)

	// A node whose descriptors can't be computed is reported.
	g.RemoveConnection(g.Node(conv).InputEdge(ConvWeights))
	g.Node(conv).Output(0).SetDesc(TensorDescriptor{})
	require.Error(t, ForwardAllDescriptors(g, 0))
}

func TestTopologicalSort(t *testing.T) {
	g, input, conv, act, pool, output := buildConvChain(t)
	order, err := TopologicalSort(g)
	require.NoError(t, err)
	require.Len(t, order, g.NumNodes())
	position := make(map[NodeID]int)
	for ii, nid := range order {
		position[nid] = ii
	}
	assert.Less(t, position[input], position[conv])
	assert.Less(t, position[conv], position[act])
	assert.Less(t, position[act], position[pool])
	assert.Less(t, position[pool], position[output])
	assert.Len(t, BFS(g), g.NumNodes())

	// Cycle: a(1) <- b(0) <- a(0).
	g = New(1, "cycle")
	in := g.AddNode(NewInputNode(nchw(1, 1, 2, 2)))
	a := g.AddNode(NewEltwiseNode(EltwiseAdd, QuantizationInfo{}))
	b := g.AddNode(NewActivationNode(MakeActivation(ActivationReLU, 0, 0), QuantizationInfo{}))
	g.AddConnection(in, 0, a, 0)
	g.AddConnection(a, 0, b, 0)
	g.AddConnection(b, 0, a, 1)
	_, err = TopologicalSort(g)
	require.Error(t, err)
	require.Error(t, ForwardAllDescriptors(g, 3))
}

// requireProducersFirst checks that every edge's producer comes before its consumer in order.
func requireProducersFirst(t *testing.T, g *Graph, order []NodeID) {
	require.Len(t, order, g.NumNodes())
	position := make(map[NodeID]int)
	for ii, nid := range order {
		position[nid] = ii
	}
	for _, e := range g.Edges() {
		if e == nil {
			continue
		}
		require.Lessf(t, position[e.ProducerID()], position[e.ConsumerID()], "order %v: edge %d->%d",
			order, e.ProducerID(), e.ConsumerID())
	}
}

func TestTopologicalSortDiamond(t *testing.T) {
	// in -> {relu a, tanh b} -> add(a, b) -> out
	g := New(0, "diamond")
	in := g.AddNode(NewInputNode(nchw(1, 1, 2, 2)))
	a := g.AddNode(NewActivationNode(MakeActivation(ActivationReLU, 0, 0), QuantizationInfo{}))
	b := g.AddNode(NewActivationNode(MakeActivation(ActivationTanh, 0, 0), QuantizationInfo{}))
	add := g.AddNode(NewEltwiseNode(EltwiseAdd, QuantizationInfo{}))
	out := g.AddNode(NewOutputNode())
	g.AddConnection(in, 0, a, 0)
	g.AddConnection(in, 0, b, 0)
	g.AddConnection(a, 0, add, 0)
	g.AddConnection(b, 0, add, 1)
	g.AddConnection(add, 0, out, 0)
	order, err := TopologicalSort(g)
	require.NoError(t, err)
	requireProducersFirst(t, g, order)
	assert.Equal(t, []NodeID{in, a, b, add, out}, order)
	requireProducersFirst(t, g, BFS(g))

	// Residual with a longer second branch: in -> a; in -> b -> c; add(a, c).
	g = New(1, "residual")
	in = g.AddNode(NewInputNode(nchw(1, 1, 2, 2)))
	a = g.AddNode(NewActivationNode(MakeActivation(ActivationIdentity, 0, 0), QuantizationInfo{}))
	b = g.AddNode(NewActivationNode(MakeActivation(ActivationReLU, 0, 0), QuantizationInfo{}))
	c := g.AddNode(NewActivationNode(MakeActivation(ActivationTanh, 0, 0), QuantizationInfo{}))
	add = g.AddNode(NewEltwiseNode(EltwiseAdd, QuantizationInfo{}))
	out = g.AddNode(NewOutputNode())
	g.AddConnection(in, 0, a, 0)
	g.AddConnection(in, 0, b, 0)
	g.AddConnection(b, 0, c, 0)
	g.AddConnection(a, 0, add, 0)
	g.AddConnection(c, 0, add, 1)
	g.AddConnection(add, 0, out, 0)
	order, err = TopologicalSort(g)
	require.NoError(t, err)
	requireProducersFirst(t, g, order)
	requireProducersFirst(t, g, BFS(g))
}

func TestDrivingNodes(t *testing.T) {
	g := New(0, "fanout")
	in := g.AddNode(NewInputNode(nchw(1, 2, 4, 4)))
	split := g.AddNode(NewSplitNode(2, 1))
	g.AddConnection(in, 0, split, 0)
	a := g.AddNode(NewOutputNode())
	b := g.AddNode(NewOutputNode())
	c := g.AddNode(NewOutputNode())
	g.AddConnection(split, 0, a, 0)
	g.AddConnection(split, 1, b, 0)
	g.AddConnection(split, 1, c, 0)
	assert.Len(t, DrivingNodes(g.Node(split)), 3)
	assert.Equal(t, []NodeIdxPair{{b, 0}, {c, 0}}, DrivingNodesIdx(g.Node(split), 1))
	assert.Equal(t, []NodeIdxPair{{in, 0}}, DriverNodes(g.Node(split)))
	assert.Equal(t, []int{1, 1, 4, 4}, g.Node(split).Output(1).Desc().Shape.Dimensions)
	assert.Equal(t, 1, g.Node(split).(*SplitNode).Offset(1))
}

type countingVisitor struct {
	DefaultNodeVisitor
	convolutions int
}

func (v *countingVisitor) VisitConvolution(*ConvolutionNode) { v.convolutions++ }

func TestVisitor(t *testing.T) {
	g, _, _, _, _, _ := buildConvChain(t)
	others := 0
	v := &countingVisitor{DefaultNodeVisitor: DefaultNodeVisitor{Fallback: func(Node) { others++ }}}
	for _, node := range g.Nodes() {
		node.Accept(v)
	}
	assert.Equal(t, 1, v.convolutions)
	assert.Equal(t, 6, others)
}

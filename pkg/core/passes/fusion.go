// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"github.com/gomlx/nngraph/pkg/core/graph"
	"k8s.io/klog/v2"
)

// NodeFusionMutator fuses patterns of nodes into a single node:
//
//   - Convolution followed by BatchNormalization becomes a FusedConvolutionBatchNormalization.
//   - A bounded ReLU activation is fused into the operator producing its input
//     (BatchNormalization, Convolution, DepthwiseConvolution, FullyConnected, or a floating point Eltwise).
//
// A node is only fused into its producer if the producer has no other consumer and no
// output accessor.
type NodeFusionMutator struct{}

var _ Mutator = NodeFusionMutator{}

// NewNodeFusionMutator creates the fusion pass.
func NewNodeFusionMutator() NodeFusionMutator { return NodeFusionMutator{} }

func (NodeFusionMutator) Name() string       { return "NodeFusionMutator" }
func (NodeFusionMutator) Type() MutationType { return MutationTypeIR }

// fusableActivations can be computed by the producer node.
var fusableActivations = map[graph.ActivationFunction]bool{
	graph.ActivationReLU:          true,
	graph.ActivationBoundedReLU:   true,
	graph.ActivationLUBoundedReLU: true,
}

// Mutate implements Mutator.
func (m NodeFusionMutator) Mutate(g *graph.Graph) error {
	fuseConvolutionWithBatchNormalization(g)
	for _, producerType := range []graph.NodeType{
		graph.NodeTypeBatchNormalization, graph.NodeTypeFusedConvolutionBatchNormalization,
		graph.NodeTypeConvolution, graph.NodeTypeDepthwiseConvolution,
		graph.NodeTypeFullyConnected, graph.NodeTypeEltwise,
	} {
		fuseWithActivation(g, producerType)
	}
	return nil
}

// fusableProducer returns the producer of input idx of node if node is its only consumer and
// its output has no accessor.
func fusableProducer(node graph.Node, idx int, producerType graph.NodeType) (graph.Node, bool) {
	pair, ok := producerOf(node, idx)
	if !ok {
		return nil, false
	}
	producer := node.Graph().Node(pair.NodeID)
	if producer.Type() != producerType || !hasSingleConsumer(producer) {
		return nil, false
	}
	if out := producer.Output(pair.Index); out == nil || out.Accessor() != nil {
		return nil, false
	}
	return producer, true
}

func fuseConvolutionWithBatchNormalization(g *graph.Graph) {
	for _, nid := range g.NodesOfType(graph.NodeTypeBatchNormalization) {
		bn := g.Node(nid).(*graph.BatchNormalizationNode)
		producer, ok := fusableProducer(bn, graph.BatchNormInput, graph.NodeTypeConvolution)
		if !ok {
			continue
		}
		conv := producer.(*graph.ConvolutionNode)
		dilationX, dilationY := conv.Dilation()
		if !isFloat(conv.Output(0)) || dilationX != 1 || dilationY != 1 || conv.FusedActivation().Enabled {
			klog.V(2).Infof("not fusing %s with %s", conv, bn)
			continue
		}

		fused := graph.NewFusedConvolutionBatchNormalizationNode(bn.Epsilon(), conv.Info(), conv.NumGroups(),
			conv.ConvolutionMethod(), conv.FastMathHint(), bn.FusedActivation())
		fusedID := g.AddNode(fused)
		if conv.Name() != "" || bn.Name() != "" {
			fused.SetName(conv.Name() + "+" + bn.Name())
		}
		fused.SetRequestedTarget(conv.RequestedTarget())
		fused.SetAssignedTarget(conv.AssignedTarget())

		var inputs [graph.FusedConvGamma + 1]graph.NodeIdxPair
		var connected [graph.FusedConvGamma + 1]bool
		for idx := graph.ConvInput; idx <= graph.ConvBias; idx++ {
			inputs[idx], connected[idx] = producerOf(conv, idx)
		}
		for idx := graph.BatchNormMean; idx <= graph.BatchNormGamma; idx++ {
			slot := idx - graph.BatchNormMean + graph.FusedConvMean
			inputs[slot], connected[slot] = producerOf(bn, idx)
		}
		consumers := graph.DrivingNodesIdx(bn, 0)
		accessor := bn.Output(0).ExtractAccessor()

		g.RemoveNode(nid)
		g.RemoveNode(conv.ID())
		for slot, pair := range inputs {
			if connected[slot] {
				connect(g, pair, fusedID, slot)
			}
		}
		relinkConsumers(g, graph.NodeIdxPair{NodeID: fusedID}, consumers)
		fused.Output(0).SetAccessor(accessor)
		klog.V(1).Infof("fused %s", fused)
	}
}

func fuseWithActivation(g *graph.Graph, producerType graph.NodeType) {
	for _, nid := range g.NodesOfType(graph.NodeTypeActivation) {
		act := g.Node(nid).(*graph.ActivationNode)
		if !fusableActivations[act.Info().Function] {
			continue
		}
		producer, ok := fusableProducer(act, 0, producerType)
		if !ok {
			continue
		}
		target, ok := producer.(graph.FusedActivationNode)
		if !ok || target.FusedActivation().Enabled {
			continue
		}
		if producerType == graph.NodeTypeEltwise && !isFloat(producer.Output(0)) {
			continue
		}
		if !act.OutputQuantization().Empty() && !act.OutputQuantization().Equal(producer.Output(0).Desc().Quantization) {
			continue
		}

		consumers := graph.DrivingNodesIdx(act, 0)
		accessor := act.Output(0).ExtractAccessor()
		target.SetFusedActivation(act.Info())
		g.RemoveNode(nid)
		relinkConsumers(g, graph.NodeIdxPair{NodeID: producer.ID()}, consumers)
		producer.Output(0).SetAccessor(accessor)
		klog.V(1).Infof("fused %s into %s", act.Info(), producer)
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"github.com/gomlx/nngraph/pkg/core/graph"
	"k8s.io/klog/v2"
)

// InPlaceOperationMutator makes element-wise operators write their output over their input
// tensor, when nothing else reads it.
type InPlaceOperationMutator struct{}

var _ Mutator = InPlaceOperationMutator{}

// NewInPlaceOperationMutator creates the in-place pass.
func NewInPlaceOperationMutator() InPlaceOperationMutator { return InPlaceOperationMutator{} }

func (InPlaceOperationMutator) Name() string       { return "InPlaceOperationMutator" }
func (InPlaceOperationMutator) Type() MutationType { return MutationTypeBackend }

// inPlaceNodeTypes can run with the same tensor as input and output.
var inPlaceNodeTypes = []graph.NodeType{graph.NodeTypeActivation, graph.NodeTypeBatchNormalization, graph.NodeTypePrint}

// Mutate implements Mutator.
func (m InPlaceOperationMutator) Mutate(g *graph.Graph) error {
	for _, nodeType := range inPlaceNodeTypes {
		for _, nid := range g.NodesOfType(nodeType) {
			node := g.Node(nid)
			if !canRunInPlace(node) {
				continue
			}
			in, out := node.Input(0), node.Output(0)
			moveAccessor(out, in)
			previous := out.ID()
			node.SetOutputTensor(in.ID(), 0)
			g.RemoveTensorIfOrphan(previous)
			klog.V(2).Infof("%s: %s runs in-place on tensor #%d", m.Name(), node, in.ID())
		}
	}
	return nil
}

func canRunInPlace(node graph.Node) bool {
	in, out := node.Input(0), node.Output(0)
	if in == nil || out == nil || in.Accessor() != nil {
		return false
	}
	pair, ok := producerOf(node, 0)
	if !ok || !hasSingleConsumer(node.Graph().Node(pair.NodeID)) {
		return false
	}
	inDesc, outDesc := in.Desc(), out.Desc()
	return inDesc.Shape.Equal(outDesc.Shape) && inDesc.Target == outDesc.Target &&
		inDesc.Quantization.Equal(outDesc.Quantization)
}

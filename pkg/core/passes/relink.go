// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"github.com/gomlx/nngraph/pkg/core/graph"
)

// producerOf returns the producer connected to input idx of node.
func producerOf(node graph.Node, idx int) (graph.NodeIdxPair, bool) {
	e := node.Graph().Edge(node.InputEdge(idx))
	if e == nil || e.Producer() == nil {
		return graph.NodeIdxPair{}, false
	}
	return graph.NodeIdxPair{NodeID: e.ProducerID(), Index: e.ProducerIdx()}, true
}

// connect connects producer to input idx of consumer.
func connect(g *graph.Graph, producer graph.NodeIdxPair, consumer graph.NodeID, idx int) {
	g.AddConnection(producer.NodeID, producer.Index, consumer, idx)
}

// relinkConsumers connects each consumer directly to producer, at its original input index.
func relinkConsumers(g *graph.Graph, producer graph.NodeIdxPair, consumers []graph.NodeIdxPair) {
	for _, c := range consumers {
		connect(g, producer, c.NodeID, c.Index)
	}
}

// moveAccessor moves the accessor of from to to, if to has none.
func moveAccessor(from, to *graph.Tensor) {
	if from == nil || to == nil || from.Accessor() == nil || to.Accessor() != nil {
		return
	}
	to.SetAccessor(from.ExtractAccessor())
}

// hasSingleConsumer returns whether node has exactly one output edge.
func hasSingleConsumer(node graph.Node) bool { return len(node.OutputEdges()) == 1 }

// isFloat returns whether the tensor has a floating point data type.
func isFloat(t *graph.Tensor) bool {
	return t != nil && t.Desc().DType().IsFloat()
}

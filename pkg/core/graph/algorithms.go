// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultMaxDescriptorPasses bounds ForwardAllDescriptors when no limit is given.
const DefaultMaxDescriptorPasses = 8

// allInputsEmitted returns whether every connected input of node comes from a node already
// emitted in the traversal order.
func allInputsEmitted(g *Graph, node Node, emitted []bool) bool {
	for _, eid := range node.base().inputEdges {
		e := g.Edge(eid)
		if e == nil || e.producer == EmptyNodeID {
			continue
		}
		if !emitted[e.producer] {
			return false
		}
	}
	return true
}

// roots returns the nodes with no connected inputs: inputs and constants first, then the others,
// each group in id order.
func roots(g *Graph) []NodeID {
	var first, others []NodeID
	for _, node := range g.nodes {
		if node == nil {
			continue
		}
		connected := false
		for _, eid := range node.base().inputEdges {
			if g.Edge(eid) != nil {
				connected = true
				break
			}
		}
		if connected {
			continue
		}
		if node.Type() == NodeTypeInput || node.Type() == NodeTypeConst {
			first = append(first, node.ID())
		} else {
			others = append(others, node.ID())
		}
	}
	return append(first, others...)
}

// BFS returns the nodes in breadth-first order from the roots, visiting a node only once all of
// its producers were visited.
func BFS(g *Graph) []NodeID { return traverse(g, false) }

// DFS returns the nodes in depth-first order from the roots, visiting a node only once all of
// its producers were visited.
func DFS(g *Graph) []NodeID { return traverse(g, true) }

// traverse emits the nodes reachable from the roots, taking the next node from a stack (depthFirst)
// or a queue. A consumer is scheduled only once all its producers were emitted.
func traverse(g *Graph, depthFirst bool) []NodeID {
	scheduled := make([]bool, len(g.nodes))
	emitted := make([]bool, len(g.nodes))
	pending := roots(g)
	if depthFirst {
		slices.Reverse(pending)
	}
	for _, nid := range pending {
		scheduled[nid] = true
	}
	order := make([]NodeID, 0, len(g.nodes))
	for len(pending) > 0 {
		var nid NodeID
		if depthFirst {
			nid = pending[len(pending)-1]
			pending = pending[:len(pending)-1]
		} else {
			nid = pending[0]
			pending = pending[1:]
		}
		emitted[nid] = true
		order = append(order, nid)
		var ready []NodeID
		for _, eid := range g.nodes[nid].OutputEdges() {
			e := g.Edge(eid)
			consumer := g.Node(e.consumer)
			if consumer == nil || scheduled[e.consumer] || !allInputsEmitted(g, consumer, emitted) {
				continue
			}
			scheduled[e.consumer] = true
			ready = append(ready, e.consumer)
		}
		if depthFirst {
			// First consumer on top of the stack.
			slices.Reverse(ready)
		}
		pending = append(pending, ready...)
	}
	return order
}

// TopologicalSort returns all nodes of the graph in an order where every producer comes
// before its consumers (DFS order). It returns an error if the graph has a cycle.
func TopologicalSort(g *Graph) ([]NodeID, error) {
	order := DFS(g)
	if len(order) == g.NumNodes() {
		return order, nil
	}
	sorted := make([]bool, len(g.nodes))
	for _, nid := range order {
		sorted[nid] = true
	}
	var cyclic []string
	for _, node := range g.nodes {
		if node != nil && !sorted[node.ID()] {
			cyclic = append(cyclic, node.String())
		}
	}
	return nil, errors.Errorf("graph %q has a cycle: nodes %s are never ready", g.name, strings.Join(cyclic, ", "))
}

// DrivingNodes returns the consumers of node's outputs, as (consumer id, consumer input index).
func DrivingNodes(node Node) []NodeIdxPair {
	g := node.Graph()
	var pairs []NodeIdxPair
	for _, eid := range node.OutputEdges() {
		if e := g.Edge(eid); e != nil && g.Node(e.consumer) != nil {
			pairs = append(pairs, NodeIdxPair{NodeID: e.consumer, Index: e.consumerIdx})
		}
	}
	return pairs
}

// DrivingNodesIdx returns the consumers of output idx of node.
func DrivingNodesIdx(node Node, idx int) []NodeIdxPair {
	g := node.Graph()
	var pairs []NodeIdxPair
	for _, eid := range node.OutputEdges() {
		if e := g.Edge(eid); e != nil && e.producerIdx == idx && g.Node(e.consumer) != nil {
			pairs = append(pairs, NodeIdxPair{NodeID: e.consumer, Index: e.consumerIdx})
		}
	}
	return pairs
}

// DriverNodes returns the producers of node's inputs, as (producer id, producer output index),
// in input order. Unconnected inputs are skipped.
func DriverNodes(node Node) []NodeIdxPair {
	g := node.Graph()
	var pairs []NodeIdxPair
	for _, eid := range node.InputEdges() {
		if e := g.Edge(eid); e != nil && g.Node(e.producer) != nil {
			pairs = append(pairs, NodeIdxPair{NodeID: e.producer, Index: e.producerIdx})
		}
	}
	return pairs
}

// ForwardAllDescriptors calls ForwardDescriptors on every node in topological order, repeating
// until no descriptor changes. It fails if the graph has a cycle, if it doesn't converge within
// maxPasses passes (DefaultMaxDescriptorPasses if <= 0), or if some node output is left unresolved.
func ForwardAllDescriptors(g *Graph, maxPasses int) error {
	order, err := TopologicalSort(g)
	if err != nil {
		return errors.WithMessage(err, "forwarding descriptors")
	}
	if maxPasses <= 0 {
		maxPasses = DefaultMaxDescriptorPasses
	}
	for pass := range maxPasses {
		changed := false
		for _, nid := range order {
			node := g.nodes[nid]
			before := outputDescs(node)
			node.ForwardDescriptors()
			if !slices.EqualFunc(before, outputDescs(node), TensorDescriptor.Equal) {
				changed = true
			}
		}
		if !changed {
			klog.V(2).Infof("graph %q: descriptors converged after %d pass(es)", g.name, pass+1)
			return checkResolved(g, order)
		}
	}
	return errors.Errorf("graph %q: descriptors did not converge after %d passes", g.name, maxPasses)
}

func outputDescs(node Node) []TensorDescriptor {
	descs := make([]TensorDescriptor, node.NumOutputs())
	for idx := range descs {
		if t := node.Output(idx); t != nil {
			descs[idx] = t.desc
		}
	}
	return descs
}

func checkResolved(g *Graph, order []NodeID) error {
	for _, nid := range order {
		node := g.nodes[nid]
		for idx := range node.NumOutputs() {
			if t := node.Output(idx); t == nil || !t.desc.Ok() {
				return errors.Errorf("graph %q: output #%d of %s could not be resolved", g.name, idx, node)
			}
		}
	}
	return nil
}

// CheckIntegrity verifies the referential integrity of the graph: every reference between
// nodes, edges and tensors points to a live entity and is mirrored on the other side.
func CheckIntegrity(g *Graph) error {
	for _, e := range g.edges {
		if e == nil {
			continue
		}
		if e.producer != EmptyNodeID {
			producer := g.Node(e.producer)
			if producer == nil {
				return errors.Errorf("%s: producer #%d not in graph", e, e.producer)
			}
			if !producer.base().outputEdges.Has(e.id) {
				return errors.Errorf("%s: missing from the output edges of %s", e, producer)
			}
			if producer.OutputID(e.producerIdx) != e.tensor {
				return errors.Errorf("%s: tensor differs from output #%d of %s", e, e.producerIdx, producer)
			}
		}
		if e.consumer != EmptyNodeID {
			consumer := g.Node(e.consumer)
			if consumer == nil {
				return errors.Errorf("%s: consumer #%d not in graph", e, e.consumer)
			}
			if consumer.InputEdge(e.consumerIdx) != e.id {
				return errors.Errorf("%s: not the input #%d of %s", e, e.consumerIdx, consumer)
			}
		}
		if t := g.Tensor(e.tensor); t == nil || !t.boundEdges.Has(e.id) {
			return errors.Errorf("%s: tensor #%d missing or not bound to it", e, e.tensor)
		}
	}
	for _, node := range g.nodes {
		if node == nil {
			continue
		}
		for idx, eid := range node.base().inputEdges {
			if eid == EmptyEdgeID {
				continue
			}
			e := g.Edge(eid)
			if e == nil || e.consumer != node.ID() || e.consumerIdx != idx {
				return errors.Errorf("%s: input #%d refers to invalid edge #%d", node, idx, eid)
			}
		}
		for eid := range node.base().outputEdges {
			e := g.Edge(eid)
			if e == nil || e.producer != node.ID() {
				return errors.Errorf("%s: output edge #%d is invalid", node, eid)
			}
		}
	}
	for _, t := range g.tensors {
		if t == nil {
			continue
		}
		for eid := range t.boundEdges {
			e := g.Edge(eid)
			if e == nil || e.tensor != t.id {
				return errors.Errorf("%s: bound to invalid edge #%d", t, eid)
			}
		}
	}
	return nil
}

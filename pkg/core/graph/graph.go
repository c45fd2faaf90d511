// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph implements the graph intermediate representation: the Graph store owning all
// nodes, tensors and edges, the concrete operator nodes, descriptor inference and the graph
// algorithms used by the mutation passes and the lowering.
//
// Every entity is owned by its Graph and addressed by an id (NodeID, TensorID, EdgeID): entities
// refer to each other only by id, resolved through the Graph. Lookups of unknown or removed ids
// return nil, and callers are expected to check.
//
// A Graph is not safe for concurrent mutation.
package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Graph owns the nodes, tensors and edges of a network.
//
// Removed entities leave a nil hole in their arena: ids are never reused.
type Graph struct {
	id          GraphID
	name        string
	nodes       []Node
	tensors     []*Tensor
	edges       []*Edge
	taggedNodes map[NodeType][]NodeID
}

// New creates an empty graph.
func New(id GraphID, name string) *Graph {
	return &Graph{id: id, name: name, taggedNodes: make(map[NodeType][]NodeID)}
}

// ID of the graph.
func (g *Graph) ID() GraphID { return g.id }

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// AddNode registers node in the graph, creates one tensor per output and forwards its descriptors.
//
// It panics if the node already belongs to a graph.
func (g *Graph) AddNode(node Node) NodeID {
	b := node.base()
	if b.graph != nil {
		exceptions.Panicf("Graph.AddNode: %s already belongs to graph %q", node, b.graph.name)
	}
	nid := NodeID(len(g.nodes))
	b.id = nid
	b.graph = g
	g.nodes = append(g.nodes, node)
	for idx := range b.outputs {
		b.outputs[idx] = g.CreateTensor(TensorDescriptor{})
	}
	g.taggedNodes[node.Type()] = append(g.taggedNodes[node.Type()], nid)
	node.ForwardDescriptors()
	klog.V(3).Infof("graph %q: added %s", g.name, node)
	return nid
}

// CreateTensor adds a tensor with the given descriptor, not bound to any edge.
func (g *Graph) CreateTensor(desc TensorDescriptor) TensorID {
	tid := TensorID(len(g.tensors))
	g.tensors = append(g.tensors, newTensor(tid, desc))
	return tid
}

// AddConnection connects output sourceIdx of source to input sinkIdx of sink, and forwards the
// descriptors of sink.
//
// If the input slot is already connected to the same output, the existing edge is returned.
// If it is connected to something else, that connection is removed first.
// It returns EmptyEdgeID if either node does not exist, and panics with out-of-range indices.
func (g *Graph) AddConnection(source NodeID, sourceIdx int, sink NodeID, sinkIdx int) EdgeID {
	src, dst := g.Node(source), g.Node(sink)
	if src == nil || dst == nil {
		return EmptyEdgeID
	}
	sb, db := src.base(), dst.base()
	sb.checkOutputIdx(sourceIdx)
	db.checkInputIdx(sinkIdx)

	if current := g.Edge(db.inputEdges[sinkIdx]); current != nil {
		if current.producer == source && current.producerIdx == sourceIdx {
			return current.id
		}
		g.RemoveConnection(current.id)
	}

	eid := EdgeID(len(g.edges))
	tid := sb.outputs[sourceIdx]
	e := &Edge{
		graph:       g,
		id:          eid,
		producer:    source,
		producerIdx: sourceIdx,
		consumer:    sink,
		consumerIdx: sinkIdx,
		tensor:      tid,
	}
	g.edges = append(g.edges, e)
	sb.outputEdges.Insert(eid)
	db.inputEdges[sinkIdx] = eid
	if t := g.Tensor(tid); t != nil {
		t.bindEdge(eid)
	}
	dst.ForwardDescriptors()
	return eid
}

// RemoveConnection removes an edge, unbinding its tensor and resetting the consumer's input slot.
// It returns false if the edge does not exist.
func (g *Graph) RemoveConnection(eid EdgeID) bool {
	e := g.Edge(eid)
	if e == nil {
		return false
	}
	if t := g.Tensor(e.tensor); t != nil {
		t.unbindEdge(eid)
	}
	if producer := g.Node(e.producer); producer != nil {
		producer.base().outputEdges.Remove(eid)
	}
	if consumer := g.Node(e.consumer); consumer != nil {
		cb := consumer.base()
		if cb.inputEdges[e.consumerIdx] == eid {
			cb.inputEdges[e.consumerIdx] = EmptyEdgeID
		}
	}
	g.edges[eid] = nil
	return true
}

// RemoveNode removes a node and every edge it produces or consumes. Output tensors left unbound
// and not used by any other node are removed as well.
//
// It returns false (and does nothing) if the node does not exist.
func (g *Graph) RemoveNode(nid NodeID) bool {
	node := g.Node(nid)
	if node == nil {
		return false
	}
	b := node.base()
	for _, eid := range b.inputEdges {
		g.RemoveConnection(eid)
	}
	for _, eid := range b.OutputEdges() {
		g.RemoveConnection(eid)
	}
	g.taggedNodes[b.nodeType] = slices.DeleteFunc(g.taggedNodes[b.nodeType], func(id NodeID) bool { return id == nid })
	g.nodes[nid] = nil
	for _, tid := range b.outputs {
		g.RemoveTensorIfOrphan(tid)
	}
	klog.V(3).Infof("graph %q: removed %s", g.name, node)
	return true
}

// RemoveTensorIfOrphan drops a tensor that no edge and no node output refers to, and
// reports whether it was removed.
func (g *Graph) RemoveTensorIfOrphan(tid TensorID) bool {
	t := g.Tensor(tid)
	if t == nil || len(t.boundEdges) > 0 {
		return false
	}
	for _, node := range g.nodes {
		if node != nil && slices.Contains(node.base().outputs, tid) {
			return false
		}
	}
	g.tensors[tid] = nil
	return true
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(nid NodeID) Node {
	if nid < 0 || int(nid) >= len(g.nodes) {
		return nil
	}
	return g.nodes[nid]
}

// Tensor returns the tensor with the given id, or nil.
func (g *Graph) Tensor(tid TensorID) *Tensor {
	if tid < 0 || int(tid) >= len(g.tensors) {
		return nil
	}
	return g.tensors[tid]
}

// Edge returns the edge with the given id, or nil.
func (g *Graph) Edge(eid EdgeID) *Edge {
	if eid < 0 || int(eid) >= len(g.edges) {
		return nil
	}
	return g.edges[eid]
}

// Nodes returns the node arena, indexed by NodeID. Removed nodes are nil.
func (g *Graph) Nodes() []Node { return g.nodes }

// Tensors returns the tensor arena, indexed by TensorID. Removed tensors are nil.
func (g *Graph) Tensors() []*Tensor { return g.tensors }

// Edges returns the edge arena, indexed by EdgeID. Removed edges are nil.
func (g *Graph) Edges() []*Edge { return g.edges }

// NodesOfType returns the ids of all nodes of the given type, in insertion order.
func (g *Graph) NodesOfType(nodeType NodeType) []NodeID {
	return slices.Clone(g.taggedNodes[nodeType])
}

// Inputs returns the ids of the input nodes.
func (g *Graph) Inputs() []NodeID { return g.NodesOfType(NodeTypeInput) }

// Outputs returns the ids of the output nodes.
func (g *Graph) Outputs() []NodeID { return g.NodesOfType(NodeTypeOutput) }

// NumNodes returns the number of nodes currently in the graph.
func (g *Graph) NumNodes() int {
	count := 0
	for _, n := range g.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// String prints the graph, one node per line with its inputs and outputs.
func (g *Graph) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "Graph %q (#%d):\n", g.name, g.id)
	for _, node := range g.nodes {
		if node == nil {
			continue
		}
		inputs := make([]string, node.NumInputs())
		for idx := range inputs {
			if e := g.Edge(node.InputEdge(idx)); e != nil {
				inputs[idx] = NodeIdxPair{e.producer, e.producerIdx}.String()
			} else {
				inputs[idx] = "_"
			}
		}
		outputs := make([]string, node.NumOutputs())
		for idx := range outputs {
			if t := node.Output(idx); t != nil {
				outputs[idx] = t.desc.String()
			}
		}
		_, _ = fmt.Fprintf(&sb, "\t%s(%s) -> [%s]\n", node, strings.Join(inputs, ", "), strings.Join(outputs, "; "))
	}
	return sb.String()
}

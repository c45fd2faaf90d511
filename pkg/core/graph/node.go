// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/nngraph/pkg/support/sets"
)

// Node is one operator instance in a Graph.
//
// The number of inputs and outputs is fixed by the concrete node type at construction.
// Inputs are referenced by edge, outputs by tensor: all lookups pass through the owning Graph.
type Node interface {
	// ID of the node in its graph.
	ID() NodeID

	// Name of the node, used for debugging and printing. Not necessarily unique.
	Name() string

	// SetName sets the debug name of the node.
	SetName(name string)

	// Type returns the operator kind.
	Type() NodeType

	// Graph returns the owning graph, or nil if not added to one yet.
	Graph() *Graph

	// Validate checks that the descriptors of the inputs are compatible with the operator.
	Validate() error

	// ForwardDescriptors computes the descriptors of the output tensors from the inputs.
	// It returns false if some input is missing or not resolved yet.
	ForwardDescriptors() bool

	// ConfigureOutput computes the descriptor of output idx from the current inputs, without
	// changing anything. The result is not Ok if it cannot be computed yet.
	ConfigureOutput(idx int) TensorDescriptor

	// Accept dispatches to the visitor method of the concrete node type.
	Accept(v NodeVisitor)

	NumInputs() int
	NumOutputs() int

	// InputEdges returns a copy of the input slots: EmptyEdgeID marks an unconnected input.
	InputEdges() []EdgeID

	// InputEdge returns the edge connected to input idx, or EmptyEdgeID.
	InputEdge(idx int) EdgeID

	// OutputEdges returns the edges leaving this node, in increasing id order.
	OutputEdges() []EdgeID

	// Outputs returns a copy of the ids of the output tensors.
	Outputs() []TensorID

	// InputID returns the id of the tensor on input idx, or NullTensorID if unconnected.
	InputID(idx int) TensorID

	// OutputID returns the id of the tensor on output idx.
	OutputID(idx int) TensorID

	// Input returns the tensor on input idx, or nil.
	Input(idx int) *Tensor

	// Output returns the tensor on output idx, or nil.
	Output(idx int) *Tensor

	// SetOutputTensor rebinds output idx to tensor tid, updating every edge leaving that slot.
	// Invalid ids or indices are ignored.
	SetOutputTensor(tid TensorID, idx int)

	RequestedTarget() Target
	SetRequestedTarget(target Target)
	AssignedTarget() Target
	SetAssignedTarget(target Target)

	String() string

	base() *baseNode
}

// FusedActivationNode is implemented by nodes that can apply an activation as part of their
// own computation.
type FusedActivationNode interface {
	Node
	FusedActivation() ActivationInfo
	SetFusedActivation(info ActivationInfo)
}

// baseNode holds the state shared by all node types. Concrete nodes embed it.
type baseNode struct {
	graph           *Graph
	id              NodeID
	nodeType        NodeType
	name            string
	inputEdges      []EdgeID
	outputEdges     sets.Set[EdgeID]
	outputs         []TensorID
	requestedTarget Target
	assignedTarget  Target
}

func newBaseNode(nodeType NodeType, numInputs, numOutputs int) baseNode {
	if numInputs < 0 || numOutputs < 0 {
		exceptions.Panicf("invalid arity (%d inputs, %d outputs) for %s node", numInputs, numOutputs, nodeType)
	}
	b := baseNode{
		id:          EmptyNodeID,
		nodeType:    nodeType,
		inputEdges:  make([]EdgeID, numInputs),
		outputEdges: sets.Make[EdgeID](),
		outputs:     make([]TensorID, numOutputs),
	}
	for ii := range b.inputEdges {
		b.inputEdges[ii] = EmptyEdgeID
	}
	for ii := range b.outputs {
		b.outputs[ii] = NullTensorID
	}
	return b
}

func (n *baseNode) base() *baseNode { return n }

func (n *baseNode) ID() NodeID            { return n.id }
func (n *baseNode) Name() string          { return n.name }
func (n *baseNode) SetName(name string)   { n.name = name }
func (n *baseNode) Type() NodeType        { return n.nodeType }
func (n *baseNode) Graph() *Graph         { return n.graph }
func (n *baseNode) NumInputs() int        { return len(n.inputEdges) }
func (n *baseNode) NumOutputs() int       { return len(n.outputs) }
func (n *baseNode) InputEdges() []EdgeID  { return append([]EdgeID(nil), n.inputEdges...) }
func (n *baseNode) OutputEdges() []EdgeID { return sets.Sorted(n.outputEdges) }
func (n *baseNode) Outputs() []TensorID   { return append([]TensorID(nil), n.outputs...) }

func (n *baseNode) RequestedTarget() Target          { return n.requestedTarget }
func (n *baseNode) SetRequestedTarget(target Target) { n.requestedTarget = target }
func (n *baseNode) AssignedTarget() Target           { return n.assignedTarget }
func (n *baseNode) SetAssignedTarget(target Target)  { n.assignedTarget = target }

// Validate by default accepts the node.
func (n *baseNode) Validate() error { return nil }

func (n *baseNode) checkInputIdx(idx int) {
	if idx < 0 || idx >= len(n.inputEdges) {
		exceptions.Panicf("input index %d out of range for %s node #%d with %d inputs", idx, n.nodeType, n.id, len(n.inputEdges))
	}
}

func (n *baseNode) checkOutputIdx(idx int) {
	if idx < 0 || idx >= len(n.outputs) {
		exceptions.Panicf("output index %d out of range for %s node #%d with %d outputs", idx, n.nodeType, n.id, len(n.outputs))
	}
}

func (n *baseNode) InputEdge(idx int) EdgeID {
	n.checkInputIdx(idx)
	return n.inputEdges[idx]
}

func (n *baseNode) InputID(idx int) TensorID {
	n.checkInputIdx(idx)
	if n.graph == nil {
		return NullTensorID
	}
	e := n.graph.Edge(n.inputEdges[idx])
	if e == nil {
		return NullTensorID
	}
	return e.tensor
}

func (n *baseNode) OutputID(idx int) TensorID {
	n.checkOutputIdx(idx)
	return n.outputs[idx]
}

func (n *baseNode) Input(idx int) *Tensor {
	if n.graph == nil {
		return nil
	}
	return n.graph.Tensor(n.InputID(idx))
}

func (n *baseNode) Output(idx int) *Tensor {
	if n.graph == nil {
		return nil
	}
	return n.graph.Tensor(n.OutputID(idx))
}

func (n *baseNode) SetOutputTensor(tid TensorID, idx int) {
	if n.graph == nil || idx < 0 || idx >= len(n.outputs) || n.graph.Tensor(tid) == nil {
		return
	}
	n.outputs[idx] = tid
	for eid := range n.outputEdges {
		e := n.graph.Edge(eid)
		if e == nil || e.producerIdx != idx {
			continue
		}
		e.updateBoundTensor(tid)
	}
}

// inputDesc returns the descriptor of input idx, and whether it is connected and resolved.
func (n *baseNode) inputDesc(idx int) (TensorDescriptor, bool) {
	t := n.Input(idx)
	if t == nil || !t.desc.Ok() {
		return TensorDescriptor{}, false
	}
	return t.desc, true
}

// hasInput returns whether input idx is connected to a tensor.
func (n *baseNode) hasInput(idx int) bool {
	return n.Input(idx) != nil
}

// forward sets every output tensor's descriptor to node.ConfigureOutput. Unresolved
// descriptors are not written. Once a target is assigned to the node it is stamped on its outputs.
func (n *baseNode) forward(node Node) bool {
	if n.graph == nil {
		return false
	}
	resolved := true
	for idx, tid := range n.outputs {
		t := n.graph.Tensor(tid)
		if t == nil {
			resolved = false
			continue
		}
		desc := node.ConfigureOutput(idx)
		if !desc.Ok() {
			resolved = false
			continue
		}
		if n.assignedTarget != TargetUnspecified {
			desc.Target = n.assignedTarget
		}
		t.desc = desc
	}
	return resolved
}

func (n *baseNode) String() string {
	if n.name != "" {
		return fmt.Sprintf("%s#%d(%q)", n.nodeType, n.id, n.name)
	}
	return fmt.Sprintf("%s#%d", n.nodeType, n.id)
}

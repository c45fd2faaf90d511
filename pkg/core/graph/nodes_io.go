// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

// InputNode is a graph input: it has no inputs and produces one tensor with a fixed descriptor.
type InputNode struct {
	baseNode
	desc TensorDescriptor
}

// NewInputNode creates an input node producing a tensor with the given descriptor.
func NewInputNode(desc TensorDescriptor) *InputNode {
	return &InputNode{baseNode: newBaseNode(NodeTypeInput, 0, 1), desc: desc}
}

// Desc returns the descriptor of the input tensor.
func (n *InputNode) Desc() TensorDescriptor { return n.desc }

// SetDesc changes the descriptor of the input. The output tensor is updated on the next
// ForwardDescriptors.
func (n *InputNode) SetDesc(desc TensorDescriptor) { n.desc = desc }

func (n *InputNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *InputNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	return n.desc.Clone()
}

func (n *InputNode) Accept(v NodeVisitor) { v.VisitInput(n) }

// OutputNode is a graph output: it consumes one tensor and produces nothing.
type OutputNode struct {
	baseNode
}

// NewOutputNode creates an output node.
func NewOutputNode() *OutputNode {
	return &OutputNode{baseNode: newBaseNode(NodeTypeOutput, 1, 0)}
}

// ForwardDescriptors has nothing to forward: it only reports whether the input is known.
func (n *OutputNode) ForwardDescriptors() bool {
	_, ok := n.inputDesc(0)
	return ok
}

func (n *OutputNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	return TensorDescriptor{}
}

func (n *OutputNode) Accept(v NodeVisitor) { v.VisitOutput(n) }

// ConstNode produces a constant tensor (weights, biases, ...), whose content is provided
// by the tensor's accessor.
type ConstNode struct {
	baseNode
	desc TensorDescriptor
}

// NewConstNode creates a constant node with the given descriptor.
func NewConstNode(desc TensorDescriptor) *ConstNode {
	return &ConstNode{baseNode: newBaseNode(NodeTypeConst, 0, 1), desc: desc}
}

// Desc returns the descriptor of the constant tensor.
func (n *ConstNode) Desc() TensorDescriptor { return n.desc }

// SetDesc changes the descriptor of the constant.
func (n *ConstNode) SetDesc(desc TensorDescriptor) { n.desc = desc }

func (n *ConstNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *ConstNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	return n.desc.Clone()
}

func (n *ConstNode) Accept(v NodeVisitor) { v.VisitConst(n) }

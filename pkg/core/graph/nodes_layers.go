// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"io"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// requireInputs returns an error if any of the given inputs is not connected or not resolved.
func (n *baseNode) requireInputs(indices ...int) error {
	for _, idx := range indices {
		if _, ok := n.inputDesc(idx); !ok {
			return errors.Errorf("%s: input #%d is not connected or its descriptor is not resolved", n, idx)
		}
	}
	return nil
}

// withQuantization overrides the quantization of desc, if q is not empty.
func withQuantization(desc TensorDescriptor, q QuantizationInfo) TensorDescriptor {
	if q.Empty() || !desc.Ok() {
		return desc
	}
	return desc.WithQuantization(q)
}

// passThrough returns the descriptor of input 0, or an empty descriptor.
func (n *baseNode) passThrough() TensorDescriptor {
	in, ok := n.inputDesc(0)
	if !ok {
		return TensorDescriptor{}
	}
	return in.Clone()
}

// ActivationNode applies an activation function element-wise.
type ActivationNode struct {
	baseNode
	info     ActivationInfo
	outQuant QuantizationInfo
}

// NewActivationNode creates an activation node. outQuant may be empty, in which case the output
// has the input's quantization.
func NewActivationNode(info ActivationInfo, outQuant QuantizationInfo) *ActivationNode {
	info.Enabled = true
	return &ActivationNode{baseNode: newBaseNode(NodeTypeActivation, 1, 1), info: info, outQuant: outQuant}
}

func (n *ActivationNode) Info() ActivationInfo                     { return n.info }
func (n *ActivationNode) OutputQuantization() QuantizationInfo     { return n.outQuant }
func (n *ActivationNode) SetOutputQuantization(q QuantizationInfo) { n.outQuant = q }

func (n *ActivationNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *ActivationNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	return withQuantization(n.passThrough(), n.outQuant)
}

func (n *ActivationNode) Validate() error { return n.requireInputs(0) }

func (n *ActivationNode) Accept(v NodeVisitor) { v.VisitActivation(n) }

// Input slots of BatchNormalizationNode.
const (
	BatchNormInput = iota
	BatchNormMean
	BatchNormVar
	BatchNormBeta
	BatchNormGamma
)

// BatchNormalizationNode normalizes its input per channel with the given mean, variance, beta and gamma.
// Beta and gamma are optional.
type BatchNormalizationNode struct {
	baseNode
	epsilon         float32
	fusedActivation ActivationInfo
}

// NewBatchNormalizationNode creates a batch normalization node. fusedActivation may be disabled.
func NewBatchNormalizationNode(epsilon float32, fusedActivation ActivationInfo) *BatchNormalizationNode {
	return &BatchNormalizationNode{baseNode: newBaseNode(NodeTypeBatchNormalization, 5, 1), epsilon: epsilon, fusedActivation: fusedActivation}
}

func (n *BatchNormalizationNode) Epsilon() float32                       { return n.epsilon }
func (n *BatchNormalizationNode) FusedActivation() ActivationInfo        { return n.fusedActivation }
func (n *BatchNormalizationNode) SetFusedActivation(info ActivationInfo) { n.fusedActivation = info }

func (n *BatchNormalizationNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *BatchNormalizationNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	return n.passThrough()
}

func (n *BatchNormalizationNode) Validate() error {
	if err := n.requireInputs(BatchNormInput, BatchNormMean, BatchNormVar); err != nil {
		return err
	}
	in, _ := n.inputDesc(BatchNormInput)
	return validateChannelParams(n, in, BatchNormMean, BatchNormGamma)
}

// validateChannelParams checks that every connected input in [first, last] has one value per channel.
func validateChannelParams(n Node, input TensorDescriptor, first, last int) error {
	channels := input.Dim(shapes.DimChannel)
	for idx := first; idx <= last; idx++ {
		t := n.Input(idx)
		if t == nil {
			continue
		}
		if t.Desc().Shape.Size() != channels {
			return errors.Errorf("%s: input #%d %s should have %d elements, one per channel", n, idx, t.Desc().Shape, channels)
		}
	}
	return nil
}

func (n *BatchNormalizationNode) Accept(v NodeVisitor) { v.VisitBatchNormalization(n) }

// EltwiseNode applies a binary element-wise operation.
type EltwiseNode struct {
	baseNode
	op              EltwiseOperation
	outQuant        QuantizationInfo
	fusedActivation ActivationInfo
}

// NewEltwiseNode creates an element-wise node.
func NewEltwiseNode(op EltwiseOperation, outQuant QuantizationInfo) *EltwiseNode {
	return &EltwiseNode{baseNode: newBaseNode(NodeTypeEltwise, 2, 1), op: op, outQuant: outQuant}
}

func (n *EltwiseNode) Operation() EltwiseOperation            { return n.op }
func (n *EltwiseNode) OutputQuantization() QuantizationInfo   { return n.outQuant }
func (n *EltwiseNode) FusedActivation() ActivationInfo        { return n.fusedActivation }
func (n *EltwiseNode) SetFusedActivation(info ActivationInfo) { n.fusedActivation = info }

func (n *EltwiseNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *EltwiseNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	lhs, ok0 := n.inputDesc(0)
	rhs, ok1 := n.inputDesc(1)
	if !ok0 || !ok1 {
		return TensorDescriptor{}
	}
	output, err := EltwiseDescriptor(lhs, rhs)
	if err != nil {
		return TensorDescriptor{}
	}
	return withQuantization(output, n.outQuant)
}

func (n *EltwiseNode) Validate() error {
	if err := n.requireInputs(0, 1); err != nil {
		return err
	}
	lhs, _ := n.inputDesc(0)
	rhs, _ := n.inputDesc(1)
	_, err := EltwiseDescriptor(lhs, rhs)
	return err
}

func (n *EltwiseNode) Accept(v NodeVisitor) { v.VisitEltwise(n) }

// FullyConnectedNode computes input * weights^T + bias. Inputs: input, weights, optional bias.
type FullyConnectedNode struct {
	baseNode
	numOutputs      int
	outQuant        QuantizationInfo
	fusedActivation ActivationInfo
}

// NewFullyConnectedNode creates a fully connected node with numOutputs outputs per batch element.
func NewFullyConnectedNode(numOutputs int, outQuant QuantizationInfo) *FullyConnectedNode {
	return &FullyConnectedNode{baseNode: newBaseNode(NodeTypeFullyConnected, 3, 1), numOutputs: numOutputs, outQuant: outQuant}
}

func (n *FullyConnectedNode) NumOutputFeatures() int                 { return n.numOutputs }
func (n *FullyConnectedNode) OutputQuantization() QuantizationInfo   { return n.outQuant }
func (n *FullyConnectedNode) FusedActivation() ActivationInfo        { return n.fusedActivation }
func (n *FullyConnectedNode) SetFusedActivation(info ActivationInfo) { n.fusedActivation = info }

func (n *FullyConnectedNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *FullyConnectedNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok := n.inputDesc(0)
	if !ok {
		return TensorDescriptor{}
	}
	weights, _ := n.inputDesc(1)
	output, err := FullyConnectedDescriptor(in, weights, n.numOutputs)
	if err != nil {
		return TensorDescriptor{}
	}
	return withQuantization(output, n.outQuant)
}

func (n *FullyConnectedNode) Validate() error {
	if err := n.requireInputs(0, 1); err != nil {
		return err
	}
	in, _ := n.inputDesc(0)
	weights, _ := n.inputDesc(1)
	_, err := FullyConnectedDescriptor(in, weights, n.numOutputs)
	return err
}

func (n *FullyConnectedNode) Accept(v NodeVisitor) { v.VisitFullyConnected(n) }

// PoolingNode reduces sliding windows of the spatial plane.
type PoolingNode struct {
	baseNode
	info PoolingInfo
}

// NewPoolingNode creates a pooling node.
func NewPoolingNode(info PoolingInfo) *PoolingNode {
	return &PoolingNode{baseNode: newBaseNode(NodeTypePooling, 1, 1), info: info}
}

func (n *PoolingNode) Info() PoolingInfo { return n.info }

func (n *PoolingNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *PoolingNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok := n.inputDesc(0)
	if !ok {
		return TensorDescriptor{}
	}
	output, err := PoolingDescriptor(in, n.info)
	if err != nil {
		return TensorDescriptor{}
	}
	return output
}

func (n *PoolingNode) Validate() error {
	if err := n.requireInputs(0); err != nil {
		return err
	}
	in, _ := n.inputDesc(0)
	_, err := PoolingDescriptor(in, n.info)
	return err
}

func (n *PoolingNode) Accept(v NodeVisitor) { v.VisitPooling(n) }

// SoftmaxNode normalizes its input with softmax(beta * x) along the innermost axis.
type SoftmaxNode struct {
	baseNode
	beta     float32
	outQuant QuantizationInfo
}

// NewSoftmaxNode creates a softmax node.
func NewSoftmaxNode(beta float32) *SoftmaxNode {
	return &SoftmaxNode{baseNode: newBaseNode(NodeTypeSoftmax, 1, 1), beta: beta}
}

func (n *SoftmaxNode) Beta() float32                            { return n.beta }
func (n *SoftmaxNode) OutputQuantization() QuantizationInfo     { return n.outQuant }
func (n *SoftmaxNode) SetOutputQuantization(q QuantizationInfo) { n.outQuant = q }

func (n *SoftmaxNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *SoftmaxNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	return withQuantization(n.passThrough(), n.outQuant)
}

func (n *SoftmaxNode) Validate() error { return n.requireInputs(0) }

func (n *SoftmaxNode) Accept(v NodeVisitor) { v.VisitSoftmax(n) }

// FlattenNode collapses all axes but the first.
type FlattenNode struct {
	baseNode
}

// NewFlattenNode creates a flatten node.
func NewFlattenNode() *FlattenNode {
	return &FlattenNode{baseNode: newBaseNode(NodeTypeFlatten, 1, 1)}
}

func (n *FlattenNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *FlattenNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok := n.inputDesc(0)
	if !ok {
		return TensorDescriptor{}
	}
	output, _ := FlattenDescriptor(in)
	return output
}

func (n *FlattenNode) Validate() error { return n.requireInputs(0) }

func (n *FlattenNode) Accept(v NodeVisitor) { v.VisitFlatten(n) }

// ReshapeNode changes the dimensions of its input, keeping the number of elements.
type ReshapeNode struct {
	baseNode
	dimensions []int
}

// NewReshapeNode creates a reshape node to the given dimensions.
func NewReshapeNode(dimensions ...int) *ReshapeNode {
	return &ReshapeNode{baseNode: newBaseNode(NodeTypeReshape, 1, 1), dimensions: slices.Clone(dimensions)}
}

func (n *ReshapeNode) Dimensions() []int { return slices.Clone(n.dimensions) }

func (n *ReshapeNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *ReshapeNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok := n.inputDesc(0)
	if !ok {
		return TensorDescriptor{}
	}
	output, err := ReshapeDescriptor(in, n.dimensions)
	if err != nil {
		return TensorDescriptor{}
	}
	return output
}

func (n *ReshapeNode) Validate() error {
	if err := n.requireInputs(0); err != nil {
		return err
	}
	in, _ := n.inputDesc(0)
	_, err := ReshapeDescriptor(in, n.dimensions)
	return err
}

func (n *ReshapeNode) Accept(v NodeVisitor) { v.VisitReshape(n) }

// QuantizationNode converts its input to a quantized data type.
type QuantizationNode struct {
	baseNode
	outQuant QuantizationInfo
	dtype    dtypes.DType
}

// NewQuantizationNode creates a quantization node producing dtype (Uint8 or Int8) with outQuant.
func NewQuantizationNode(outQuant QuantizationInfo, dtype dtypes.DType) *QuantizationNode {
	return &QuantizationNode{baseNode: newBaseNode(NodeTypeQuantization, 1, 1), outQuant: outQuant, dtype: dtype}
}

func (n *QuantizationNode) OutputQuantization() QuantizationInfo { return n.outQuant }
func (n *QuantizationNode) OutputDType() dtypes.DType            { return n.dtype }

func (n *QuantizationNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *QuantizationNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok := n.inputDesc(0)
	if !ok {
		return TensorDescriptor{}
	}
	return in.WithDType(n.dtype).WithQuantization(n.outQuant)
}

func (n *QuantizationNode) Validate() error {
	if err := n.requireInputs(0); err != nil {
		return err
	}
	if n.dtype != dtypes.Uint8 && n.dtype != dtypes.Int8 {
		return errors.Errorf("%s: unsupported quantized data type %s", n, n.dtype)
	}
	if n.outQuant.Empty() {
		return errors.Errorf("%s: missing output quantization", n)
	}
	return nil
}

func (n *QuantizationNode) Accept(v NodeVisitor) { v.VisitQuantization(n) }

// PrintFilter transforms a tensor before it is printed. It may return its argument.
type PrintFilter func(BackendTensor) BackendTensor

// PrintNode is a debug node: its output is its input, and at execution time the tensor values
// are written to a writer.
type PrintNode struct {
	baseNode
	writer io.Writer
	filter PrintFilter
}

// NewPrintNode creates a print node writing to w. filter may be nil.
func NewPrintNode(w io.Writer, filter PrintFilter) *PrintNode {
	return &PrintNode{baseNode: newBaseNode(NodeTypePrint, 1, 1), writer: w, filter: filter}
}

func (n *PrintNode) Writer() io.Writer   { return n.writer }
func (n *PrintNode) Filter() PrintFilter { return n.filter }

func (n *PrintNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *PrintNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	return n.passThrough()
}

func (n *PrintNode) Validate() error {
	if n.writer == nil {
		return errors.Errorf("%s: nil writer", n)
	}
	return n.requireInputs(0)
}

func (n *PrintNode) Accept(v NodeVisitor) { v.VisitPrint(n) }

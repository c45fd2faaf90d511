// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// ConcatenateNode concatenates its inputs along a logical axis.
//
// A disabled ConcatenateNode does no work at run time: its inputs were made sub-tensors of its output.
type ConcatenateNode struct {
	baseNode
	axis    shapes.DataLayoutDimension
	enabled bool
}

// NewConcatenateNode creates a concatenation of numInputs tensors along axis.
func NewConcatenateNode(numInputs int, axis shapes.DataLayoutDimension) *ConcatenateNode {
	if numInputs <= 0 {
		exceptions.Panicf("NewConcatenateNode: needs at least one input, got %d", numInputs)
	}
	return &ConcatenateNode{baseNode: newBaseNode(NodeTypeConcatenate, numInputs, 1), axis: axis, enabled: true}
}

func (n *ConcatenateNode) Axis() shapes.DataLayoutDimension { return n.axis }
func (n *ConcatenateNode) IsEnabled() bool                  { return n.enabled }
func (n *ConcatenateNode) SetEnabled(enabled bool)          { n.enabled = enabled }

func (n *ConcatenateNode) inputDescs() ([]TensorDescriptor, bool) {
	descs := make([]TensorDescriptor, n.NumInputs())
	for idx := range descs {
		desc, ok := n.inputDesc(idx)
		if !ok {
			return nil, false
		}
		descs[idx] = desc
	}
	return descs, true
}

func (n *ConcatenateNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *ConcatenateNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	descs, ok := n.inputDescs()
	if !ok {
		return TensorDescriptor{}
	}
	output, err := ConcatenateDescriptor(descs, n.axis)
	if err != nil {
		return TensorDescriptor{}
	}
	return output
}

func (n *ConcatenateNode) Validate() error {
	descs, ok := n.inputDescs()
	if !ok {
		return errors.Errorf("%s: not all inputs are connected and resolved", n)
	}
	_, err := ConcatenateDescriptor(descs, n.axis)
	return err
}

func (n *ConcatenateNode) Accept(v NodeVisitor) { v.VisitConcatenate(n) }

// SplitNode splits its input in equal parts along an axis of the shape.
//
// A disabled SplitNode does no work at run time: its outputs were made sub-tensors of its input.
type SplitNode struct {
	baseNode
	numSplits int
	axis      int
	enabled   bool
}

// NewSplitNode creates a split of the input in numSplits parts along axis. Negative axes count from the end.
func NewSplitNode(numSplits, axis int) *SplitNode {
	if numSplits <= 0 {
		exceptions.Panicf("NewSplitNode: needs at least one split, got %d", numSplits)
	}
	return &SplitNode{baseNode: newBaseNode(NodeTypeSplit, 1, numSplits), numSplits: numSplits, axis: axis, enabled: true}
}

func (n *SplitNode) NumSplits() int          { return n.numSplits }
func (n *SplitNode) IsEnabled() bool         { return n.enabled }
func (n *SplitNode) SetEnabled(enabled bool) { n.enabled = enabled }

// Axis returns the split axis, adjusted to be non-negative once the input is known.
func (n *SplitNode) Axis() int {
	if n.axis < 0 {
		if in, ok := n.inputDesc(0); ok {
			return n.axis + in.Shape.Rank()
		}
	}
	return n.axis
}

// Offset returns the offset of output idx along the split axis.
func (n *SplitNode) Offset(idx int) int {
	in, ok := n.inputDesc(0)
	if !ok {
		return 0
	}
	return idx * in.Shape.Dim(n.Axis()) / n.numSplits
}

func (n *SplitNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *SplitNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok := n.inputDesc(0)
	if !ok {
		return TensorDescriptor{}
	}
	output, err := SplitDescriptor(in, n.numSplits, n.axis)
	if err != nil {
		return TensorDescriptor{}
	}
	return output
}

func (n *SplitNode) Validate() error {
	if err := n.requireInputs(0); err != nil {
		return err
	}
	in, _ := n.inputDesc(0)
	_, err := SplitDescriptor(in, n.numSplits, n.axis)
	return err
}

func (n *SplitNode) Accept(v NodeVisitor) { v.VisitSplit(n) }

// PriorBoxNode generates the SSD prior boxes for a feature map. Inputs: feature map and image.
type PriorBoxNode struct {
	baseNode
	info PriorBoxInfo
}

// NewPriorBoxNode creates a prior box node.
func NewPriorBoxNode(info PriorBoxInfo) *PriorBoxNode {
	return &PriorBoxNode{baseNode: newBaseNode(NodeTypePriorBox, 2, 1), info: info}
}

func (n *PriorBoxNode) Info() PriorBoxInfo { return n.info }

func (n *PriorBoxNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *PriorBoxNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok0 := n.inputDesc(0)
	if _, ok1 := n.inputDesc(1); !ok0 || !ok1 {
		return TensorDescriptor{}
	}
	output, err := PriorBoxDescriptor(in, n.info)
	if err != nil {
		return TensorDescriptor{}
	}
	return output
}

func (n *PriorBoxNode) Validate() error {
	if err := n.requireInputs(0, 1); err != nil {
		return err
	}
	in, _ := n.inputDesc(0)
	_, err := PriorBoxDescriptor(in, n.info)
	return err
}

func (n *PriorBoxNode) Accept(v NodeVisitor) { v.VisitPriorBox(n) }

// Input slots of DetectionOutputNode.
const (
	DetectionLocation = iota
	DetectionConfidence
	DetectionPriors
)

// DetectionOutputNode decodes SSD box predictions and keeps the best detections.
// Inputs: box locations, class confidences and prior boxes.
type DetectionOutputNode struct {
	baseNode
	info DetectionOutputInfo
}

// NewDetectionOutputNode creates a detection output node.
func NewDetectionOutputNode(info DetectionOutputInfo) *DetectionOutputNode {
	return &DetectionOutputNode{baseNode: newBaseNode(NodeTypeDetectionOutput, 3, 1), info: info}
}

func (n *DetectionOutputNode) Info() DetectionOutputInfo { return n.info }

func (n *DetectionOutputNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *DetectionOutputNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	for ii := range n.NumInputs() {
		if _, ok := n.inputDesc(ii); !ok {
			return TensorDescriptor{}
		}
	}
	location, _ := n.inputDesc(DetectionLocation)
	output, err := DetectionOutputDescriptor(location, n.info)
	if err != nil {
		return TensorDescriptor{}
	}
	return output
}

func (n *DetectionOutputNode) Validate() error {
	if err := n.requireInputs(DetectionLocation, DetectionConfidence, DetectionPriors); err != nil {
		return err
	}
	location, _ := n.inputDesc(DetectionLocation)
	_, err := DetectionOutputDescriptor(location, n.info)
	return err
}

func (n *DetectionOutputNode) Accept(v NodeVisitor) { v.VisitDetectionOutput(n) }

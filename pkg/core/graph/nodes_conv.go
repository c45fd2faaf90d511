// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Input slots shared by convolution and fully connected nodes.
const (
	ConvInput = iota
	ConvWeights
	ConvBias
)

// Input slots of FusedConvolutionBatchNormalizationNode, continuing after ConvBias.
const (
	FusedConvMean = iota + ConvBias + 1
	FusedConvVar
	FusedConvBeta
	FusedConvGamma
)

// ConvolutionNode is a grouped 2D convolution. Inputs: input, weights and an optional bias.
type ConvolutionNode struct {
	baseNode
	info                 PadStrideInfo
	numGroups            int
	dilationX, dilationY int
	method               ConvolutionMethod
	fastMath             FastMathHint
	outQuant             QuantizationInfo
	fusedActivation      ActivationInfo
}

// NewConvolutionNode creates a convolution node. numGroups is 1 for a regular convolution.
func NewConvolutionNode(info PadStrideInfo, numGroups int, method ConvolutionMethod, fastMath FastMathHint, outQuant QuantizationInfo) *ConvolutionNode {
	if numGroups <= 0 {
		numGroups = 1
	}
	return &ConvolutionNode{
		baseNode:  newBaseNode(NodeTypeConvolution, 3, 1),
		info:      info,
		numGroups: numGroups,
		dilationX: 1,
		dilationY: 1,
		method:    method,
		fastMath:  fastMath,
		outQuant:  outQuant,
	}
}

func (n *ConvolutionNode) Info() PadStrideInfo                  { return n.info }
func (n *ConvolutionNode) NumGroups() int                       { return n.numGroups }
func (n *ConvolutionNode) Dilation() (x, y int)                 { return n.dilationX, n.dilationY }
func (n *ConvolutionNode) ConvolutionMethod() ConvolutionMethod { return n.method }
func (n *ConvolutionNode) FastMathHint() FastMathHint           { return n.fastMath }
func (n *ConvolutionNode) OutputQuantization() QuantizationInfo { return n.outQuant }
func (n *ConvolutionNode) FusedActivation() ActivationInfo      { return n.fusedActivation }

func (n *ConvolutionNode) SetDilation(x, y int)                     { n.dilationX, n.dilationY = x, y }
func (n *ConvolutionNode) SetConvolutionMethod(m ConvolutionMethod) { n.method = m }
func (n *ConvolutionNode) SetFastMathHint(hint FastMathHint)        { n.fastMath = hint }
func (n *ConvolutionNode) SetFusedActivation(info ActivationInfo)   { n.fusedActivation = info }

func (n *ConvolutionNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *ConvolutionNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok0 := n.inputDesc(ConvInput)
	weights, ok1 := n.inputDesc(ConvWeights)
	if !ok0 || !ok1 {
		return TensorDescriptor{}
	}
	output, err := ConvolutionDescriptor(in, weights, n.info, n.numGroups, n.dilationX, n.dilationY)
	if err != nil {
		return TensorDescriptor{}
	}
	return withQuantization(output, n.outQuant)
}

func (n *ConvolutionNode) Validate() error {
	if err := n.requireInputs(ConvInput, ConvWeights); err != nil {
		return err
	}
	in, _ := n.inputDesc(ConvInput)
	weights, _ := n.inputDesc(ConvWeights)
	if _, err := ConvolutionDescriptor(in, weights, n.info, n.numGroups, n.dilationX, n.dilationY); err != nil {
		return errors.WithMessagef(err, "%s", n)
	}
	return validateBias(n, weights)
}

func (n *ConvolutionNode) Accept(v NodeVisitor) { v.VisitConvolution(n) }

// validateBias checks that a connected bias has one value per output feature map (the weights' Batch dimension).
func validateBias(n Node, weights TensorDescriptor) error {
	bias := n.Input(ConvBias)
	if bias == nil {
		return nil
	}
	want := weights.Shape.Dim(0)
	if bias.Desc().Shape.Size() != want {
		return errors.Errorf("%s: bias %s should have %d elements", n, bias.Desc().Shape, want)
	}
	return nil
}

// DepthwiseConvolutionNode is a depthwise 2D convolution. Inputs: input, weights and an optional bias.
type DepthwiseConvolutionNode struct {
	baseNode
	info                 PadStrideInfo
	depthMultiplier      int
	dilationX, dilationY int
	outQuant             QuantizationInfo
	fusedActivation      ActivationInfo
}

// NewDepthwiseConvolutionNode creates a depthwise convolution node.
func NewDepthwiseConvolutionNode(info PadStrideInfo, depthMultiplier int, outQuant QuantizationInfo) *DepthwiseConvolutionNode {
	if depthMultiplier <= 0 {
		depthMultiplier = 1
	}
	return &DepthwiseConvolutionNode{
		baseNode:        newBaseNode(NodeTypeDepthwiseConvolution, 3, 1),
		info:            info,
		depthMultiplier: depthMultiplier,
		dilationX:       1,
		dilationY:       1,
		outQuant:        outQuant,
	}
}

func (n *DepthwiseConvolutionNode) Info() PadStrideInfo                    { return n.info }
func (n *DepthwiseConvolutionNode) DepthMultiplier() int                   { return n.depthMultiplier }
func (n *DepthwiseConvolutionNode) Dilation() (x, y int)                   { return n.dilationX, n.dilationY }
func (n *DepthwiseConvolutionNode) OutputQuantization() QuantizationInfo   { return n.outQuant }
func (n *DepthwiseConvolutionNode) FusedActivation() ActivationInfo        { return n.fusedActivation }
func (n *DepthwiseConvolutionNode) SetDilation(x, y int)                   { n.dilationX, n.dilationY = x, y }
func (n *DepthwiseConvolutionNode) SetFusedActivation(info ActivationInfo) { n.fusedActivation = info }

func (n *DepthwiseConvolutionNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *DepthwiseConvolutionNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok0 := n.inputDesc(ConvInput)
	weights, ok1 := n.inputDesc(ConvWeights)
	if !ok0 || !ok1 {
		return TensorDescriptor{}
	}
	output, err := DepthwiseConvolutionDescriptor(in, weights, n.info, n.depthMultiplier, n.dilationX, n.dilationY)
	if err != nil {
		return TensorDescriptor{}
	}
	return withQuantization(output, n.outQuant)
}

func (n *DepthwiseConvolutionNode) Validate() error {
	if err := n.requireInputs(ConvInput, ConvWeights); err != nil {
		return err
	}
	in, _ := n.inputDesc(ConvInput)
	weights, _ := n.inputDesc(ConvWeights)
	_, err := DepthwiseConvolutionDescriptor(in, weights, n.info, n.depthMultiplier, n.dilationX, n.dilationY)
	if err != nil {
		return errors.WithMessagef(err, "%s", n)
	}
	bias := n.Input(ConvBias)
	if bias != nil && bias.Desc().Shape.Size() != weights.Dim(shapes.DimChannel) {
		return errors.Errorf("%s: bias %s should have %d elements", n, bias.Desc().Shape, weights.Dim(shapes.DimChannel))
	}
	return nil
}

func (n *DepthwiseConvolutionNode) Accept(v NodeVisitor) { v.VisitDepthwiseConvolution(n) }

// FusedConvolutionBatchNormalizationNode is a convolution followed by a batch normalization,
// computed as a single operation. Inputs: input, weights, bias (optional), mean, var,
// beta (optional) and gamma (optional).
type FusedConvolutionBatchNormalizationNode struct {
	baseNode
	epsilon         float32
	info            PadStrideInfo
	numGroups       int
	method          ConvolutionMethod
	fastMath        FastMathHint
	fusedActivation ActivationInfo
}

// NewFusedConvolutionBatchNormalizationNode creates the fused node.
func NewFusedConvolutionBatchNormalizationNode(epsilon float32, info PadStrideInfo, numGroups int, method ConvolutionMethod,
	fastMath FastMathHint, fusedActivation ActivationInfo) *FusedConvolutionBatchNormalizationNode {
	if numGroups <= 0 {
		numGroups = 1
	}
	return &FusedConvolutionBatchNormalizationNode{
		baseNode:        newBaseNode(NodeTypeFusedConvolutionBatchNormalization, 7, 1),
		epsilon:         epsilon,
		info:            info,
		numGroups:       numGroups,
		method:          method,
		fastMath:        fastMath,
		fusedActivation: fusedActivation,
	}
}

func (n *FusedConvolutionBatchNormalizationNode) Epsilon() float32                       { return n.epsilon }
func (n *FusedConvolutionBatchNormalizationNode) Info() PadStrideInfo                    { return n.info }
func (n *FusedConvolutionBatchNormalizationNode) NumGroups() int                         { return n.numGroups }
func (n *FusedConvolutionBatchNormalizationNode) ConvolutionMethod() ConvolutionMethod   { return n.method }
func (n *FusedConvolutionBatchNormalizationNode) FastMathHint() FastMathHint             { return n.fastMath }
func (n *FusedConvolutionBatchNormalizationNode) FusedActivation() ActivationInfo        { return n.fusedActivation }
func (n *FusedConvolutionBatchNormalizationNode) SetFusedActivation(info ActivationInfo) { n.fusedActivation = info }

func (n *FusedConvolutionBatchNormalizationNode) ForwardDescriptors() bool { return n.forward(n) }

func (n *FusedConvolutionBatchNormalizationNode) ConfigureOutput(idx int) TensorDescriptor {
	n.checkOutputIdx(idx)
	in, ok0 := n.inputDesc(ConvInput)
	weights, ok1 := n.inputDesc(ConvWeights)
	if !ok0 || !ok1 {
		return TensorDescriptor{}
	}
	output, err := ConvolutionDescriptor(in, weights, n.info, n.numGroups, 1, 1)
	if err != nil {
		return TensorDescriptor{}
	}
	return output
}

func (n *FusedConvolutionBatchNormalizationNode) Validate() error {
	if err := n.requireInputs(ConvInput, ConvWeights, FusedConvMean, FusedConvVar); err != nil {
		return err
	}
	in, _ := n.inputDesc(ConvInput)
	weights, _ := n.inputDesc(ConvWeights)
	output, err := ConvolutionDescriptor(in, weights, n.info, n.numGroups, 1, 1)
	if err != nil {
		return errors.WithMessagef(err, "%s", n)
	}
	if err := validateBias(n, weights); err != nil {
		return err
	}
	return validateChannelParams(n, output, FusedConvMean, FusedConvGamma)
}

func (n *FusedConvolutionBatchNormalizationNode) Accept(v NodeVisitor) {
	v.VisitFusedConvolutionBatchNormalization(n)
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

// NodeVisitor has one method per concrete node type: Node.Accept calls the matching one.
type NodeVisitor interface {
	VisitInput(n *InputNode)
	VisitOutput(n *OutputNode)
	VisitConst(n *ConstNode)
	VisitActivation(n *ActivationNode)
	VisitBatchNormalization(n *BatchNormalizationNode)
	VisitConcatenate(n *ConcatenateNode)
	VisitConvolution(n *ConvolutionNode)
	VisitDepthwiseConvolution(n *DepthwiseConvolutionNode)
	VisitFusedConvolutionBatchNormalization(n *FusedConvolutionBatchNormalizationNode)
	VisitEltwise(n *EltwiseNode)
	VisitFullyConnected(n *FullyConnectedNode)
	VisitPooling(n *PoolingNode)
	VisitSoftmax(n *SoftmaxNode)
	VisitFlatten(n *FlattenNode)
	VisitReshape(n *ReshapeNode)
	VisitSplit(n *SplitNode)
	VisitPrint(n *PrintNode)
	VisitQuantization(n *QuantizationNode)
	VisitPriorBox(n *PriorBoxNode)
	VisitDetectionOutput(n *DetectionOutputNode)
}

// DefaultNodeVisitor implements NodeVisitor by calling Fallback (if set) for every node.
//
// Embed it and override only the methods of interest.
type DefaultNodeVisitor struct {
	Fallback func(n Node)
}

func (v *DefaultNodeVisitor) fallback(n Node) {
	if v.Fallback != nil {
		v.Fallback(n)
	}
}

func (v *DefaultNodeVisitor) VisitInput(n *InputNode)                                                           { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitOutput(n *OutputNode)                                                         { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitConst(n *ConstNode)                                                           { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitActivation(n *ActivationNode)                                                 { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitBatchNormalization(n *BatchNormalizationNode)                                 { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitConcatenate(n *ConcatenateNode)                                               { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitConvolution(n *ConvolutionNode)                                               { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitDepthwiseConvolution(n *DepthwiseConvolutionNode)                             { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitFusedConvolutionBatchNormalization(n *FusedConvolutionBatchNormalizationNode) { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitEltwise(n *EltwiseNode)                                                       { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitFullyConnected(n *FullyConnectedNode)                                         { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitPooling(n *PoolingNode)                                                       { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitSoftmax(n *SoftmaxNode)                                                       { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitFlatten(n *FlattenNode)                                                       { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitReshape(n *ReshapeNode)                                                       { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitSplit(n *SplitNode)                                                           { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitPrint(n *PrintNode)                                                           { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitQuantization(n *QuantizationNode)                                             { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitPriorBox(n *PriorBoxNode)                                                     { v.fallback(n) }
func (v *DefaultNodeVisitor) VisitDetectionOutput(n *DetectionOutputNode)                                       { v.fallback(n) }

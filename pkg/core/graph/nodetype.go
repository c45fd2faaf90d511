// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

// NodeType enumerates the operator kinds a Graph can hold.
//
// The set is closed: lowering and mutation code switch over it.
type NodeType int

//go:generate go tool enumer -type=NodeType -trimprefix=NodeType -output=gen_nodetype_enumer.go nodetype.go

const (
	NodeTypeInvalid NodeType = iota
	NodeTypeInput
	NodeTypeOutput
	NodeTypeConst
	NodeTypeActivation
	NodeTypeBatchNormalization
	NodeTypeConcatenate
	NodeTypeConvolution
	NodeTypeDepthwiseConvolution
	NodeTypeFusedConvolutionBatchNormalization
	NodeTypeEltwise
	NodeTypeFullyConnected
	NodeTypePooling
	NodeTypeSoftmax
	NodeTypeFlatten
	NodeTypeReshape
	NodeTypeSplit
	NodeTypePrint
	NodeTypeQuantization
	NodeTypePriorBox
	NodeTypeDetectionOutput

	// NodeTypeLast should always be kept the last, it is used as a counter/marker for NodeType.
	NodeTypeLast
)

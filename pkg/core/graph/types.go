// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"
)

// NodeID, TensorID and EdgeID are indices into the owning Graph's arenas. They are never reused
// within a Graph, even after the entity they refer to is removed.
type (
	NodeID   int
	TensorID int
	EdgeID   int
	GraphID  int
)

const (
	// EmptyNodeID refers to no node: used for graph-boundary edges and unset references.
	EmptyNodeID NodeID = -1

	// NullTensorID refers to no tensor.
	NullTensorID TensorID = -1

	// EmptyEdgeID marks an unconnected input slot.
	EmptyEdgeID EdgeID = -1
)

// Target is the hardware backend a node or tensor is assigned to.
//
// Besides the predefined targets, any other positive value is a valid target for backends
// registered by users (e.g. test stubs).
type Target int

//go:generate go tool enumer -type=Target -trimprefix=Target -output=gen_target_enumer.go types.go

const (
	TargetUnspecified Target = iota
	TargetCPU
	TargetGPU
)

// NodeIdxPair identifies one output slot of a node.
type NodeIdxPair struct {
	NodeID NodeID
	Index  int
}

// String implements fmt.Stringer.
func (p NodeIdxPair) String() string {
	return fmt.Sprintf("#%d:%d", p.NodeID, p.Index)
}

// QuantizationInfo holds the affine quantization parameters of a tensor: real = scale * (q - offset).
//
// An empty QuantizationInfo means the tensor is not quantized.
type QuantizationInfo struct {
	Scales  []float32
	Offsets []int32
}

// MakeQuantizationInfo returns a per-tensor (uniform) quantization.
func MakeQuantizationInfo(scale float32, offset int32) QuantizationInfo {
	return QuantizationInfo{Scales: []float32{scale}, Offsets: []int32{offset}}
}

// Empty returns whether there is no quantization information.
func (q QuantizationInfo) Empty() bool { return len(q.Scales) == 0 && len(q.Offsets) == 0 }

// Scale returns the first (uniform) scale, or 1 if not set.
func (q QuantizationInfo) Scale() float32 {
	if len(q.Scales) == 0 {
		return 1
	}
	return q.Scales[0]
}

// Offset returns the first (uniform) offset, or 0 if not set.
func (q QuantizationInfo) Offset() int32 {
	if len(q.Offsets) == 0 {
		return 0
	}
	return q.Offsets[0]
}

// Equal returns whether both quantizations have exactly the same parameters.
func (q QuantizationInfo) Equal(q2 QuantizationInfo) bool {
	return slices.Equal(q.Scales, q2.Scales) && slices.Equal(q.Offsets, q2.Offsets)
}

// Clone returns a deep copy.
func (q QuantizationInfo) Clone() QuantizationInfo {
	return QuantizationInfo{Scales: slices.Clone(q.Scales), Offsets: slices.Clone(q.Offsets)}
}

// String implements fmt.Stringer.
func (q QuantizationInfo) String() string {
	if q.Empty() {
		return "none"
	}
	if len(q.Scales) == 1 && len(q.Offsets) == 1 {
		return fmt.Sprintf("(scale=%g, offset=%d)", q.Scales[0], q.Offsets[0])
	}
	return fmt.Sprintf("(scales=%v, offsets=%v)", q.Scales, q.Offsets)
}

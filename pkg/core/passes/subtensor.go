// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"slices"

	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DepthConcatSubTensorMutator replaces concatenations by making their inputs sub-tensors of
// the output: producers write directly at their offset in the concatenated tensor, and the
// Concatenate node is disabled.
//
// It only applies to concatenations along an axis whose preceding axes have dimension 1, so
// each input is a contiguous block of the output.
type DepthConcatSubTensorMutator struct{}

var _ Mutator = DepthConcatSubTensorMutator{}

// NewDepthConcatSubTensorMutator creates the concatenation sub-tensor pass.
func NewDepthConcatSubTensorMutator() DepthConcatSubTensorMutator {
	return DepthConcatSubTensorMutator{}
}

func (DepthConcatSubTensorMutator) Name() string       { return "DepthConcatSubTensorMutator" }
func (DepthConcatSubTensorMutator) Type() MutationType { return MutationTypeBackend }

// leadingAxesTrivial returns whether all axes before axis have dimension 1.
func leadingAxesTrivial(shape shapes.Shape, axis int) bool {
	for ii := range axis {
		if shape.Dim(ii) != 1 {
			return false
		}
	}
	return true
}

// reversed returns the ids in reverse order: outer concatenations are processed before the
// inner ones, so nested sub-tensors end up in the outermost tensor.
func reversed(ids []graph.NodeID) []graph.NodeID {
	ids = slices.Clone(ids)
	slices.Reverse(ids)
	return ids
}

// Mutate implements Mutator.
func (m DepthConcatSubTensorMutator) Mutate(g *graph.Graph) error {
	for _, nid := range reversed(g.NodesOfType(graph.NodeTypeConcatenate)) {
		concat := g.Node(nid).(*graph.ConcatenateNode)
		if !concat.IsEnabled() {
			continue
		}
		inputs, ok := m.subTensorInputs(concat)
		if !ok {
			continue
		}
		out := concat.Output(0)
		backend, err := backends.Get(out.Handle().Target())
		if err != nil {
			return errors.WithMessagef(err, "%s: %s", m.Name(), concat)
		}
		axis := out.Desc().AxisOf(concat.Axis())
		offset := 0
		for _, in := range inputs {
			coords := make([]int, out.Desc().Shape.Rank())
			coords[axis] = offset
			sub, err := backend.CreateSubTensor(out.Handle(), in.Desc().Shape, coords, false)
			if err != nil {
				return errors.WithMessagef(err, "%s: input #%d of %s", m.Name(), in.ID(), concat)
			}
			in.SetHandle(sub)
			offset += in.Desc().Shape.Dim(axis)
		}
		concat.SetEnabled(false)
		klog.V(1).Infof("%s: %s replaced by %d sub-tensors", m.Name(), concat, len(inputs))
	}
	return nil
}

// subTensorInputs returns the inputs of concat if they can all become sub-tensors of its output.
func (m DepthConcatSubTensorMutator) subTensorInputs(concat *graph.ConcatenateNode) ([]*graph.Tensor, bool) {
	out := concat.Output(0)
	if out == nil || out.Handle() == nil {
		return nil, false
	}
	outDesc := out.Desc()
	if !leadingAxesTrivial(outDesc.Shape, outDesc.AxisOf(concat.Axis())) {
		klog.V(2).Infof("%s: %s is not contiguous along its axis", m.Name(), concat)
		return nil, false
	}
	inputs := make([]*graph.Tensor, concat.NumInputs())
	for idx := range inputs {
		in := concat.Input(idx)
		if in == nil || in.Handle() == nil || in.Handle().IsSubTensor() || slices.Contains(inputs[:idx], in) {
			return nil, false
		}
		if in.Handle().Target() != out.Handle().Target() || !in.Desc().Quantization.Equal(outDesc.Quantization) {
			return nil, false
		}
		inputs[idx] = in
	}
	return inputs, true
}

// SplitLayerSubTensorMutator makes the outputs of split nodes sub-tensors of their input and
// disables the Split node.
type SplitLayerSubTensorMutator struct{}

var _ Mutator = SplitLayerSubTensorMutator{}

// NewSplitLayerSubTensorMutator creates the split sub-tensor pass.
func NewSplitLayerSubTensorMutator() SplitLayerSubTensorMutator { return SplitLayerSubTensorMutator{} }

func (SplitLayerSubTensorMutator) Name() string       { return "SplitLayerSubTensorMutator" }
func (SplitLayerSubTensorMutator) Type() MutationType { return MutationTypeBackend }

// Mutate implements Mutator.
func (m SplitLayerSubTensorMutator) Mutate(g *graph.Graph) error {
	for _, nid := range reversed(g.NodesOfType(graph.NodeTypeSplit)) {
		split := g.Node(nid).(*graph.SplitNode)
		in := split.Input(0)
		if !split.IsEnabled() || in == nil || in.Handle() == nil || !m.canSplit(split) {
			continue
		}
		backend, err := backends.Get(in.Handle().Target())
		if err != nil {
			return errors.WithMessagef(err, "%s: %s", m.Name(), split)
		}
		axis := split.Axis()
		for idx := range split.NumOutputs() {
			out := split.Output(idx)
			coords := make([]int, in.Desc().Shape.Rank())
			coords[axis] = split.Offset(idx)
			sub, err := backend.CreateSubTensor(in.Handle(), out.Desc().Shape, coords, false)
			if err != nil {
				return errors.WithMessagef(err, "%s: output #%d of %s", m.Name(), idx, split)
			}
			out.SetHandle(sub)
		}
		split.SetEnabled(false)
		klog.V(1).Infof("%s: %s outputs are sub-tensors of its input", m.Name(), split)
	}
	return nil
}

func (m SplitLayerSubTensorMutator) canSplit(split *graph.SplitNode) bool {
	target := split.Input(0).Handle().Target()
	for idx := range split.NumOutputs() {
		out := split.Output(idx)
		if out == nil || out.Handle() == nil || out.Handle().IsSubTensor() || out.Handle().Target() != target {
			return false
		}
	}
	return true
}

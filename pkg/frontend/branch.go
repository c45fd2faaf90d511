// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/nngraph/pkg/core/builder"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
)

// BranchMergeMethod selects how the outputs of the branches of a BranchLayer are combined.
type BranchMergeMethod int

//go:generate go tool enumer -type=BranchMergeMethod -trimprefix=Merge -output=gen_branchmergemethod_enumer.go branch.go

const (
	// MergeDepthConcatenate concatenates the branch outputs along the channel dimension.
	MergeDepthConcatenate BranchMergeMethod = iota

	// MergeAdd adds the outputs of exactly two branches element-wise.
	MergeAdd
)

// BranchLayer runs several branches from the same tail and merges their outputs.
//
// SubStreams are branches already built on the stream (see NewSubStream). SubGraphs are
// created on new sub-streams starting from the tail, after the SubStreams.
type BranchLayer struct {
	Name       string
	Merge      BranchMergeMethod
	SubStreams []*SubStream
	SubGraphs  []*SubGraph
}

// Create implements Layer.
func (l *BranchLayer) Create(s Builder) graph.NodeID {
	tails := make([]graph.NodeIdxPair, 0, len(l.SubStreams)+len(l.SubGraphs))
	for idx, sub := range l.SubStreams {
		if err := sub.Err(); err != nil {
			exceptions.Panicf("frontend: branch #%d: %+v", idx, err)
		}
		if sub.Graph() != s.Graph() {
			exceptions.Panicf("frontend: branch #%d was built on graph %q, not %q", idx, sub.Graph().Name(), s.Graph().Name())
		}
		tails = append(tails, tailPair(sub, "Branch"))
	}
	for _, sg := range l.SubGraphs {
		sub := NewSubStream(s)
		sub.SetTail(sg.Create(sub))
		tails = append(tails, tailPair(sub, "Branch"))
	}
	switch {
	case len(tails) == 0:
		exceptions.Panicf("frontend: branch layer %q has no branches", l.Name)
	case len(tails) == 1:
		return tails[0].NodeID
	}
	switch l.Merge {
	case MergeDepthConcatenate:
		return builder.AddConcatenateNode(s.Graph(), params(s, l.Name), tails, shapes.DimChannel)
	case MergeAdd:
		if len(tails) != 2 {
			exceptions.Panicf("frontend: branch layer %q: %s merge requires 2 branches, got %d", l.Name, l.Merge, len(tails))
		}
		return builder.AddEltwiseNode(s.Graph(), params(s, l.Name), tails[0], tails[1], graph.EltwiseAdd, graph.QuantizationInfo{})
	default:
		exceptions.Panicf("frontend: branch layer %q: unknown merge method %s", l.Name, l.Merge)
	}
	return graph.EmptyNodeID
}

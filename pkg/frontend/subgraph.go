// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/nngraph/pkg/core/builder"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
)

// TensorObject is a constant tensor owned by a SubGraph, created in the graph when the
// sub-graph is.
type TensorObject struct {
	Name     string
	Desc     graph.TensorDescriptor
	Accessor graph.TensorAccessor
}

// NodeFunc creates the nodes of one step of a SubGraph. objects are the constant nodes of the
// sub-graph's tensor objects, in the order they were added.
type NodeFunc func(s Builder, objects []graph.NodeIdxPair) graph.NodeID

// SubGraph accumulates layers and tensor objects that are only committed to a graph when the
// sub-graph is created: on a stream (it is a Layer itself, usually a branch of a BranchLayer),
// or as a graph of its own with Construct.
//
// A SubGraph can be created any number of times.
type SubGraph struct {
	steps   []NodeFunc
	objects []TensorObject
}

var _ Layer = (*SubGraph)(nil)

// NewSubGraph creates a sub-graph with the given layers.
func NewSubGraph(layers ...Layer) *SubGraph {
	return (&SubGraph{}).Add(layers...)
}

// AddNode appends a step.
func (sg *SubGraph) AddNode(fn NodeFunc) *SubGraph {
	sg.steps = append(sg.steps, fn)
	return sg
}

// AddTensorObject registers a constant and returns its index among the objects passed to NodeFunc.
func (sg *SubGraph) AddTensorObject(obj TensorObject) int {
	sg.objects = append(sg.objects, obj)
	return len(sg.objects) - 1
}

// Add appends layers.
func (sg *SubGraph) Add(layers ...Layer) *SubGraph {
	for _, layer := range layers {
		sg.steps = append(sg.steps, func(s Builder, _ []graph.NodeIdxPair) graph.NodeID {
			return layer.Create(s)
		})
	}
	return sg
}

// NumNodes returns the number of steps (layers and node functions) added.
func (sg *SubGraph) NumNodes() int { return len(sg.steps) }

// Create implements Layer: it adds the tensor objects and then all the steps, in order,
// starting from the tail of s. It returns the last tail.
func (sg *SubGraph) Create(s Builder) graph.NodeID {
	objects := make([]graph.NodeIdxPair, len(sg.objects))
	for idx, obj := range sg.objects {
		nid := builder.AddConstNode(s.Graph(), params(s, obj.Name), obj.Desc, obj.Accessor)
		objects[idx] = graph.NodeIdxPair{NodeID: nid}
	}
	sub := NewSubStream(s)
	for _, step := range sg.steps {
		sub.SetTail(step(sub, objects))
	}
	return sub.Tail()
}

// firstConstructedID is the id of the first graph created by Construct, far from the ids
// usually given to streams.
const firstConstructedID = 1 << 20

var nextGraphID atomic.Int32

// Construct creates a new graph: input, followed by the sub-graph, followed by output.
// The descriptors of the graph are forwarded (with the limit of passes configured in ctx,
// that can be nil), and an error is returned if they don't resolve.
func (sg *SubGraph) Construct(ctx *graph.Context, input *InputLayer, output *OutputLayer) (g *graph.Graph, err error) {
	name := "subgraph"
	if input.Name != "" {
		name = input.Name + "/subgraph"
	}
	g = graph.New(graph.GraphID(firstConstructedID+int(nextGraphID.Add(1))-1), name)
	s := &SubStream{graph: g, tail: graph.EmptyNodeID}
	err = exceptions.TryCatch[error](func() {
		s.SetTail(input.Create(s))
		s.SetTail(sg.Create(s))
		s.SetTail(output.Create(s))
	})
	if err != nil {
		return nil, errors.WithMessage(err, "constructing sub-graph")
	}
	maxPasses := 0
	if ctx != nil {
		maxPasses = ctx.Config().MaxDescriptorPasses
	}
	if err = graph.ForwardAllDescriptors(g, maxPasses); err != nil {
		return nil, err
	}
	return g, nil
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package frontend offers a terse way of building graphs: layers are added in sequence to a
// Stream, each one consuming the output of the previous one (the stream's tail).
//
// Example:
//
//	s := frontend.NewStream(0, "lenet")
//	s.Add(
//		&frontend.InputLayer{Desc: desc, Accessor: input},
//		&frontend.ConvolutionLayer{KernelWidth: 5, KernelHeight: 5, Depth: 20, Weights: w1},
//		&frontend.PoolingLayer{Info: pool},
//		&frontend.OutputLayer{Accessor: output},
//	)
//	if err := s.Finalize(graph.TargetCPU, graph.DefaultConfig()); err != nil { ... }
//	runs, err := s.RunUntilDone()
//
// Structural mistakes (e.g. a layer with no input; unresolvable shapes) panic inside the
// layers, and are returned as errors by Add, Err and Finalize.
package frontend

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/manager"
	"github.com/gomlx/nngraph/pkg/core/passes"
	"github.com/pkg/errors"
)

// Hints are applied to the nodes created by the layers of a stream.
type Hints struct {
	// Target requested for the nodes.
	Target graph.Target

	// ConvolutionMethod requested for convolutions.
	ConvolutionMethod graph.ConvolutionMethod

	// FastMath allows backends to use faster, less precise, algorithms for convolutions.
	FastMath graph.FastMathHint
}

// Builder is implemented by Stream and SubStream: it's what layers are created on.
type Builder interface {
	// Graph the nodes are added to.
	Graph() *graph.Graph

	// Tail is the last node added, the input of the next layer.
	Tail() graph.NodeID

	// SetTail sets the node the next layer consumes.
	SetTail(nid graph.NodeID)

	// Hints applied to new nodes. They can be changed in between layers.
	Hints() *Hints
}

// Layer creates one or more nodes consuming the tail of the builder, and returns the node
// that becomes the new tail.
//
// Layers panic (with exceptions.Panicf) on structural errors.
type Layer interface {
	Create(s Builder) graph.NodeID
}

// LayerFunc is a function implementing Layer.
type LayerFunc func(s Builder) graph.NodeID

// Create implements Layer.
func (fn LayerFunc) Create(s Builder) graph.NodeID { return fn(s) }

// addLayers creates each layer in turn, converting panics to an error.
func addLayers(s Builder, layers []Layer) error {
	return exceptions.TryCatch[error](func() {
		for _, layer := range layers {
			s.SetTail(layer.Create(s))
		}
	})
}

// Stream owns a graph and the GraphManager that finalizes and runs it.
type Stream struct {
	graph   *graph.Graph
	tail    graph.NodeID
	hints   Hints
	manager *manager.GraphManager
	err     error
}

var _ Builder = (*Stream)(nil)

// NewStream creates a stream with an empty graph and its own GraphManager.
func NewStream(id graph.GraphID, name string) *Stream {
	return NewStreamWithManager(manager.New(nil), id, name)
}

// NewStreamWithManager creates a stream whose graph is finalized and run by m: several
// streams can share a manager (and its task executor).
func NewStreamWithManager(m *manager.GraphManager, id graph.GraphID, name string) *Stream {
	return &Stream{graph: graph.New(id, name), tail: graph.EmptyNodeID, manager: m}
}

// Graph implements Builder.
func (s *Stream) Graph() *graph.Graph { return s.graph }

// Tail implements Builder.
func (s *Stream) Tail() graph.NodeID { return s.tail }

// SetTail implements Builder.
func (s *Stream) SetTail(nid graph.NodeID) { s.tail = nid }

// Hints implements Builder.
func (s *Stream) Hints() *Hints { return &s.hints }

// Manager returns the GraphManager of the stream.
func (s *Stream) Manager() *manager.GraphManager { return s.manager }

// Add creates the layers in order. After the first error, further layers are ignored and the
// error is reported by Err and Finalize.
func (s *Stream) Add(layers ...Layer) *Stream {
	if s.err != nil {
		return s
	}
	if err := addLayers(s, layers); err != nil {
		s.err = errors.WithMessagef(err, "stream %q", s.graph.Name())
	}
	return s
}

// Err returns the first error raised while adding layers.
func (s *Stream) Err() error { return s.err }

// Finalize lowers the graph for target with the default passes for cfg.
func (s *Stream) Finalize(target graph.Target, cfg graph.Config) error {
	return s.FinalizeWithPasses(target, cfg, passes.DefaultPassManager(target, cfg))
}

// FinalizeWithPasses lowers the graph for target running the passes of pm.
func (s *Stream) FinalizeWithPasses(target graph.Target, cfg graph.Config, pm *passes.PassManager) error {
	if s.err != nil {
		return s.err
	}
	return s.manager.FinalizeGraph(s.graph, graph.NewContext(cfg), pm, target)
}

// Run executes the graph once. It returns whether the accessors have more data to process.
func (s *Stream) Run() (bool, error) {
	return s.manager.ExecuteGraph(s.graph)
}

// RunUntilDone executes the graph until the accessors run out of data, and returns the
// number of executions.
func (s *Stream) RunUntilDone() (int, error) {
	return s.manager.RunUntilDone(s.graph)
}

// SubStream adds layers to the graph of its parent, starting from the parent's tail at the
// moment it was created, without moving the parent's tail. It's used to build the branches
// of a BranchLayer.
type SubStream struct {
	graph *graph.Graph
	tail  graph.NodeID
	hints Hints
	err   error
}

var _ Builder = (*SubStream)(nil)

// NewSubStream creates a sub-stream of parent, inheriting its tail and hints.
func NewSubStream(parent Builder) *SubStream {
	return &SubStream{graph: parent.Graph(), tail: parent.Tail(), hints: *parent.Hints()}
}

// Graph implements Builder.
func (s *SubStream) Graph() *graph.Graph { return s.graph }

// Tail implements Builder.
func (s *SubStream) Tail() graph.NodeID { return s.tail }

// SetTail implements Builder.
func (s *SubStream) SetTail(nid graph.NodeID) { s.tail = nid }

// Hints implements Builder.
func (s *SubStream) Hints() *Hints { return &s.hints }

// Add creates the layers in order. After the first error, further layers are ignored.
func (s *SubStream) Add(layers ...Layer) *SubStream {
	if s.err != nil {
		return s
	}
	s.err = addLayers(s, layers)
	return s
}

// Err returns the first error raised while adding layers.
func (s *SubStream) Err() error { return s.err }

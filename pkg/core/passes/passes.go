// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package passes implements the graph mutation pipeline: Mutator rewrites the graph in place
// before it is lowered to a backend, and PassManager runs them in a deterministic order.
package passes

import (
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MutationType orders the passes: IR passes run before Backend passes.
type MutationType int

//go:generate go tool enumer -type=MutationType -trimprefix=MutationType -output=gen_mutationtype_enumer.go passes.go

const (
	// MutationTypeIR passes rewrite the structure and descriptors of the graph, before a target
	// is forced on the nodes.
	MutationTypeIR MutationType = iota

	// MutationTypeBackend passes run after the backend tensors are created, and may rely on
	// them (e.g.: create sub-tensors).
	MutationTypeBackend
)

// Mutator is a graph-to-graph rewrite.
//
// Mutate returns nil without modifying the graph if the pass is not applicable: all its
// checks happen before the first change.
type Mutator interface {
	Name() string
	Type() MutationType
	Mutate(g *graph.Graph) error
}

// PassManager holds an ordered list of mutators.
type PassManager struct {
	passes []Mutator
}

// NewPassManager creates an empty pass manager.
func NewPassManager() *PassManager { return &PassManager{} }

// Append adds a pass at the end of the list, if all conditions are true (or none is given).
func (pm *PassManager) Append(m Mutator, conditions ...bool) {
	for _, cond := range conditions {
		if !cond {
			return
		}
	}
	pm.passes = append(pm.passes, m)
}

// Passes returns the list of passes, in append order.
func (pm *PassManager) Passes() []Mutator { return pm.passes }

// Pass returns the pass at index, or nil if out of range.
func (pm *PassManager) Pass(index int) Mutator {
	if index < 0 || index >= len(pm.passes) {
		return nil
	}
	return pm.passes[index]
}

// Clear removes all passes.
func (pm *PassManager) Clear() { pm.passes = nil }

// RunAll runs all the IR passes, and then the Backend passes, each in append order.
func (pm *PassManager) RunAll(g *graph.Graph) error {
	if err := pm.RunType(g, MutationTypeIR); err != nil {
		return err
	}
	return pm.RunType(g, MutationTypeBackend)
}

// RunType runs the passes of the given type, in append order.
func (pm *PassManager) RunType(g *graph.Graph, mutationType MutationType) error {
	for ii, m := range pm.passes {
		if m.Type() != mutationType {
			continue
		}
		if err := pm.RunIndex(g, ii); err != nil {
			return err
		}
	}
	return nil
}

// RunIndex runs the pass at index. Out of range indices are a no-op.
func (pm *PassManager) RunIndex(g *graph.Graph, index int) error {
	m := pm.Pass(index)
	if m == nil {
		return nil
	}
	klog.V(1).Infof("graph %q: running %s pass %s", g.Name(), m.Type(), m.Name())
	if err := m.Mutate(g); err != nil {
		return errors.WithMessagef(err, "pass %s on graph %q", m.Name(), g.Name())
	}
	return nil
}

// DefaultPassManager returns the passes run when finalizing a graph for target.
func DefaultPassManager(target graph.Target, cfg graph.Config) *PassManager {
	pm := NewPassManager()
	pm.Append(NewSyntheticDataTypeMutator(cfg.SyntheticType), cfg.UseSyntheticType)
	pm.Append(NewNodeFusionMutator())
	pm.Append(NewInPlaceOperationMutator())
	pm.Append(NewDepthConcatSubTensorMutator())
	pm.Append(NewSplitLayerSubTensorMutator())
	pm.Append(NewConvolutionMethodMutator())
	klog.V(2).Infof("default passes for target %s: %d", target, len(pm.passes))
	return pm
}

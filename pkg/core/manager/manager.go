// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package manager finalizes graphs into workloads and executes them.
//
// Finalization runs the whole lowering pipeline for one target: mutation passes, descriptor
// forwarding, tensor and node configuration, memory allocation, constant loading and function
// preparation. A graph either finalizes completely, and its workload is registered, or fails
// with an error and nothing is registered.
package manager

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/passes"
	"github.com/gomlx/nngraph/pkg/core/workload"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// GraphManager owns the workloads of the finalized graphs, indexed by graph id.
//
// It is not safe for concurrent use: graphs are finalized and executed from one goroutine.
type GraphManager struct {
	workloads map[graph.GraphID]*workload.Workload
	executor  workload.TaskExecutor
}

// New creates a GraphManager whose workloads execute their tasks with executor.
// If executor is nil, workload.DefaultExecutor is used.
func New(executor workload.TaskExecutor) *GraphManager {
	if executor == nil {
		executor = workload.DefaultExecutor{}
	}
	return &GraphManager{workloads: make(map[graph.GraphID]*workload.Workload), executor: executor}
}

// Executor returns the strategy used to execute tasks.
func (m *GraphManager) Executor() workload.TaskExecutor { return m.executor }

// Workload returns the workload of graph id, or nil if it is not finalized.
func (m *GraphManager) Workload(id graph.GraphID) *workload.Workload { return m.workloads[id] }

// FinalizeGraph lowers g for the requested target (see backends.Select) and registers its workload.
//
// ctx may be nil, in which case a context with the configuration from NNGRAPH_CONFIG is created.
// pm may be nil, in which case passes.DefaultPassManager is used.
func (m *GraphManager) FinalizeGraph(g *graph.Graph, ctx *graph.Context, pm *passes.PassManager, target graph.Target) error {
	if _, found := m.workloads[g.ID()]; found {
		return errors.Errorf("graph %q (id=%d) is already finalized", g.Name(), g.ID())
	}
	if ctx == nil {
		cfg, err := graph.ConfigFromEnv()
		if err != nil {
			return err
		}
		ctx = graph.NewContext(cfg)
	}
	var w *workload.Workload
	var err error
	if panicErr := exceptions.TryCatch[error](func() { w, err = m.finalize(g, ctx, pm, target) }); panicErr != nil {
		err = panicErr
	}
	if err != nil {
		workload.FreeAllTensors(g)
		return errors.WithMessagef(err, "finalizing graph %q", g.Name())
	}
	m.workloads[g.ID()] = w
	return nil
}

func (m *GraphManager) finalize(g *graph.Graph, ctx *graph.Context, pm *passes.PassManager, target graph.Target) (*workload.Workload, error) {
	backend, err := backends.Select(target)
	if err != nil {
		return nil, err
	}
	forced := backend.Target()
	if pm == nil {
		pm = passes.DefaultPassManager(forced, ctx.Config())
	}
	klog.V(1).Infof("finalizing graph %q for target %s (backend %q)", g.Name(), forced, backend.Name())

	if err := pm.RunType(g, passes.MutationTypeIR); err != nil {
		return nil, err
	}
	workload.ForceTarget(g, forced)
	backend.SetupContext(ctx)
	if err := graph.ForwardAllDescriptors(g, ctx.Config().MaxDescriptorPasses); err != nil {
		return nil, err
	}
	if err := workload.ConfigureAllTensors(g); err != nil {
		return nil, err
	}
	if err := pm.RunType(g, passes.MutationTypeBackend); err != nil {
		return nil, err
	}
	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, err
	}
	if err := graph.CheckIntegrity(g); err != nil {
		return nil, err
	}
	if err := workload.ValidateAllNodes(g, order); err != nil {
		return nil, err
	}
	w, err := workload.ConfigureAllNodes(g, ctx, order, m.executor)
	if err != nil {
		return nil, err
	}
	if err := workload.AllocateAllTensors(g); err != nil {
		return nil, err
	}
	if err := workload.CallConstAccessors(g); err != nil {
		return nil, err
	}
	if err := w.Prepare(); err != nil {
		return nil, err
	}
	workload.ReleaseUnusedTensors(g)
	ctx.Finalize()
	klog.V(1).Infof("graph %q finalized: %d tasks", g.Name(), len(w.Tasks))
	return w, nil
}

func (m *GraphManager) lookup(g *graph.Graph) (*workload.Workload, error) {
	w, found := m.workloads[g.ID()]
	if !found {
		return nil, errors.Errorf("graph %q (id=%d) is not finalized", g.Name(), g.ID())
	}
	return w, nil
}

// ExecuteGraph runs g once: it calls the input accessors, executes all tasks and calls the
// output accessors. It returns whether all accessors reported more data.
func (m *GraphManager) ExecuteGraph(g *graph.Graph) (bool, error) {
	w, err := m.lookup(g)
	if err != nil {
		return false, err
	}
	moreInputs, err := w.CallInputAccessors()
	if err != nil {
		return false, err
	}
	if err := w.Run(); err != nil {
		return false, err
	}
	moreOutputs, err := w.CallOutputAccessors()
	if err != nil {
		return false, err
	}
	return moreInputs && moreOutputs, nil
}

// RunUntilDone executes g repeatedly until an input accessor (checked before running) or an
// output accessor (checked after) reports no more data. It returns the number of executions.
func (m *GraphManager) RunUntilDone(g *graph.Graph) (int, error) {
	w, err := m.lookup(g)
	if err != nil {
		return 0, err
	}
	for runs := 0; ; runs++ {
		more, err := w.CallInputAccessors()
		if err != nil || !more {
			return runs, err
		}
		if err := w.Run(); err != nil {
			return runs, err
		}
		more, err = w.CallOutputAccessors()
		if err != nil || !more {
			return runs + 1, err
		}
	}
}

// InvalidateGraph drops the workload of g and frees the memory of its tensors.
func (m *GraphManager) InvalidateGraph(g *graph.Graph) {
	if _, found := m.workloads[g.ID()]; !found {
		return
	}
	delete(m.workloads, g.ID())
	workload.FreeAllTensors(g)
}

// BranchFunction returns a function running the workloads of the given finalized graphs, in
// order, or concurrently if ParallelBranches is set in the configuration of their context.
func (m *GraphManager) BranchFunction(ids ...graph.GraphID) (*workload.BranchFunction, error) {
	concurrent := false
	branches := make([]*workload.Workload, 0, len(ids))
	for _, id := range ids {
		w := m.workloads[id]
		if w == nil {
			return nil, errors.Errorf("graph id=%d is not finalized", id)
		}
		if w.Context != nil && w.Context.Config().ParallelBranches {
			concurrent = true
		}
		branches = append(branches, w)
	}
	f := workload.NewBranchFunction(concurrent)
	for _, w := range branches {
		f.AddBranch(w)
	}
	return f, nil
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workload

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// BranchFunction is a function that owns independently finalized sub-workloads, one per
// branch, and runs all of them on every Run.
//
// Branches run sequentially, in the order they were added, unless concurrent execution is
// enabled: then there is no ordering across branches.
type BranchFunction struct {
	branches   []*Workload
	concurrent bool
}

var (
	_ backends.Function = (*BranchFunction)(nil)
	_ backends.Preparer = (*BranchFunction)(nil)
)

// NewBranchFunction creates an empty branch function. If concurrent is true, branches are run
// in parallel (see graph.Config.ParallelBranches).
func NewBranchFunction(concurrent bool) *BranchFunction {
	return &BranchFunction{concurrent: concurrent}
}

// AddBranch appends a sub-workload.
func (f *BranchFunction) AddBranch(w *Workload) {
	f.branches = append(f.branches, w)
}

// NumBranches returns the number of sub-workloads.
func (f *BranchFunction) NumBranches() int { return len(f.branches) }

// Prepare prepares every sub-workload, in order.
func (f *BranchFunction) Prepare() error {
	for i, w := range f.branches {
		if err := w.Prepare(); err != nil {
			return errors.WithMessagef(err, "preparing branch #%d", i)
		}
	}
	return nil
}

// Run implements backends.Function.
func (f *BranchFunction) Run() error {
	if !f.concurrent || len(f.branches) <= 1 {
		for i, w := range f.branches {
			if err := w.Run(); err != nil {
				return errors.WithMessagef(err, "running branch #%d", i)
			}
		}
		return nil
	}
	var g errgroup.Group
	for i, w := range f.branches {
		g.Go(func() error {
			if err := w.Run(); err != nil {
				return errors.WithMessagef(err, "running branch #%d", i)
			}
			return nil
		})
	}
	return g.Wait()
}

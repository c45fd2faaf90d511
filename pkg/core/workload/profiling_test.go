// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workload_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/gomlx/nngraph/pkg/core/workload"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepyFunction struct {
	sleep time.Duration
}

func (f sleepyFunction) Run() error {
	time.Sleep(f.sleep)
	return nil
}

func TestProfilingExecutor(t *testing.T) {
	g, nodes := chain(t)
	profiler := NewProfilingExecutor(nil)
	w := New(g, nil, profiler)
	w.AddTask(nodes[0], sleepyFunction{sleep: time.Millisecond})
	w.AddTask(nodes[1], sleepyFunction{sleep: 5 * time.Millisecond})
	for range 3 {
		require.NoError(t, w.Run())
	}

	profiles := profiler.Profiles()
	require.Len(t, profiles, 2)
	assert.Same(t, nodes[0], profiles[0].Node)
	for _, profile := range profiles {
		assert.Equal(t, 3, profile.Calls)
		assert.LessOrEqual(t, profile.Min, profile.Mean())
		assert.LessOrEqual(t, profile.Mean(), profile.Max)
	}
	assert.GreaterOrEqual(t, profiles[1].Min, 5*time.Millisecond)

	report := profiler.Report()
	assert.Contains(t, report, "Activation")
	assert.Contains(t, report, "Total:")
	// Sorted by decreasing total time: "b" before "a".
	assert.Less(t, strings.Index(report, " b "), strings.Index(report, " a "))

	profiler.Reset()
	assert.Empty(t, profiler.Profiles())
}

type syncFunction struct {
	mu  *sync.Mutex
	log *[]int
	id  int
	err error
}

func (f syncFunction) Run() error {
	f.mu.Lock()
	*f.log = append(*f.log, f.id)
	f.mu.Unlock()
	return f.err
}

func TestBranchFunction(t *testing.T) {
	var mu sync.Mutex
	var log []int
	var prepared []int
	makeBranch := func(id int, err error) *Workload {
		g, nodes := chain(t)
		w := New(g, nil, nil)
		w.AddTask(nodes[0], syncFunction{mu: &mu, log: &log, id: id, err: err})
		w.AddTask(nodes[1], &recordingPreparer{id: id, prepared: &prepared})
		return w
	}

	sequential := NewBranchFunction(false)
	for id := range 4 {
		sequential.AddBranch(makeBranch(id, nil))
	}
	assert.Equal(t, 4, sequential.NumBranches())
	require.NoError(t, sequential.Prepare())
	assert.Equal(t, []int{0, 1, 2, 3}, prepared)
	require.NoError(t, sequential.Run())
	assert.Equal(t, []int{0, 1, 2, 3}, log)

	log = nil
	concurrent := NewBranchFunction(true)
	for id := range 8 {
		concurrent.AddBranch(makeBranch(id, nil))
	}
	require.NoError(t, concurrent.Run())
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, log)

	failing := NewBranchFunction(true)
	failing.AddBranch(makeBranch(0, nil))
	failing.AddBranch(makeBranch(1, errors.New("device lost")))
	err := failing.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch #1")
	assert.Contains(t, err.Error(), "device lost")
}

type recordingPreparer struct {
	id       int
	prepared *[]int
}

func (f *recordingPreparer) Run() error { return nil }

func (f *recordingPreparer) Prepare() error {
	*f.prepared = append(*f.prepared, f.id)
	return nil
}

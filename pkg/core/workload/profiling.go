// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workload

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/nngraph/pkg/core/graph"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
)

// NodeProfile is the execution time accumulated by one node.
type NodeProfile struct {
	Node  graph.Node
	Calls int
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Mean execution time of the node.
func (p NodeProfile) Mean() time.Duration {
	if p.Calls == 0 {
		return 0
	}
	return p.Total / time.Duration(p.Calls)
}

// ProfilingExecutor executes tasks with another executor and measures the wall time of each node.
//
// It is safe for concurrent use.
type ProfilingExecutor struct {
	inner TaskExecutor

	mu       sync.Mutex
	profiles map[graph.Node]*NodeProfile
	order    []graph.Node
}

var _ TaskExecutor = (*ProfilingExecutor)(nil)

// NewProfilingExecutor wraps inner, or DefaultExecutor if inner is nil.
func NewProfilingExecutor(inner TaskExecutor) *ProfilingExecutor {
	if inner == nil {
		inner = DefaultExecutor{}
	}
	return &ProfilingExecutor{inner: inner, profiles: make(map[graph.Node]*NodeProfile)}
}

// ExecuteTask implements TaskExecutor.
func (p *ProfilingExecutor) ExecuteTask(task *Task) error {
	start := time.Now()
	err := p.inner.ExecuteTask(task)
	elapsed := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()
	profile, found := p.profiles[task.Node]
	if !found {
		profile = &NodeProfile{Node: task.Node, Min: elapsed}
		p.profiles[task.Node] = profile
		p.order = append(p.order, task.Node)
	}
	profile.Calls++
	profile.Total += elapsed
	profile.Min = min(profile.Min, elapsed)
	profile.Max = max(profile.Max, elapsed)
	return err
}

// Profiles returns the profile of every executed node, in order of first execution.
func (p *ProfilingExecutor) Profiles() []NodeProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	profiles := make([]NodeProfile, 0, len(p.order))
	for _, node := range p.order {
		profiles = append(profiles, *p.profiles[node])
	}
	return profiles
}

// Reset discards all measurements.
func (p *ProfilingExecutor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles = make(map[graph.Node]*NodeProfile)
	p.order = nil
}

// Report renders a table with the profile of every node, sorted by decreasing total time.
func (p *ProfilingExecutor) Report() string {
	profiles := p.Profiles()
	var total time.Duration
	for _, profile := range profiles {
		total += profile.Total
	}
	slices.SortStableFunc(profiles, func(a, b NodeProfile) int {
		switch {
		case a.Total > b.Total:
			return -1
		case a.Total < b.Total:
			return 1
		default:
			return 0
		}
	})

	alignments := []lipgloss.Position{lipgloss.Left, lipgloss.Left, lipgloss.Right}
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			alignment := alignments[min(col, len(alignments)-1)]
			return s.Align(alignment)
		}).
		Headers("Node", "Type", "Calls", "Total", "Mean", "Min", "Max", "%")
	for _, profile := range profiles {
		name := profile.Node.Name()
		if name == "" {
			name = fmt.Sprintf("#%d", profile.Node.ID())
		}
		share := 0.0
		if total > 0 {
			share = 100 * float64(profile.Total) / float64(total)
		}
		table.Row(name, profile.Node.Type().String(), humanize.Comma(int64(profile.Calls)),
			profile.Total.String(), profile.Mean().String(), profile.Min.String(), profile.Max.String(),
			fmt.Sprintf("%.1f%%", share))
	}
	return table.Render() + "\n" + fmt.Sprintf("Total: %s over %d nodes", total, len(profiles))
}

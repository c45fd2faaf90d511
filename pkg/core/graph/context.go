// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"sort"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// Allocator provides backing memory for tensors of one target.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Free(buf []byte)

	// InUse returns the number of bytes currently allocated.
	InUse() int
}

// MemoryManagerContext holds the memory services of one target.
type MemoryManagerContext struct {
	Target    Target
	Allocator Allocator

	// CrossGroupSize is the number of bytes shared by functions when the function memory
	// manager is enabled. It is updated by backends as functions are configured.
	CrossGroupSize int
}

// Context is shared by all the graphs finalized together: it holds the configuration and the
// per-target memory managers that backends install in SetupContext.
type Context struct {
	config         Config
	memoryManagers map[Target]*MemoryManagerContext
}

// NewContext returns a context with the given configuration.
func NewContext(config Config) *Context {
	return &Context{config: config, memoryManagers: make(map[Target]*MemoryManagerContext)}
}

// Config returns the configuration.
func (c *Context) Config() Config { return c.config }

// SetConfig replaces the configuration.
func (c *Context) SetConfig(config Config) { c.config = config }

// InsertMemoryManagerContext registers mm for its target. It returns false if the target had one already.
func (c *Context) InsertMemoryManagerContext(mm *MemoryManagerContext) bool {
	if _, found := c.memoryManagers[mm.Target]; found {
		return false
	}
	c.memoryManagers[mm.Target] = mm
	return true
}

// MemoryManagerContext returns the memory manager of target, or nil.
func (c *Context) MemoryManagerContext(target Target) *MemoryManagerContext {
	return c.memoryManagers[target]
}

// Finalize reports the memory held by each target at the end of graph finalization.
func (c *Context) Finalize() {
	if !klog.V(1).Enabled() {
		return
	}
	targets := make([]Target, 0, len(c.memoryManagers))
	for target := range c.memoryManagers {
		targets = append(targets, target)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	for _, target := range targets {
		mm := c.memoryManagers[target]
		if mm.Allocator == nil {
			continue
		}
		klog.Infof("target %s: %s allocated, %s shared across functions", target,
			humanize.Bytes(uint64(mm.Allocator.InUse())), humanize.Bytes(uint64(mm.CrossGroupSize)))
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// HostAllocator allocates host memory, keeping freed buffers in per-size pools for reuse.
// It implements graph.Allocator and is safe for concurrent use.
type HostAllocator struct {
	mu    sync.Mutex
	pools map[int][][]byte
	inUse int
	peak  int
}

// NewHostAllocator creates an empty HostAllocator.
func NewHostAllocator() *HostAllocator {
	return &HostAllocator{pools: make(map[int][][]byte)}
}

// Allocate returns a zeroed buffer of size bytes.
func (a *HostAllocator) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.Errorf("HostAllocator: invalid allocation of %d bytes", size)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var buf []byte
	if pool := a.pools[size]; len(pool) > 0 {
		buf = pool[len(pool)-1]
		a.pools[size] = pool[:len(pool)-1]
		clear(buf)
	} else {
		buf = make([]byte, size)
	}
	a.inUse += size
	a.peak = max(a.peak, a.inUse)
	return buf, nil
}

// Free returns buf to the pool of its size.
func (a *HostAllocator) Free(buf []byte) {
	if buf == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	size := len(buf)
	a.inUse -= size
	if a.inUse < 0 {
		klog.Warningf("HostAllocator: freed more memory than allocated (%s)", humanize.Bytes(uint64(-a.inUse)))
		a.inUse = 0
	}
	a.pools[size] = append(a.pools[size], buf[:size:size])
}

// InUse returns the number of bytes currently allocated.
func (a *HostAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Peak returns the maximum number of bytes allocated at the same time.
func (a *HostAllocator) Peak() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peak
}

// Release drops the pooled buffers.
func (a *HostAllocator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.pools)
}

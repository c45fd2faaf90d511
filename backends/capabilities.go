// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"maps"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/graph"
)

// Capabilities holds mappings of what is supported by a backend.
type Capabilities struct {
	// NodeTypes supported by a backend.
	// If not listed, it's assumed to be false, hence not supported.
	NodeTypes map[graph.NodeType]bool

	// DTypes list the data types supported by a backend.
	// If not listed, it's assumed to be false, hence not supported.
	DTypes map[dtypes.DType]bool
}

// Clone makes a deep copy of the Capabilities.
func (c Capabilities) Clone() Capabilities {
	var c2 Capabilities
	c2.NodeTypes = make(map[graph.NodeType]bool, len(c.NodeTypes))
	maps.Copy(c2.NodeTypes, c.NodeTypes)
	c2.DTypes = make(map[dtypes.DType]bool, len(c.DTypes))
	maps.Copy(c2.DTypes, c.DTypes)
	return c2
}

// MakeCapabilities creates Capabilities with the given node types and data types supported.
func MakeCapabilities(nodeTypes []graph.NodeType, dtypeList []dtypes.DType) Capabilities {
	c := Capabilities{
		NodeTypes: make(map[graph.NodeType]bool, len(nodeTypes)),
		DTypes:    make(map[dtypes.DType]bool, len(dtypeList)),
	}
	for _, nodeType := range nodeTypes {
		c.NodeTypes[nodeType] = true
	}
	for _, dtype := range dtypeList {
		c.DTypes[dtype] = true
	}
	return c
}

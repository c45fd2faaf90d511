// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package _default includes the default backends, namely CPU and GPU.
//
// To use it simply include:
//
//	import _ "github.com/gomlx/nngraph/backends/default"
//
// If you add the tag `nogpu` it will not include the GPU backend.
package _default

import (
	_ "github.com/gomlx/nngraph/backends/cpu"
)

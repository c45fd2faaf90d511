//go:build !nogpu

package _default

import _ "github.com/gomlx/nngraph/backends/gpu"

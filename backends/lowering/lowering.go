// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package lowering has the helpers backends use to lower nodes to configured functions.
//
// Every Create<Op>Layer function follows the same steps: validate the node's arity, resolve
// the backing tensors of its inputs and outputs, extract the operator's parameters, configure
// the function and return it.
package lowering

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/backends/functions"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TargetInfo provides what functions of a backend need beyond their tensors.
type TargetInfo[T functions.NativeTensor] interface {
	// Target of the backend.
	Target() graph.Target

	// Dispatcher that runs the kernel calls of the functions.
	Dispatcher() backends.Dispatcher

	// Allocator of the backend's memory.
	Allocator() graph.Allocator

	// Workspace creates the tensors functions use for transformed constants.
	Workspace() functions.WorkspaceFactory[T]
}

// ValidateNode checks that node has the expected number of inputs and outputs.
func ValidateNode(node graph.Node, numInputs, numOutputs int) error {
	if node.NumInputs() != numInputs || node.NumOutputs() != numOutputs {
		return errors.Errorf("%s: expected %d inputs and %d outputs, got %d and %d",
			node, numInputs, numOutputs, node.NumInputs(), node.NumOutputs())
	}
	return nil
}

// BackingTensor returns the native tensor behind a graph tensor, or the zero value if the
// tensor is nil or has no handle yet.
//
// It panics if the handle holds a tensor of another backend.
func BackingTensor[T functions.NativeTensor](tensor *graph.Tensor) T {
	var zero T
	if tensor == nil || tensor.Handle() == nil {
		return zero
	}
	native := tensor.Handle().Tensor()
	if native == nil {
		return zero
	}
	typed, ok := native.(T)
	if !ok {
		exceptions.Panicf("tensor #%d is backed by %T, expected %T", tensor.ID(), native, zero)
	}
	return typed
}

func inputTensor[T functions.NativeTensor](node graph.Node, idx int) T {
	return BackingTensor[T](node.Input(idx))
}

func outputTensor[T functions.NativeTensor](node graph.Node, idx int) T {
	return BackingTensor[T](node.Output(idx))
}

// logInstantiated logs the created function at verbosity level 2.
func logInstantiated(target graph.Target, node graph.Node, function string) {
	if !klog.V(2).Enabled() {
		return
	}
	var inShape, outShape string
	if node.NumInputs() > 0 {
		if t := node.Input(0); t != nil {
			inShape = t.Desc().Shape.String()
		}
	}
	if node.NumOutputs() > 0 {
		if t := node.Output(0); t != nil {
			outShape = t.Desc().Shape.String()
		}
	}
	klog.Infof("instantiated %s %s for %s: input=%s output=%s", target, function, node, inShape, outShape)
}

// ValidateNodeSupport checks that the node type and the data types of all its connected
// tensors are listed in the capabilities.
func ValidateNodeSupport(caps backends.Capabilities, node graph.Node) error {
	if !caps.NodeTypes[node.Type()] {
		return errors.Errorf("%s: node type %s not supported", node, node.Type())
	}
	check := func(kind string, idx int, t *graph.Tensor) error {
		if t == nil {
			return nil
		}
		if dtype := t.Desc().DType(); !caps.DTypes[dtype] {
			return errors.Errorf("%s: %s #%d has unsupported data type %s", node, kind, idx, dtype)
		}
		return nil
	}
	for idx := range node.NumInputs() {
		if err := check("input", idx, node.Input(idx)); err != nil {
			return err
		}
	}
	for idx := range node.NumOutputs() {
		if err := check("output", idx, node.Output(idx)); err != nil {
			return err
		}
	}
	return nil
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package functions implements the configurable function objects backends lower nodes to.
//
// Functions are generic on the native tensor type of the backend. Configure validates the
// descriptors of the tensors and stores the parameters; Run emits one KernelCall through the
// backend's Dispatcher. Functions with constant transformations (e.g. reshaping convolution
// weights) also implement backends.Preparer.
package functions

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
)

// NativeTensor is the constraint on the native tensor type of a backend. The zero value
// of the type represents an absent (optional) tensor.
type NativeTensor interface {
	comparable
	backends.Tensor
}

// WorkspaceFactory creates the tensors a function needs to hold transformed constants.
type WorkspaceFactory[T NativeTensor] func(desc graph.TensorDescriptor) (T, error)

// isPresent returns whether t is set.
func isPresent[T NativeTensor](t T) bool {
	var zero T
	return t != zero
}

// requirePresent returns an error naming the first of the tensors that is not set.
func requirePresent[T NativeTensor](op string, names []string, tensors ...T) error {
	for ii, t := range tensors {
		if !isPresent(t) {
			return errors.Errorf("%s: %s tensor not given", op, names[ii])
		}
	}
	return nil
}

// kernelFunction holds what is needed to emit the kernel call of a function.
type kernelFunction[T NativeTensor] struct {
	dispatcher backends.Dispatcher
	name       string
	op         graph.NodeType
	inputs     []T
	outputs    []T
	params     any
}

func (f *kernelFunction[T]) setup(dispatcher backends.Dispatcher, name string, op graph.NodeType, params any, inputs, outputs []T) error {
	if dispatcher == nil {
		return errors.Errorf("%s: no dispatcher given", name)
	}
	f.dispatcher = dispatcher
	f.name = name
	f.op = op
	f.params = params
	f.inputs = inputs
	f.outputs = outputs
	return nil
}

// KernelName of the kernel the function calls.
func (f *kernelFunction[T]) KernelName() string { return f.name }

// window covers the outermost dimension of the first output.
func (f *kernelFunction[T]) window() backends.Window {
	if len(f.outputs) == 0 || !isPresent(f.outputs[0]) {
		return backends.Window{Begin: 0, End: 1}
	}
	shape := f.outputs[0].Desc().Shape
	if shape.Rank() == 0 {
		return backends.Window{Begin: 0, End: 1}
	}
	return backends.Window{Begin: 0, End: shape.Dim(0)}
}

// toTensors converts to the backends' interface, with nil for absent tensors.
func toTensors[T NativeTensor](tensors []T) []backends.Tensor {
	result := make([]backends.Tensor, len(tensors))
	for ii, t := range tensors {
		if isPresent(t) {
			result[ii] = t
		}
	}
	return result
}

// Call returns the KernelCall emitted by Run.
func (f *kernelFunction[T]) Call() *backends.KernelCall {
	return &backends.KernelCall{
		Name:    f.name,
		Op:      f.op,
		Inputs:  toTensors(f.inputs),
		Outputs: toTensors(f.outputs),
		Params:  f.params,
		Window:  f.window(),
	}
}

// Run implements backends.Function.
func (f *kernelFunction[T]) Run() error {
	if f.dispatcher == nil {
		return errors.Errorf("function %s run before being configured", f.op)
	}
	return f.dispatcher.Dispatch(f.Call())
}

// Tensors returns all the tensors the function reads or writes.
func (f *kernelFunction[T]) Tensors() []T {
	all := make([]T, 0, len(f.inputs)+len(f.outputs))
	for _, t := range append(append([]T(nil), f.inputs...), f.outputs...) {
		if isPresent(t) {
			all = append(all, t)
		}
	}
	return all
}

// checkSameShape checks that output has the shape of input.
func checkSameShape(op string, input, output backends.Tensor) error {
	in, out := input.Desc().Shape, output.Desc().Shape
	if !in.EqualDimensions(out) {
		return errors.Errorf("%s: output %s doesn't match input %s", op, out, in)
	}
	return nil
}

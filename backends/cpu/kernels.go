// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cpu

import (
	"unsafe"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
)

// Reference kernels for contiguous Float32 tensors. Other kernels are registered by the
// packages providing them, with backends.RegisterKernel(graph.TargetCPU, ...).
func init() {
	backends.RegisterKernel(graph.TargetCPU, "Activation/Identity", activationKernel(func(x float32, _ graph.ActivationInfo) float32 { return x }))
	backends.RegisterKernel(graph.TargetCPU, "Activation/ReLU", activationKernel(func(x float32, _ graph.ActivationInfo) float32 { return max(x, 0) }))
	backends.RegisterKernel(graph.TargetCPU, "Activation/BoundedReLU", activationKernel(func(x float32, info graph.ActivationInfo) float32 {
		return min(max(x, 0), info.A)
	}))
	backends.RegisterKernel(graph.TargetCPU, "Activation/LUBoundedReLU", activationKernel(func(x float32, info graph.ActivationInfo) float32 {
		return min(max(x, info.B), info.A)
	}))
	backends.RegisterKernel(graph.TargetCPU, "Eltwise/Add", eltwiseKernel(func(a, b float32) float32 { return a + b }))
	backends.RegisterKernel(graph.TargetCPU, "Eltwise/Mul", eltwiseKernel(func(a, b float32) float32 { return a * b }))
	backends.RegisterKernel(graph.TargetCPU, "Reshape", reshapeKernel)
}

// float32s returns the contiguous Float32 elements of t in window rows [begin, end) of its outermost axis.
func float32s(t backends.Tensor, window backends.Window) ([]float32, error) {
	desc := t.Desc()
	if desc.DType() != dtypes.Float32 {
		return nil, errors.Errorf("reference kernel only supports Float32, got %s", desc.DType())
	}
	if ct, ok := t.(*Tensor); ok && !ct.IsContiguous() {
		return nil, errors.Errorf("reference kernel only supports contiguous tensors, got %s", ct)
	}
	data := t.Bytes()
	if data == nil {
		return nil, errors.Errorf("tensor %s is not allocated", desc)
	}
	flat := unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), desc.Shape.Size())
	if desc.Shape.Rank() == 0 {
		return flat, nil
	}
	rowSize := desc.Shape.Size() / desc.Shape.Dim(0)
	return flat[window.Begin*rowSize : window.End*rowSize], nil
}

func activationKernel(fn func(x float32, info graph.ActivationInfo) float32) backends.Kernel {
	return func(call *backends.KernelCall) error {
		info, _ := call.Params.(graph.ActivationInfo)
		in, err := float32s(call.Inputs[0], call.Window)
		if err != nil {
			return err
		}
		out, err := float32s(call.Outputs[0], call.Window)
		if err != nil {
			return err
		}
		for ii, x := range in {
			out[ii] = fn(x, info)
		}
		return nil
	}
}

// eltwiseKernel only handles operands of the same shape.
func eltwiseKernel(fn func(a, b float32) float32) backends.Kernel {
	return func(call *backends.KernelCall) error {
		lhs, rhs := call.Inputs[0], call.Inputs[1]
		if !lhs.Desc().Shape.EqualDimensions(rhs.Desc().Shape) {
			return errors.Errorf("reference %s kernel doesn't broadcast %s and %s", call.Name, lhs.Desc().Shape, rhs.Desc().Shape)
		}
		a, err := float32s(lhs, call.Window)
		if err != nil {
			return err
		}
		b, err := float32s(rhs, call.Window)
		if err != nil {
			return err
		}
		out, err := float32s(call.Outputs[0], call.Window)
		if err != nil {
			return err
		}
		for ii := range out {
			out[ii] = fn(a[ii], b[ii])
		}
		return nil
	}
}

// reshapeKernel copies the whole tensor: the window of input and output differ in shape.
func reshapeKernel(call *backends.KernelCall) error {
	if call.Window.Begin != 0 {
		return nil
	}
	in, out := call.Inputs[0].Bytes(), call.Outputs[0].Bytes()
	if in == nil || out == nil {
		return errors.Errorf("Reshape: tensors not allocated")
	}
	copy(out, in)
	return nil
}

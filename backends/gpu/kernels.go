// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gpu

import (
	"unsafe"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
)

func init() {
	backends.RegisterKernel(graph.TargetGPU, "Activation/ReLU", reluKernel)
}

// deviceFloat32s returns the Float32 elements of a contiguous device tensor.
func deviceFloat32s(t backends.Tensor) ([]float32, error) {
	gt, ok := t.(*Tensor)
	if !ok {
		return nil, errors.Errorf("gpu kernel got a %T tensor", t)
	}
	if gt.desc.DType() != dtypes.Float32 || !backends.IsContiguous(gt.desc.Shape, gt.strides) {
		return nil, errors.Errorf("gpu reference kernel only supports contiguous Float32 tensors, got %s", gt)
	}
	data := gt.DeviceBytes()
	if data == nil {
		return nil, errors.Errorf("tensor %s is not allocated", gt)
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), gt.desc.Shape.Size()), nil
}

func reluKernel(call *backends.KernelCall) error {
	in, err := deviceFloat32s(call.Inputs[0])
	if err != nil {
		return err
	}
	out, err := deviceFloat32s(call.Outputs[0])
	if err != nil {
		return err
	}
	for ii, x := range in {
		out[ii] = max(x, 0)
	}
	return nil
}

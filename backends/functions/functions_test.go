// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package functions

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTensor struct {
	desc   graph.TensorDescriptor
	unused bool
}

func (t *fakeTensor) Desc() graph.TensorDescriptor { return t.desc }
func (t *fakeTensor) Bytes() []byte                { return nil }
func (t *fakeTensor) MarkAsUnused()                { t.unused = true }
func (t *fakeTensor) IsUsed() bool                 { return !t.unused }

func tensor(dims ...int) *fakeTensor {
	layout := shapes.LayoutUnknown
	if len(dims) == 4 {
		layout = shapes.LayoutNCHW
	}
	return &fakeTensor{desc: graph.MakeDescriptor(shapes.Make(dtypes.Float32, dims...), layout)}
}

type recorder struct {
	calls []*backends.KernelCall
}

func (r *recorder) Dispatch(call *backends.KernelCall) error {
	r.calls = append(r.calls, call)
	return nil
}

func (r *recorder) names() []string {
	var names []string
	for _, call := range r.calls {
		names = append(names, call.Name)
	}
	return names
}

func workspace(created *[]*fakeTensor) WorkspaceFactory[*fakeTensor] {
	return func(desc graph.TensorDescriptor) (*fakeTensor, error) {
		t := &fakeTensor{desc: desc}
		*created = append(*created, t)
		return t, nil
	}
}

func TestActivation(t *testing.T) {
	r := &recorder{}
	var f Activation[*fakeTensor]
	require.Error(t, f.Run())

	in, out := tensor(2, 3, 4, 4), tensor(2, 3, 4, 4)
	require.NoError(t, f.Configure(r, in, out, graph.MakeActivation(graph.ActivationReLU, 0, 0)))
	require.NoError(t, f.Run())
	require.Len(t, r.calls, 1)
	call := r.calls[0]
	assert.Equal(t, "Activation/ReLU", call.Name)
	assert.Equal(t, graph.NodeTypeActivation, call.Op)
	assert.Equal(t, backends.Window{Begin: 0, End: 2}, call.Window)
	assert.Same(t, in, call.Inputs[0].(*fakeTensor))

	require.Error(t, f.Configure(r, in, tensor(2, 3, 4, 5), graph.ActivationInfo{}))
	require.Error(t, f.Configure(r, nil, out, graph.ActivationInfo{}))
	require.Error(t, f.Configure(nil, in, out, graph.ActivationInfo{}))
}

func TestConvolutionPrepare(t *testing.T) {
	r := &recorder{}
	var created []*fakeTensor
	in, weights, bias, out := tensor(1, 3, 8, 8), tensor(4, 3, 3, 3), tensor(4), tensor(1, 4, 8, 8)
	params := ConvolutionParams{Info: graph.MakePadStride(1, 1, 1, 1)}

	var f Convolution[*fakeTensor]
	require.NoError(t, f.Configure(r, workspace(&created), in, weights, bias, out, params))
	assert.Equal(t, graph.ConvolutionMethodGEMM, f.Method())
	require.NoError(t, f.Prepare())
	require.NoError(t, f.Prepare())
	require.Len(t, created, 1)
	assert.False(t, weights.IsUsed())
	assert.True(t, bias.IsUsed())

	require.NoError(t, f.Run())
	assert.Equal(t, []string{"Convolution/GEMM/TransformWeights", "Convolution/GEMM"}, r.names())
	assert.Same(t, created[0], r.calls[1].Inputs[1].(*fakeTensor))

	// Direct convolution uses the weights as given.
	var direct Convolution[*fakeTensor]
	params.Method = graph.ConvolutionMethodDirect
	weights2 := tensor(4, 3, 3, 3)
	require.NoError(t, direct.Configure(r, nil, in, weights2, nil, out, params))
	require.NoError(t, direct.Prepare())
	assert.True(t, weights2.IsUsed())

	// Mismatched output or bias.
	require.Error(t, direct.Configure(r, nil, in, weights2, nil, tensor(1, 4, 6, 6), params))
	require.Error(t, direct.Configure(r, nil, in, weights2, tensor(3), out, params))
}

func TestFusedConvolutionBatchNormalization(t *testing.T) {
	r := &recorder{}
	var created []*fakeTensor
	in, weights, out := tensor(1, 2, 4, 4), tensor(3, 2, 1, 1), tensor(1, 3, 4, 4)
	mean, variance, gamma := tensor(3), tensor(3), tensor(3)
	var f FusedConvolutionBatchNormalization[*fakeTensor]
	require.NoError(t, f.Configure(r, workspace(&created), in, weights, nil, out, mean, variance, nil, gamma,
		FusedConvolutionBatchNormalizationParams{Epsilon: 0.001}))
	require.NoError(t, f.Prepare())
	require.Len(t, created, 2)
	assert.Equal(t, []int{3}, created[1].desc.Shape.Dimensions)
	for _, param := range []*fakeTensor{weights, mean, variance, gamma} {
		assert.False(t, param.IsUsed())
	}
	require.NoError(t, f.Run())
	last := r.calls[len(r.calls)-1]
	assert.Equal(t, "FusedConvolutionBatchNormalization/GEMM", last.Name)
	assert.Same(t, created[1], last.Inputs[2].(*fakeTensor))

	require.Error(t, f.Configure(r, nil, in, weights, nil, out, tensor(2), variance, nil, nil, FusedConvolutionBatchNormalizationParams{}))
}

func TestFullyConnectedTransposesWeights(t *testing.T) {
	r := &recorder{}
	var created []*fakeTensor
	in, weights, out := tensor(2, 12), tensor(10, 12), tensor(2, 10)
	var f FullyConnected[*fakeTensor]
	require.NoError(t, f.Configure(r, workspace(&created), in, weights, nil, out, FullyConnectedParams{NumOutputs: 10}))
	require.NoError(t, f.Prepare())
	require.Len(t, created, 1)
	assert.Equal(t, []int{12, 10}, created[0].desc.Shape.Dimensions)
	assert.False(t, weights.IsUsed())
	require.Error(t, f.Configure(r, nil, in, weights, tensor(9), out, FullyConnectedParams{NumOutputs: 10}))
}

func TestConcatenateAndSplit(t *testing.T) {
	r := &recorder{}
	a, b, out := tensor(1, 2, 4, 4), tensor(1, 3, 4, 4), tensor(1, 5, 4, 4)
	var concat Concatenate[*fakeTensor]
	require.NoError(t, concat.Configure(r, []*fakeTensor{a, b}, out, 1))
	require.Error(t, concat.Configure(r, []*fakeTensor{a, a}, out, 1))
	require.Error(t, concat.Configure(r, nil, out, 1))

	var split Split[*fakeTensor]
	require.NoError(t, split.Configure(r, out, []*fakeTensor{a, b}, 1))
	require.NoError(t, split.Run())
	params := r.calls[0].Params.(SplitParams)
	assert.Equal(t, []int{0, 2}, params.Offsets)
	assert.Len(t, split.Tensors(), 3)
}

func TestOtherFunctions(t *testing.T) {
	r := &recorder{}
	x := tensor(1, 4, 8, 8)

	var pool Pooling[*fakeTensor]
	info := graph.PoolingInfo{Type: graph.PoolingMax, PoolWidth: 2, PoolHeight: 2, PadStride: graph.MakePadStride(2, 2, 0, 0)}
	require.NoError(t, pool.Configure(r, x, tensor(1, 4, 4, 4), info))
	require.Error(t, pool.Configure(r, x, tensor(1, 4, 8, 8), info))

	var eltwise Eltwise[*fakeTensor]
	require.NoError(t, eltwise.Configure(r, x, tensor(1, 4, 1, 1), tensor(1, 4, 8, 8), EltwiseParams{Operation: graph.EltwiseAdd}))
	assert.Equal(t, "Eltwise/Add", eltwise.KernelName())

	var reshape Reshape[*fakeTensor]
	require.NoError(t, reshape.Configure(r, x, tensor(1, 256), graph.NodeTypeFlatten))
	require.Error(t, reshape.Configure(r, x, tensor(1, 255), graph.NodeTypeFlatten))

	var quant Quantization[*fakeTensor]
	require.Error(t, quant.Configure(r, x, tensor(1, 4, 8, 8)))
	q := tensor(1, 4, 8, 8)
	q.desc = q.desc.WithDType(dtypes.Uint8).WithQuantization(graph.MakeQuantizationInfo(0.5, 3))
	require.NoError(t, quant.Configure(r, x, q))

	var bn BatchNormalization[*fakeTensor]
	require.NoError(t, bn.Configure(r, x, x, tensor(4), tensor(4), nil, nil, BatchNormalizationParams{Epsilon: 0.001}))
	require.NoError(t, bn.Run())
	last := r.calls[len(r.calls)-1]
	assert.Nil(t, last.Inputs[3])
	assert.Nil(t, last.Inputs[4])
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Targets used only by these tests, to not collide with real backends.
const (
	testTarget graph.Target = 100 + iota
	unsupportedTarget
)

type fakeBackend struct {
	target      graph.Target
	supported   bool
	initialized int
	finalized   int
}

func (b *fakeBackend) Name() string                       { return "fake" }
func (b *fakeBackend) Target() graph.Target               { return b.target }
func (b *fakeBackend) Initialize() error                  { b.initialized++; return nil }
func (b *fakeBackend) IsSupported() bool                  { return b.supported }
func (b *fakeBackend) SetupContext(ctx *graph.Context)    {}
func (b *fakeBackend) Capabilities() Capabilities         { return Capabilities{} }
func (b *fakeBackend) ValidateNode(node graph.Node) error { return nil }
func (b *fakeBackend) Sync() error                        { return nil }
func (b *fakeBackend) Finalize()                          { b.finalized++ }
func (b *fakeBackend) CreateTensor(tensor *graph.Tensor) (graph.TensorHandle, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeBackend) CreateSubTensor(parent graph.TensorHandle, shape shapes.Shape, offsets []int, extendParent bool) (graph.TensorHandle, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeBackend) ConfigureNode(node graph.Node, ctx *graph.Context) (Function, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	var created []*fakeBackend
	Register(testTarget, func() Backend {
		b := &fakeBackend{target: testTarget, supported: true}
		created = append(created, b)
		return b
	})
	Register(unsupportedTarget, func() Backend { return &fakeBackend{target: unsupportedTarget} })
	assert.True(t, IsRegistered(testTarget))
	assert.Contains(t, List(), testTarget)

	b1, err := Get(testTarget)
	require.NoError(t, err)
	b2, err := Get(testTarget)
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	require.Len(t, created, 1)
	assert.Equal(t, 1, created[0].initialized)

	_, err = Get(unsupportedTarget)
	require.Error(t, err)
	_, err = Get(graph.Target(999))
	require.Error(t, err)

	// Explicit request.
	b, err := Select(testTarget)
	require.NoError(t, err)
	assert.Equal(t, testTarget, b.Target())

	FinalizeAll()
	assert.Equal(t, 1, created[0].finalized)
	b3, err := Get(testTarget)
	require.NoError(t, err)
	assert.NotSame(t, b1, b3)
	FinalizeAll()
}

func TestSelectFromEnv(t *testing.T) {
	t.Setenv(NNGRAPH_BACKEND, "not-a-target")
	_, err := Select(graph.TargetUnspecified)
	require.Error(t, err)
}

func TestCapabilitiesClone(t *testing.T) {
	c := MakeCapabilities([]graph.NodeType{graph.NodeTypeConvolution}, []dtypes.DType{dtypes.Float32})
	c2 := c.Clone()
	c2.NodeTypes[graph.NodeTypePooling] = true
	assert.True(t, c.NodeTypes[graph.NodeTypeConvolution])
	assert.False(t, c.NodeTypes[graph.NodeTypePooling])
	assert.True(t, c2.DTypes[dtypes.Float32])
}

func TestKernels(t *testing.T) {
	call := &KernelCall{Name: "test/Double", Op: graph.NodeTypeActivation, Window: Window{0, 4}}
	// Unregistered kernels are a no-op.
	require.NoError(t, RunKernel(testTarget, call))

	var calls []Window
	RegisterKernel(testTarget, "test/Double", func(call *KernelCall) error {
		calls = append(calls, call.Window)
		return nil
	})
	require.NotNil(t, LookupKernel(testTarget, "test/Double"))
	assert.Nil(t, LookupKernel(graph.TargetGPU, "test/Double"))
	require.NoError(t, SerialDispatcher{Target: testTarget}.Dispatch(call))
	assert.Equal(t, []Window{{0, 4}}, calls)
	assert.Equal(t, 4, call.Window.Len())

	RegisterKernel(testTarget, "test/Fail", func(call *KernelCall) error { return errors.New("boom") })
	err := RunKernel(testTarget, &KernelCall{Name: "test/Fail"})
	require.ErrorContains(t, err, "boom")
}

func TestHostAllocator(t *testing.T) {
	a := NewHostAllocator()
	buf, err := a.Allocate(16)
	require.NoError(t, err)
	require.Len(t, buf, 16)
	buf[0] = 7
	buf2, err := a.Allocate(8)
	require.NoError(t, err)
	assert.Equal(t, 24, a.InUse())
	a.Free(buf)
	assert.Equal(t, 8, a.InUse())

	// Reused buffers come back zeroed.
	buf3, err := a.Allocate(16)
	require.NoError(t, err)
	assert.Equal(t, byte(0), buf3[0])
	a.Free(buf2)
	a.Free(buf3)
	assert.Equal(t, 0, a.InUse())
	assert.Equal(t, 24, a.Peak())

	_, err = a.Allocate(-1)
	require.Error(t, err)
}

func TestSubTensorOffset(t *testing.T) {
	parent := shapes.Make(dtypes.Float32, 1, 6, 4, 4)
	offset, err := SubTensorOffset(parent, shapes.Make(dtypes.Float32, 1, 2, 4, 4), []int{0, 4, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 64, offset)
	_, err = SubTensorOffset(parent, shapes.Make(dtypes.Float32, 1, 3, 4, 4), []int{0, 4, 0, 0})
	require.Error(t, err)
	_, err = SubTensorOffset(parent, shapes.Make(dtypes.Float32, 6, 4, 4), []int{0, 0, 0})
	require.Error(t, err)

	extended := ExtendShape(parent, shapes.Make(dtypes.Float32, 1, 3, 4, 4), []int{0, 4, 0, 0})
	assert.Equal(t, []int{1, 7, 4, 4}, extended.Dimensions)
	assert.Equal(t, []int{1, 6, 4, 4}, parent.Dimensions)

	strides := parent.Strides()
	channels := shapes.Make(dtypes.Float32, 1, 2, 4, 4)
	assert.Equal(t, 32, ViewExtent(channels, strides))
	assert.True(t, IsContiguous(channels, strides))
	rows := shapes.Make(dtypes.Float32, 1, 6, 2, 4)
	assert.Equal(t, 5*16+8, ViewExtent(rows, strides))
	assert.False(t, IsContiguous(rows, strides))
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gpu

import (
	"path/filepath"
	"testing"
	"time"
	"unsafe"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/builder"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *Backend {
	b := New().(*Backend)
	require.NoError(t, b.Initialize())
	t.Cleanup(b.Finalize)
	return b
}

func floats(data []byte) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func allocateAll(t *testing.T, b *Backend, g *graph.Graph) {
	for _, tensor := range g.Tensors() {
		if tensor == nil {
			continue
		}
		handle := must.M1(b.CreateTensor(tensor))
		require.NoError(t, handle.Allocate())
		tensor.SetHandle(handle)
	}
}

func TestRegistered(t *testing.T) {
	assert.True(t, backends.IsRegistered(graph.TargetGPU))
	assert.True(t, backends.IsRegistered(graph.TargetCPU))
}

func TestQueue(t *testing.T) {
	q := NewQueue()
	var order []int
	for ii := range 10 {
		require.NoError(t, q.Enqueue("append", func() error {
			order = append(order, ii)
			return nil
		}))
	}
	require.NoError(t, q.Finish())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)

	require.NoError(t, q.Enqueue("fail", func() error { return errors.New("first") }))
	require.NoError(t, q.Enqueue("fail", func() error { return errors.New("second") }))
	err := q.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	require.NoError(t, q.Finish(), "errors are reported once")

	var observed []string
	q.SetObserver(func(name string, _ time.Duration) { observed = append(observed, name) })
	require.NoError(t, q.Enqueue("observed", func() error { return nil }))
	require.NoError(t, q.Close())
	assert.Equal(t, []string{"observed"}, observed)
	require.Error(t, q.Enqueue("closed", func() error { return nil }))
	require.NoError(t, q.Close())
}

func TestMapping(t *testing.T) {
	b := newBackend(t)
	g := graph.New(0, "map")
	tid := g.CreateTensor(graph.MakeDescriptor(shapes.Make(dtypes.Float32, 2, 4), shapes.LayoutNCHW))
	handle := must.M1(b.CreateTensor(g.Tensor(tid)))
	require.NoError(t, handle.Allocate())
	assert.Equal(t, graph.TargetGPU, handle.Target())

	tensor := handle.Tensor().(*Tensor)
	assert.Nil(t, tensor.Bytes(), "unmapped tensors are not accessible from the host")
	assert.Len(t, tensor.DeviceBytes(), 32)

	sub := must.M1(b.CreateSubTensor(handle, shapes.Make(dtypes.Float32, 1, 4), []int{1, 0}, false))
	require.NoError(t, handle.Map(true))
	assert.True(t, sub.Tensor().(*Tensor).IsMapped(), "mapping is shared with sub-tensors")
	floats(sub.Tensor().Bytes())[0] = 7
	assert.Equal(t, float32(7), floats(tensor.Bytes())[4])
	handle.Unmap()
	assert.Nil(t, sub.Tensor().Bytes())

	handle.Free()
	assert.Nil(t, tensor.DeviceBytes())
	assert.Equal(t, 0, b.allocator.InUse())
}

func TestReLUOnQueue(t *testing.T) {
	b := newBackend(t)
	g := graph.New(0, "relu")
	desc := graph.MakeDescriptor(shapes.Make(dtypes.Float32, 1, 6), shapes.LayoutNCHW)
	input := builder.AddInputNode(g, builder.Params{}, desc, nil)
	act := builder.AddActivationNode(g, builder.Params{}, graph.NodeIdxPair{NodeID: input},
		graph.MakeActivation(graph.ActivationReLU, 0, 0), graph.QuantizationInfo{})
	allocateAll(t, b, g)

	in := g.Node(input).Output(0).Handle()
	require.NoError(t, in.Map(true))
	copy(floats(in.Tensor().Bytes()), []float32{-1, 2, -3, 4, -5, 6})
	in.Unmap()

	fn := must.M1(b.ConfigureNode(g.Node(act), graph.NewContext(graph.DefaultConfig())))
	require.NoError(t, fn.Run())
	require.NoError(t, b.Sync())

	out := g.Node(act).Output(0).Handle()
	require.NoError(t, out.Map(true))
	defer out.Unmap()
	assert.Equal(t, []float32{0, 2, 0, 4, 0, 6}, floats(out.Tensor().Bytes()))
}

func TestKernelErrorsReportedBySync(t *testing.T) {
	b := newBackend(t)
	backends.RegisterKernel(graph.TargetGPU, "test/Fail", func(*backends.KernelCall) error { return errors.New("device fault") })
	d := &Dispatcher{queue: b.queue}
	require.NoError(t, d.Dispatch(&backends.KernelCall{Name: "test/Fail"}))
	err := b.Sync()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device fault")
}

func TestDetectionOutputRunsOnHost(t *testing.T) {
	var mappedDuringRun bool
	backends.RegisterKernel(graph.TargetCPU, "DetectionOutput", func(call *backends.KernelCall) error {
		mappedDuringRun = true
		for _, tensor := range append(append([]backends.Tensor(nil), call.Inputs...), call.Outputs...) {
			if tensor.Bytes() == nil {
				mappedDuringRun = false
			}
		}
		return nil
	})

	b := newBackend(t)
	g := graph.New(0, "ssd")
	p := builder.Params{}
	float32Desc := func(dims ...int) graph.TensorDescriptor {
		return graph.MakeDescriptor(shapes.Make(dtypes.Float32, dims...), shapes.LayoutNCHW)
	}
	loc := builder.AddInputNode(g, p, float32Desc(1, 8), nil)
	conf := builder.AddInputNode(g, p, float32Desc(1, 4), nil)
	priors := builder.AddInputNode(g, p, float32Desc(1, 2, 8), nil)
	det := builder.AddDetectionOutputNode(g, p, graph.NodeIdxPair{NodeID: loc}, graph.NodeIdxPair{NodeID: conf},
		graph.NodeIdxPair{NodeID: priors}, graph.DetectionOutputInfo{NumClasses: 2, KeepTopK: 3, TopK: 3})
	allocateAll(t, b, g)

	fn := must.M1(b.ConfigureNode(g.Node(det), graph.NewContext(graph.DefaultConfig())))
	wrapper, ok := fn.(*HostWrapperFunction)
	require.True(t, ok, "got %T", fn)
	assert.Len(t, wrapper.Tensors(), 4)
	wrapper.RegisterTensor(wrapper.Tensors()[0])
	assert.Len(t, wrapper.Tensors(), 4, "tensors are registered once")

	require.NoError(t, wrapper.Run())
	assert.True(t, mappedDuringRun)
	for _, tensor := range wrapper.Tensors() {
		assert.False(t, tensor.IsMapped())
	}
}

func TestTuner(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tuner.csv")
	tuner := must.M1(LoadTuner(file))
	_, found := tuner.Best("Convolution/GEMM")
	assert.False(t, found)

	tuner.Observe("Convolution/GEMM", 3*time.Millisecond)
	tuner.Observe("Convolution/GEMM", 2*time.Millisecond)
	tuner.Observe("Convolution/GEMM", 5*time.Millisecond)
	tuner.Observe("Activation/ReLU", time.Microsecond)
	require.NoError(t, tuner.Save())

	reloaded := must.M1(LoadTuner(file))
	best, found := reloaded.Best("Convolution/GEMM")
	require.True(t, found)
	assert.Equal(t, 2*time.Millisecond, best)
	best, _ = reloaded.Best("Activation/ReLU")
	assert.Equal(t, time.Microsecond, best)
}

func TestSetupContextEnablesTuner(t *testing.T) {
	b := newBackend(t)
	cfg := graph.DefaultConfig()
	cfg.UseTuner = true
	cfg.TunerFile = filepath.Join(t.TempDir(), "tuner.csv")
	ctx := graph.NewContext(cfg)
	b.SetupContext(ctx)
	require.NotNil(t, b.Tuner())
	require.NotNil(t, ctx.MemoryManagerContext(graph.TargetGPU))

	require.NoError(t, b.queue.Enqueue("test/Noop", func() error { return nil }))
	require.NoError(t, b.Sync())
	_, found := b.Tuner().Best("test/Noop")
	assert.True(t, found)
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package manager

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/backends"
	_ "github.com/gomlx/nngraph/backends/cpu"
	"github.com/gomlx/nngraph/pkg/accessors"
	"github.com/gomlx/nngraph/pkg/core/builder"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/passes"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/gomlx/nngraph/pkg/core/workload"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTarget is served by stubBackend, whose functions only record that they ran.
const stubTarget = graph.Target(7)

type stubTensor struct {
	desc graph.TensorDescriptor
	data []byte
}

func (t *stubTensor) Desc() graph.TensorDescriptor { return t.desc }
func (t *stubTensor) Bytes() []byte                { return t.data }

type stubHandle struct {
	tensor *stubTensor
}

func (h *stubHandle) Allocate() error {
	if h.tensor.data == nil {
		h.tensor.data = make([]byte, h.tensor.desc.Shape.Memory())
	}
	return nil
}

func (h *stubHandle) Free()                       { h.tensor.data = nil }
func (h *stubHandle) Map(bool) error              { return nil }
func (h *stubHandle) Unmap()                      {}
func (h *stubHandle) ReleaseIfUnused()            {}
func (h *stubHandle) Tensor() graph.BackendTensor { return h.tensor }
func (h *stubHandle) Parent() graph.TensorHandle  { return h }
func (h *stubHandle) IsSubTensor() bool           { return false }
func (h *stubHandle) Target() graph.Target        { return stubTarget }

type countingFunction struct {
	name     string
	node     graph.NodeID
	log      *[]string
	ran      *[]graph.NodeID
	runs     int
	prepared int
}

func (f *countingFunction) Run() error {
	f.runs++
	*f.log = append(*f.log, f.name)
	*f.ran = append(*f.ran, f.node)
	return nil
}

func (f *countingFunction) Prepare() error {
	f.prepared++
	return nil
}

type stubBackend struct {
	log       []string
	ran       []graph.NodeID
	functions []*countingFunction
	reject    map[graph.NodeType]bool
	contexts  int
}

func (b *stubBackend) Name() string                        { return "stub" }
func (b *stubBackend) Target() graph.Target                { return stubTarget }
func (b *stubBackend) Initialize() error                   { return nil }
func (b *stubBackend) IsSupported() bool                   { return true }
func (b *stubBackend) SetupContext(*graph.Context)         { b.contexts++ }
func (b *stubBackend) Capabilities() backends.Capabilities { return backends.Capabilities{} }
func (b *stubBackend) Sync() error                         { return nil }
func (b *stubBackend) Finalize()                           {}

func (b *stubBackend) CreateTensor(tensor *graph.Tensor) (graph.TensorHandle, error) {
	if !tensor.Desc().Ok() {
		return nil, errors.Errorf("unresolved %s", tensor)
	}
	return &stubHandle{tensor: &stubTensor{desc: tensor.Desc()}}, nil
}

func (b *stubBackend) CreateSubTensor(graph.TensorHandle, shapes.Shape, []int, bool) (graph.TensorHandle, error) {
	return nil, errors.New("stub backend has no sub-tensors")
}

func (b *stubBackend) ConfigureNode(node graph.Node, _ *graph.Context) (backends.Function, error) {
	switch node.Type() {
	case graph.NodeTypeConvolution, graph.NodeTypeActivation, graph.NodeTypePooling, graph.NodeTypeEltwise:
		f := &countingFunction{name: node.Type().String(), node: node.ID(), log: &b.log, ran: &b.ran}
		b.functions = append(b.functions, f)
		return f, nil
	default:
		return nil, nil
	}
}

func (b *stubBackend) ValidateNode(node graph.Node) error {
	if b.reject[node.Type()] {
		return errors.Errorf("%s not supported", node)
	}
	return nil
}

// registerStub registers a new stubBackend for stubTarget and returns it.
func registerStub(t *testing.T) *stubBackend {
	stub := &stubBackend{}
	backends.Register(stubTarget, func() backends.Backend { return stub })
	t.Cleanup(func() { backends.Register(stubTarget, func() backends.Backend { return &stubBackend{} }) })
	return stub
}

func nchw(n, c, h, w int) graph.TensorDescriptor {
	return graph.MakeDescriptor(shapes.MakeWithLayout(dtypes.Float32, shapes.LayoutNCHW, n, c, h, w), shapes.LayoutNCHW)
}

func pair(nid graph.NodeID) graph.NodeIdxPair { return graph.NodeIdxPair{NodeID: nid} }

// convActPool builds input[1,3,8,8] -> conv 3x3x4 -> logistic -> max pool 2x2/2 -> output.
func convActPool(id graph.GraphID, inAccessor, outAccessor graph.TensorAccessor) (g *graph.Graph, conv, act, pool graph.NodeID) {
	g = graph.New(id, "conv_act_pool")
	in := builder.AddInputNode(g, builder.Params{Name: "input"}, nchw(1, 3, 8, 8), inAccessor)
	conv = builder.AddConvolutionNode(g, builder.Params{Name: "conv"}, pair(in), builder.ConvolutionParams{
		KernelWidth: 3, KernelHeight: 3, Depth: 4, Info: graph.MakePadStride(1, 1, 0, 0),
	})
	act = builder.AddActivationNode(g, builder.Params{Name: "act"}, pair(conv),
		graph.MakeActivation(graph.ActivationLogistic, 0, 0), graph.QuantizationInfo{})
	pool = builder.AddPoolingNode(g, builder.Params{Name: "pool"}, pair(act), graph.PoolingInfo{
		Type: graph.PoolingMax, PoolWidth: 2, PoolHeight: 2, PadStride: graph.MakePadStride(2, 2, 0, 0),
	})
	builder.AddOutputNode(g, builder.Params{Name: "output"}, pair(pool), outAccessor)
	return
}

func TestEndToEnd(t *testing.T) {
	stub := registerStub(t)
	g, conv, act, pool := convActPool(1, nil, nil)
	m := New(nil)
	require.NoError(t, m.FinalizeGraph(g, graph.NewContext(graph.DefaultConfig()), nil, stubTarget))
	assert.Equal(t, 1, stub.contexts)

	// Descriptors follow the convolution and pooling output formulas.
	assert.Equal(t, []int{1, 4, 6, 6}, g.Node(conv).Output(0).Desc().Shape.Dimensions)
	assert.Equal(t, []int{1, 4, 6, 6}, g.Node(act).Output(0).Desc().Shape.Dimensions)
	assert.Equal(t, []int{1, 4, 3, 3}, g.Node(pool).Output(0).Desc().Shape.Dimensions)
	for _, tensor := range g.Tensors() {
		if tensor != nil {
			assert.Equal(t, stubTarget, tensor.Desc().Target)
			require.NotNil(t, tensor.Handle())
		}
	}

	w := m.Workload(g.ID())
	require.NotNil(t, w)
	require.Len(t, w.Tasks, 3)
	require.Len(t, stub.functions, 3)
	for _, f := range stub.functions {
		assert.Equal(t, 1, f.prepared)
		assert.Zero(t, f.runs)
	}

	more, err := m.ExecuteGraph(g)
	require.NoError(t, err)
	assert.False(t, more, "no accessors means no more data")
	assert.Equal(t, []string{"Convolution", "Activation", "Pooling"}, stub.log)
	for _, f := range stub.functions {
		assert.Equal(t, 1, f.runs)
	}

	require.Error(t, m.FinalizeGraph(g, nil, nil, stubTarget), "graph already finalized")
	m.InvalidateGraph(g)
	assert.Nil(t, m.Workload(g.ID()))
	_, err = m.ExecuteGraph(g)
	require.Error(t, err)
}

func TestBranchedExecutionOrder(t *testing.T) {
	stub := registerStub(t)
	// in -> relu a ----------> add(a, c) -> out
	//    -> tanh b -> relu c -/
	g := graph.New(6, "residual")
	p := builder.Params{}
	in := builder.AddInputNode(g, p, nchw(1, 2, 4, 4), nil)
	a := builder.AddActivationNode(g, p, pair(in), graph.MakeActivation(graph.ActivationReLU, 0, 0), graph.QuantizationInfo{})
	b := builder.AddActivationNode(g, p, pair(in), graph.MakeActivation(graph.ActivationTanh, 0, 0), graph.QuantizationInfo{})
	c := builder.AddActivationNode(g, p, pair(b), graph.MakeActivation(graph.ActivationReLU, 0, 0), graph.QuantizationInfo{})
	add := builder.AddEltwiseNode(g, p, pair(a), pair(c), graph.EltwiseAdd, graph.QuantizationInfo{})
	builder.AddOutputNode(g, p, pair(add), nil)

	m := New(nil)
	require.NoError(t, m.FinalizeGraph(g, nil, nil, stubTarget))
	w := m.Workload(g.ID())
	require.NotNil(t, w)
	var tasks []graph.NodeID
	for _, task := range w.Tasks {
		tasks = append(tasks, task.Node.ID())
	}
	assert.Equal(t, []graph.NodeID{a, b, c, add}, tasks)

	_, err := m.ExecuteGraph(g)
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeID{a, b, c, add}, stub.ran)
}

func TestRunUntilDone(t *testing.T) {
	stub := registerStub(t)
	g, _, _, _ := convActPool(2, accessors.NewDummy(3), accessors.NewDummy(3))
	profiler := workload.NewProfilingExecutor(nil)
	m := New(profiler)
	require.NoError(t, m.FinalizeGraph(g, graph.NewContext(graph.DefaultConfig()), nil, stubTarget))
	runs, err := m.RunUntilDone(g)
	require.NoError(t, err)
	assert.Equal(t, 3, runs)
	for _, f := range stub.functions {
		assert.Equal(t, 3, f.runs)
	}
	profiles := profiler.Profiles()
	require.Len(t, profiles, 3)
	for _, profile := range profiles {
		assert.Equal(t, 3, profile.Calls)
	}
}

type panickingMutator struct{}

func (panickingMutator) Name() string              { return "panicking" }
func (panickingMutator) Type() passes.MutationType { return passes.MutationTypeIR }
func (panickingMutator) Mutate(*graph.Graph) error {
	exceptions.Panicf("corrupted graph")
	return nil
}

func TestFinalizeErrors(t *testing.T) {
	stub := registerStub(t)
	m := New(nil)

	// Structural panics are converted to errors.
	g, _, _, _ := convActPool(3, nil, nil)
	pm := passes.NewPassManager()
	pm.Append(panickingMutator{})
	err := m.FinalizeGraph(g, nil, pm, stubTarget)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupted graph")
	assert.Nil(t, m.Workload(g.ID()))

	// Validation failures prevent the workload from being registered.
	stub.reject = map[graph.NodeType]bool{graph.NodeTypePooling: true}
	g, _, _, _ = convActPool(4, nil, nil)
	err = m.FinalizeGraph(g, nil, nil, stubTarget)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
	assert.Nil(t, m.Workload(g.ID()))
	assert.Empty(t, stub.functions)
}

func float32Bytes(values ...float32) []byte {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return data
}

func TestCPUExecution(t *testing.T) {
	g := graph.New(5, "relu")
	input := accessors.NewInputBuffer(float32Bytes(-1, 2, -3, 4))
	output := accessors.NewOutputBuffer()
	in := builder.AddInputNode(g, builder.Params{Name: "in"}, nchw(1, 1, 2, 2), input)
	relu := builder.AddActivationNode(g, builder.Params{Name: "relu"}, pair(in),
		graph.MakeActivation(graph.ActivationReLU, 0, 0), graph.QuantizationInfo{})
	builder.AddOutputNode(g, builder.Params{Name: "out"}, pair(relu), output)

	m := New(nil)
	require.NoError(t, m.FinalizeGraph(g, graph.NewContext(graph.DefaultConfig()), nil, graph.TargetCPU))
	defer m.InvalidateGraph(g)
	more, err := m.ExecuteGraph(g)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, float32Bytes(0, 2, 0, 4), output.Data)

	fn, err := m.BranchFunction(g.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, fn.NumBranches())
	_, err = m.BranchFunction(g.ID(), 99)
	require.Error(t, err)
}

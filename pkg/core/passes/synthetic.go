// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/accessors"
	"github.com/gomlx/nngraph/pkg/core/builder"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/gomlx/nngraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SyntheticDataTypeMutator converts a Float32 graph to a quantized 8-bit data type with
// synthetic quantization parameters. It is used to benchmark quantized graphs without
// quantized weights.
//
// Batch normalizations are removed, and operators that take an optional bias get a zero
// Int32 bias, so that all of them have the same inputs.
type SyntheticDataTypeMutator struct {
	dtype dtypes.DType
}

var _ Mutator = (*SyntheticDataTypeMutator)(nil)

// NewSyntheticDataTypeMutator creates the pass converting to dtype: Uint8 or Int8.
func NewSyntheticDataTypeMutator(dtype dtypes.DType) *SyntheticDataTypeMutator {
	return &SyntheticDataTypeMutator{dtype: dtype}
}

func (m *SyntheticDataTypeMutator) Name() string       { return "SyntheticDataTypeMutator" }
func (m *SyntheticDataTypeMutator) Type() MutationType { return MutationTypeIR }

// syntheticQuantization of every converted tensor, per data type.
var syntheticQuantization = map[dtypes.DType]graph.QuantizationInfo{
	dtypes.Uint8: graph.MakeQuantizationInfo(0.125, -10),
	dtypes.Int8:  graph.MakeQuantizationInfo(0.125, 10),
}

// activationQuantization of the outputs of bounded activations, per data type.
var activationQuantization = map[graph.ActivationFunction]map[dtypes.DType]graph.QuantizationInfo{
	graph.ActivationLogistic: {
		dtypes.Uint8: graph.MakeQuantizationInfo(1.0/256, 0),
		dtypes.Int8:  graph.MakeQuantizationInfo(1.0/256, -128),
	},
	graph.ActivationTanh: {
		dtypes.Uint8: graph.MakeQuantizationInfo(1.0/128, 128),
		dtypes.Int8:  graph.MakeQuantizationInfo(1.0/128, 0),
	},
}

var softmaxQuantization = map[dtypes.DType]graph.QuantizationInfo{
	dtypes.Uint8: graph.MakeQuantizationInfo(1.0/256, 0),
	dtypes.Int8:  graph.MakeQuantizationInfo(1.0/256, -128),
}

// outputRewrites set the output quantization of nodes whose output range is known.
var outputRewrites = map[graph.NodeType]func(node graph.Node, dtype dtypes.DType){
	graph.NodeTypeActivation: func(node graph.Node, dtype dtypes.DType) {
		act := node.(*graph.ActivationNode)
		if q, found := activationQuantization[act.Info().Function][dtype]; found {
			act.SetOutputQuantization(q)
			setOutputQuantization(node, q)
		}
	},
	graph.NodeTypeSoftmax: func(node graph.Node, dtype dtypes.DType) {
		q := softmaxQuantization[dtype]
		node.(*graph.SoftmaxNode).SetOutputQuantization(q)
		setOutputQuantization(node, q)
	},
}

func setOutputQuantization(node graph.Node, q graph.QuantizationInfo) {
	if t := node.Output(0); t != nil {
		t.SetDesc(t.Desc().WithQuantization(q))
	}
}

// unsupportedBySynthetic are the node types the pass can't convert.
var unsupportedBySynthetic = []graph.NodeType{graph.NodeTypeDetectionOutput, graph.NodeTypePriorBox}

// Mutate implements Mutator.
func (m *SyntheticDataTypeMutator) Mutate(g *graph.Graph) error {
	for _, nodeType := range unsupportedBySynthetic {
		if len(g.NodesOfType(nodeType)) > 0 {
			klog.V(1).Infof("%s: graph %q has %s nodes, not converting", m.Name(), g.Name(), nodeType)
			return nil
		}
	}
	q, found := syntheticQuantization[m.dtype]
	if !found {
		return errors.Errorf("%s: unsupported synthetic data type %s, must be Uint8 or Int8", m.Name(), m.dtype)
	}

	removeBatchNormalizations(g)
	m.convertTensors(g, q)
	for _, node := range g.Nodes() {
		if node == nil {
			continue
		}
		if rewrite, found := outputRewrites[node.Type()]; found {
			rewrite(node, m.dtype)
		}
	}
	convertBiases(g)
	klog.V(1).Infof("%s: graph %q converted to %s", m.Name(), g.Name(), m.dtype)
	return nil
}

// removeBatchNormalizations removes every batch normalization, connecting its consumers to the
// producer of its input. Constant parameters left without consumers are removed as well.
func removeBatchNormalizations(g *graph.Graph) {
	for _, nid := range g.NodesOfType(graph.NodeTypeBatchNormalization) {
		bn := g.Node(nid)
		producer, ok := producerOf(bn, graph.BatchNormInput)
		if !ok {
			continue
		}
		consumers := graph.DrivingNodesIdx(bn, 0)
		params := graph.DriverNodes(bn)[1:]
		moveAccessor(bn.Output(0), g.Node(producer.NodeID).Output(producer.Index))
		g.RemoveNode(nid)
		relinkConsumers(g, producer, consumers)
		for _, param := range params {
			if node := g.Node(param.NodeID); node != nil && node.Type() == graph.NodeTypeConst && len(node.OutputEdges()) == 0 {
				g.RemoveNode(param.NodeID)
			}
		}
	}
}

// convertTensors changes every Float32 tensor (and the descriptors of inputs and constants,
// so they survive descriptor forwarding) to the synthetic data type.
func (m *SyntheticDataTypeMutator) convertTensors(g *graph.Graph, q graph.QuantizationInfo) {
	convert := func(desc graph.TensorDescriptor) (graph.TensorDescriptor, bool) {
		if desc.DType() != dtypes.Float32 {
			return desc, false
		}
		return desc.WithDType(m.dtype).WithQuantization(q), true
	}
	for _, node := range g.Nodes() {
		switch n := node.(type) {
		case *graph.InputNode:
			if desc, ok := convert(n.Desc()); ok {
				n.SetDesc(desc)
			}
		case *graph.ConstNode:
			if desc, ok := convert(n.Desc()); ok {
				n.SetDesc(desc)
			}
		}
	}
	for _, t := range g.Tensors() {
		if t == nil {
			continue
		}
		if desc, ok := convert(t.Desc()); ok {
			t.SetDesc(desc)
		}
	}
}

// biasSize returns the number of bias values of a node taking an optional bias, or 0 for
// other nodes or if unknown.
func biasSize(node graph.Node) int {
	switch n := node.(type) {
	case *graph.ConvolutionNode:
		if weights := n.Input(graph.ConvWeights); weights != nil {
			return weights.Desc().Dim(shapes.DimBatch)
		}
	case *graph.DepthwiseConvolutionNode:
		if weights := n.Input(graph.ConvWeights); weights != nil {
			return weights.Desc().Dim(shapes.DimChannel)
		}
	case *graph.FullyConnectedNode:
		return n.NumOutputFeatures()
	}
	return 0
}

// convertBiases makes the existing biases Int32, and adds a zero Int32 bias to the nodes
// missing one.
func convertBiases(g *graph.Graph) {
	for _, node := range g.Nodes() {
		if node == nil {
			continue
		}
		size := biasSize(node)
		if size == 0 {
			continue
		}
		if bias := node.Input(graph.ConvBias); bias != nil {
			desc := bias.Desc().WithDType(dtypes.Int32).WithQuantization(graph.QuantizationInfo{})
			bias.SetDesc(desc)
			if producer, ok := producerOf(node, graph.ConvBias); ok {
				if c, ok := g.Node(producer.NodeID).(*graph.ConstNode); ok {
					c.SetDesc(desc)
				}
			}
			continue
		}
		desc := graph.MakeDescriptor(shapes.Make(dtypes.Int32, size), shapes.LayoutUnknown)
		params := builder.Params{Target: node.RequestedTarget()}
		if node.Name() != "" {
			params.Name = node.Name() + "/Bias"
		}
		bias := builder.AddConstNode(g, params, desc, accessors.Fill{Value: 0})
		g.AddConnection(bias, 0, node.ID(), graph.ConvBias)
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gpu

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/backends/lowering"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"k8s.io/klog/v2"
)

func createFunction(node graph.Node, info *targetInfo) (backends.Function, error) {
	switch n := node.(type) {
	case *graph.InputNode, *graph.OutputNode, *graph.ConstNode, *graph.PrintNode:
		return nil, nil
	case *graph.ActivationNode:
		return lowering.CreateActivationLayer[*Tensor](n, info)
	case *graph.BatchNormalizationNode:
		return lowering.CreateBatchNormalizationLayer[*Tensor](n, info)
	case *graph.ConcatenateNode:
		return lowering.CreateConcatenateLayer[*Tensor](n, info)
	case *graph.ConvolutionNode:
		return lowering.CreateConvolutionLayer[*Tensor](n, info)
	case *graph.DepthwiseConvolutionNode:
		return lowering.CreateDepthwiseConvolutionLayer[*Tensor](n, info)
	case *graph.FusedConvolutionBatchNormalizationNode:
		return lowering.CreateFusedConvolutionBatchNormalizationLayer[*Tensor](n, info)
	case *graph.EltwiseNode:
		return lowering.CreateEltwiseLayer[*Tensor](n, info)
	case *graph.FullyConnectedNode:
		return lowering.CreateFullyConnectedLayer[*Tensor](n, info)
	case *graph.PoolingNode:
		return lowering.CreatePoolingLayer[*Tensor](n, info)
	case *graph.SoftmaxNode:
		return lowering.CreateSoftmaxLayer[*Tensor](n, info)
	case *graph.FlattenNode, *graph.ReshapeNode:
		return lowering.CreateReshapeLayer[*Tensor](n, info)
	case *graph.SplitNode:
		return lowering.CreateSplitLayer[*Tensor](n, info)
	case *graph.QuantizationNode:
		return lowering.CreateQuantizationLayer[*Tensor](n, info)
	case *graph.PriorBoxNode:
		return lowering.CreatePriorBoxLayer[*Tensor](n, info)
	case *graph.DetectionOutputNode:
		// No device kernel: run it on the host over mapped tensors.
		f, err := lowering.CreateDetectionOutputLayer[*Tensor](n, &hostInfo{device: info})
		if err != nil {
			return nil, err
		}
		return NewHostWrapperFunction(f, f.Tensors()...), nil
	default:
		klog.V(1).Infof("gpu backend: no function for %s", node)
		return nil, nil
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package passes

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ConvolutionMethodMutator falls back to the default convolution method for convolutions
// whose requested method the backend can't run.
type ConvolutionMethodMutator struct{}

var _ Mutator = ConvolutionMethodMutator{}

// NewConvolutionMethodMutator creates the pass.
func NewConvolutionMethodMutator() ConvolutionMethodMutator { return ConvolutionMethodMutator{} }

func (ConvolutionMethodMutator) Name() string       { return "ConvolutionMethodMutator" }
func (ConvolutionMethodMutator) Type() MutationType { return MutationTypeBackend }

// Mutate implements Mutator.
func (m ConvolutionMethodMutator) Mutate(g *graph.Graph) error {
	for _, nid := range g.NodesOfType(graph.NodeTypeConvolution) {
		conv := g.Node(nid).(*graph.ConvolutionNode)
		if conv.ConvolutionMethod() == graph.ConvolutionMethodDefault || conv.AssignedTarget() == graph.TargetUnspecified {
			continue
		}
		backend, err := backends.Get(conv.AssignedTarget())
		if err != nil {
			return errors.WithMessagef(err, "%s: %s", m.Name(), conv)
		}
		if err := backend.ValidateNode(conv); err != nil {
			klog.V(1).Infof("%s: %s can't use method %s, falling back to default: %v", m.Name(), conv, conv.ConvolutionMethod(), err)
			conv.SetConvolutionMethod(graph.ConvolutionMethodDefault)
		}
	}
	return nil
}

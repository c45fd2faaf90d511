// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package printers writes graphs in formats meant for humans and external tools.
package printers

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
)

// DotPrinter writes a graph in the Graphviz DOT language.
type DotPrinter struct{}

// dotInfoVisitor collects the per-type attributes shown in each node's label.
type dotInfoVisitor struct {
	graph.DefaultNodeVisitor
	info string
}

func (v *dotInfoVisitor) VisitActivation(n *graph.ActivationNode) {
	v.info = n.Info().String()
}

func (v *dotInfoVisitor) VisitBatchNormalization(n *graph.BatchNormalizationNode) {
	v.info = fmt.Sprintf("epsilon=%g", n.Epsilon())
	if n.FusedActivation().Enabled {
		v.info += " act=" + n.FusedActivation().String()
	}
}

func (v *dotInfoVisitor) VisitConcatenate(n *graph.ConcatenateNode) {
	v.info = fmt.Sprintf("axis=%s enabled=%t", n.Axis(), n.IsEnabled())
}

func (v *dotInfoVisitor) VisitConvolution(n *graph.ConvolutionNode) {
	v.info = fmt.Sprintf("%s groups=%d method=%s", n.Info(), n.NumGroups(), n.ConvolutionMethod())
	if n.FusedActivation().Enabled {
		v.info += " act=" + n.FusedActivation().String()
	}
}

func (v *dotInfoVisitor) VisitDepthwiseConvolution(n *graph.DepthwiseConvolutionNode) {
	v.info = fmt.Sprintf("%s multiplier=%d", n.Info(), n.DepthMultiplier())
}

func (v *dotInfoVisitor) VisitFusedConvolutionBatchNormalization(n *graph.FusedConvolutionBatchNormalizationNode) {
	v.info = fmt.Sprintf("%s epsilon=%g", n.Info(), n.Epsilon())
}

func (v *dotInfoVisitor) VisitEltwise(n *graph.EltwiseNode) {
	v.info = n.Operation().String()
}

func (v *dotInfoVisitor) VisitPooling(n *graph.PoolingNode) {
	info := n.Info()
	if info.Global {
		v.info = fmt.Sprintf("global %s", info.Type)
		return
	}
	v.info = fmt.Sprintf("%s %dx%d %s", info.Type, info.PoolWidth, info.PoolHeight, info.PadStride)
}

func (v *dotInfoVisitor) VisitSplit(n *graph.SplitNode) {
	v.info = fmt.Sprintf("splits=%d axis=%d enabled=%t", n.NumSplits(), n.Axis(), n.IsEnabled())
}

// Print writes g to w.
func (DotPrinter) Print(w io.Writer, g *graph.Graph) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", g.Name())
	sb.WriteString("\trankdir=TB;\n\tnode [shape=box, fontname=\"monospace\"];\n")
	for _, node := range g.Nodes() {
		if node == nil {
			continue
		}
		v := &dotInfoVisitor{}
		node.Accept(v)
		label := node.String()
		if v.info != "" {
			label += "\\n" + v.info
		}
		if target := node.AssignedTarget(); target != graph.TargetUnspecified {
			label += "\\n@" + target.String()
		}
		fmt.Fprintf(&sb, "\tn%d [label=%q];\n", node.ID(), label)
	}
	for _, e := range g.Edges() {
		if e == nil {
			continue
		}
		label := ""
		if t := e.Tensor(); t != nil {
			label = t.Desc().Shape.String()
		}
		fmt.Fprintf(&sb, "\tn%d -> n%d [label=%q];\n", e.ProducerID(), e.ConsumerID(), label)
	}
	sb.WriteString("}\n")
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.Wrapf(err, "writing DOT for graph %q", g.Name())
	}
	return nil
}

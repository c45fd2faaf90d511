// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workload

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ForceTarget assigns target to every node and stamps it on every tensor descriptor.
func ForceTarget(g *graph.Graph, target graph.Target) {
	for _, node := range g.Nodes() {
		if node == nil {
			continue
		}
		if requested := node.RequestedTarget(); requested != graph.TargetUnspecified && requested != target {
			klog.V(1).Infof("%s: requested target %s overridden by %s", node, requested, target)
		}
		node.SetAssignedTarget(target)
	}
	for _, t := range g.Tensors() {
		if t == nil {
			continue
		}
		desc := t.Desc()
		desc.Target = target
		t.SetDesc(desc)
	}
}

// ConfigureAllTensors creates the backend handle of every tensor that doesn't have one yet,
// using the backend of the tensor's target.
func ConfigureAllTensors(g *graph.Graph) error {
	for _, t := range g.Tensors() {
		if t == nil || t.Handle() != nil {
			continue
		}
		backend, err := backends.Get(t.Desc().Target)
		if err != nil {
			return errors.WithMessagef(err, "configuring %s", t)
		}
		handle, err := backend.CreateTensor(t)
		if err != nil {
			return err
		}
		t.SetHandle(handle)
	}
	return nil
}

// AllocateAllTensors allocates the memory of every tensor in use: bound to an edge or with an
// accessor. Sub-tensors allocate their root.
func AllocateAllTensors(g *graph.Graph) error {
	for _, t := range g.Tensors() {
		if t == nil || t.Handle() == nil {
			continue
		}
		if len(t.BoundEdges()) == 0 && t.Accessor() == nil {
			continue
		}
		if err := t.Handle().Parent().Allocate(); err != nil {
			return errors.WithMessagef(err, "allocating %s", t)
		}
	}
	return nil
}

// ReleaseUnusedTensors frees the memory of the tensors their functions marked as unused.
func ReleaseUnusedTensors(g *graph.Graph) {
	for _, t := range g.Tensors() {
		if t != nil && t.Handle() != nil {
			t.Handle().ReleaseIfUnused()
		}
	}
}

// FreeAllTensors frees the memory of every tensor of the graph.
func FreeAllTensors(g *graph.Graph) {
	for _, t := range g.Tensors() {
		if t != nil && t.Handle() != nil {
			t.Handle().Free()
		}
	}
}

// ValidateAllNodes checks every node, in the given order, against the backend of its assigned target.
func ValidateAllNodes(g *graph.Graph, order []graph.NodeID) error {
	for _, nid := range order {
		node := g.Node(nid)
		if node == nil {
			continue
		}
		if err := node.Validate(); err != nil {
			return err
		}
		backend, err := backends.Get(node.AssignedTarget())
		if err != nil {
			return errors.WithMessagef(err, "validating %s", node)
		}
		if err := backend.ValidateNode(node); err != nil {
			return errors.WithMessagef(err, "validating %s", node)
		}
	}
	return nil
}

// ConfigureAllNodes lowers every node, in the given order, with the backend of its assigned
// target, and returns the workload with the resulting tasks.
//
// Nodes lowered to no function are left out, except print nodes, which ExecuteTask runs inline.
func ConfigureAllNodes(g *graph.Graph, ctx *graph.Context, order []graph.NodeID, executor TaskExecutor) (*Workload, error) {
	w := New(g, ctx, executor)
	for _, nid := range order {
		node := g.Node(nid)
		if node == nil {
			continue
		}
		backend, err := backends.Get(node.AssignedTarget())
		if err != nil {
			return nil, errors.WithMessagef(err, "configuring %s", node)
		}
		function, err := backend.ConfigureNode(node, ctx)
		if err != nil {
			return nil, errors.WithMessagef(err, "configuring %s", node)
		}
		if function == nil && node.Type() != graph.NodeTypePrint {
			continue
		}
		w.AddTask(node, function)
	}
	klog.V(1).Infof("graph %q: %d tasks, %d functions", g.Name(), len(w.Tasks), w.NumFunctions())
	return w, nil
}

// CallConstAccessors calls the accessors of all constant nodes, to load their values.
func CallConstAccessors(g *graph.Graph) error {
	for _, nid := range g.NodesOfType(graph.NodeTypeConst) {
		t := g.Node(nid).Output(0)
		if t == nil {
			continue
		}
		if _, err := t.CallAccessor(); err != nil {
			return errors.WithMessagef(err, "loading constant %s", g.Node(nid))
		}
	}
	return nil
}

// CallInputAccessors calls the accessors of all the inputs. It returns false if any of them
// reported no more data, or has no accessor.
func (w *Workload) CallInputAccessors() (bool, error) {
	return callAccessors(w.Inputs)
}

// CallOutputAccessors waits for the pending work of the outputs' backends and calls the
// accessors of all the outputs. It returns false if any of them reported no more data, or
// has no accessor.
func (w *Workload) CallOutputAccessors() (bool, error) {
	synced := make(map[graph.Target]bool)
	for _, t := range w.Outputs {
		target := t.Desc().Target
		if synced[target] {
			continue
		}
		synced[target] = true
		backend, err := backends.Get(target)
		if err != nil {
			return false, err
		}
		if err := backend.Sync(); err != nil {
			return false, errors.WithMessagef(err, "waiting for target %s", target)
		}
	}
	return callAccessors(w.Outputs)
}

func callAccessors(tensors []*graph.Tensor) (bool, error) {
	more := true
	for _, t := range tensors {
		ok, err := t.CallAccessor()
		if err != nil {
			return false, err
		}
		more = more && ok
	}
	return more, nil
}

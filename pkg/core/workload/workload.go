// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workload holds the executable form of a finalized graph: the ordered list of tasks
// (a node and the function it was lowered to), the tensors bound to the graph inputs and
// outputs, and the strategy used to execute each task.
package workload

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Task is one node of the graph and the function it was lowered to.
//
// Function is nil for nodes executed inline by ExecuteTask (print nodes).
type Task struct {
	Node     graph.Node
	Function backends.Function
}

// Prepare calls the one-time preparation of the function, if it has one.
func (t *Task) Prepare() error {
	preparer, ok := t.Function.(backends.Preparer)
	if !ok {
		return nil
	}
	if err := preparer.Prepare(); err != nil {
		return errors.WithMessagef(err, "preparing %s", t.Node)
	}
	return nil
}

// TaskExecutor is the strategy used to execute every task of a workload.
type TaskExecutor interface {
	ExecuteTask(task *Task) error
}

// DefaultExecutor executes tasks with ExecuteTask.
type DefaultExecutor struct{}

// ExecuteTask implements TaskExecutor.
func (DefaultExecutor) ExecuteTask(task *Task) error { return ExecuteTask(task) }

// ExecuteTask runs the task's function. Tasks without a function are handled inline:
// print nodes write their input; any other node is a no-op.
func ExecuteTask(task *Task) error {
	if task.Function != nil {
		return task.Function.Run()
	}
	if printNode, ok := task.Node.(*graph.PrintNode); ok {
		return printTensor(printNode)
	}
	return nil
}

// Workload is a finalized graph ready to be executed.
type Workload struct {
	Graph   *graph.Graph
	Context *graph.Context
	Tasks   []Task

	// Inputs and Outputs are the tensors of the graph input and output nodes, in node order.
	Inputs  []*graph.Tensor
	Outputs []*graph.Tensor

	// Executor used by Run. If nil, DefaultExecutor.
	Executor TaskExecutor
}

// New creates an empty workload for g, collecting the tensors of its input and output nodes.
func New(g *graph.Graph, ctx *graph.Context, executor TaskExecutor) *Workload {
	w := &Workload{Graph: g, Context: ctx, Executor: executor}
	for _, nid := range g.Inputs() {
		w.Inputs = append(w.Inputs, g.Node(nid).Output(0))
	}
	for _, nid := range g.Outputs() {
		if t := g.Node(nid).Input(0); t != nil {
			w.Outputs = append(w.Outputs, t)
		}
	}
	return w
}

// AddTask appends a task: tasks run in the order they are added.
func (w *Workload) AddTask(node graph.Node, function backends.Function) {
	w.Tasks = append(w.Tasks, Task{Node: node, Function: function})
}

// NumFunctions returns the number of tasks with a function.
func (w *Workload) NumFunctions() int {
	count := 0
	for i := range w.Tasks {
		if w.Tasks[i].Function != nil {
			count++
		}
	}
	return count
}

// Prepare calls the one-time preparation of all tasks, in order.
func (w *Workload) Prepare() error {
	for i := range w.Tasks {
		if err := w.Tasks[i].Prepare(); err != nil {
			return err
		}
	}
	return nil
}

// Run executes all tasks once, in order, with the workload's executor.
func (w *Workload) Run() error {
	executor := w.Executor
	if executor == nil {
		executor = DefaultExecutor{}
	}
	for i := range w.Tasks {
		task := &w.Tasks[i]
		if klog.V(2).Enabled() {
			klog.Infof("executing %s", task.Node)
		}
		if err := executor.ExecuteTask(task); err != nil {
			return errors.WithMessagef(err, "executing %s", task.Node)
		}
	}
	return nil
}

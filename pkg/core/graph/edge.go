// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import "fmt"

// Edge connects the output slot of a producer node to an input slot of a consumer node,
// and carries the tensor flowing between them.
type Edge struct {
	graph       *Graph
	id          EdgeID
	producer    NodeID
	producerIdx int
	consumer    NodeID
	consumerIdx int
	tensor      TensorID
}

// ID of the edge.
func (e *Edge) ID() EdgeID { return e.id }

// ProducerID returns the id of the node producing the tensor.
func (e *Edge) ProducerID() NodeID { return e.producer }

// ProducerIdx returns the output slot of the producer.
func (e *Edge) ProducerIdx() int { return e.producerIdx }

// ConsumerID returns the id of the consuming node.
func (e *Edge) ConsumerID() NodeID { return e.consumer }

// ConsumerIdx returns the input slot of the consumer.
func (e *Edge) ConsumerIdx() int { return e.consumerIdx }

// TensorID returns the id of the tensor carried by the edge.
func (e *Edge) TensorID() TensorID { return e.tensor }

// Producer returns the producer node, or nil.
func (e *Edge) Producer() Node { return e.graph.Node(e.producer) }

// Consumer returns the consumer node, or nil.
func (e *Edge) Consumer() Node { return e.graph.Node(e.consumer) }

// Tensor returns the tensor carried by the edge, or nil.
func (e *Edge) Tensor() *Tensor { return e.graph.Tensor(e.tensor) }

// Graph returns the owning graph.
func (e *Edge) Graph() *Graph { return e.graph }

// updateBoundTensor rebinds the edge to another tensor, keeping both tensors' bound edges in sync.
func (e *Edge) updateBoundTensor(tid TensorID) {
	if e.tensor == tid {
		if t := e.graph.Tensor(tid); t != nil {
			t.bindEdge(e.id)
		}
		return
	}
	if old := e.graph.Tensor(e.tensor); old != nil {
		old.unbindEdge(e.id)
	}
	e.tensor = tid
	if t := e.graph.Tensor(tid); t != nil {
		t.bindEdge(e.id)
	}
}

func (e *Edge) String() string {
	return fmt.Sprintf("Edge#%d(#%d:%d -> #%d:%d, tensor #%d)", e.id, e.producer, e.producerIdx, e.consumer, e.consumerIdx, e.tensor)
}

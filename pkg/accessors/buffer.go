// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package accessors

import (
	"github.com/gomlx/nngraph/pkg/core/graph"
	"k8s.io/klog/v2"
)

// Buffer copies bytes into (for inputs and constants) or out of (for outputs) a tensor.
type Buffer struct {
	// Data copied into the tensor, or where the contents of the tensor are copied to.
	Data []byte

	input bool

	// Calls counts the number of times the accessor was called.
	Calls int
}

// NewInputBuffer returns an accessor that copies data into the tensor at every call.
func NewInputBuffer(data []byte) *Buffer { return &Buffer{Data: data, input: true} }

// NewOutputBuffer returns an accessor that copies the tensor contents into Data at every call.
func NewOutputBuffer() *Buffer { return &Buffer{} }

// AccessTensor implements graph.TensorAccessor.
func (b *Buffer) AccessTensor(tensor graph.BackendTensor) bool {
	b.Calls++
	data := tensor.Bytes()
	if data == nil {
		klog.Warningf("accessors.Buffer: tensor %s is not mapped or allocated", tensor.Desc())
		return true
	}
	data = data[:min(len(data), tensor.Desc().Shape.Memory())]
	if b.input {
		if len(b.Data) != len(data) {
			klog.Warningf("accessors.Buffer: copying %d bytes into tensor %s of %d bytes", len(b.Data), tensor.Desc(), len(data))
		}
		copy(data, b.Data)
		return true
	}
	if cap(b.Data) < len(data) {
		b.Data = make([]byte, len(data))
	}
	b.Data = b.Data[:len(data)]
	copy(b.Data, data)
	return true
}

// AccessTensorData implements graph.TensorAccessor.
func (b *Buffer) AccessTensorData() bool { return true }

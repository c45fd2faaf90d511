// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package accessors implements common graph.TensorAccessor: they fill inputs and constants
// before an execution and consume outputs after it.
package accessors

import (
	"encoding/binary"
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// Empty does nothing and always reports there is more data.
type Empty struct{}

var _ graph.TensorAccessor = Empty{}

func (Empty) AccessTensor(graph.BackendTensor) bool { return true }
func (Empty) AccessTensorData() bool                { return false }

// Dummy doesn't touch the tensor, and reports there is more data for maxIterations calls,
// after which it reports false once and restarts. Zero maxIterations means it never stops.
//
// It is used to drive manager.RunUntilDone a fixed number of times.
type Dummy struct {
	maxIterations, iteration int
}

// NewDummy creates a Dummy accessor.
func NewDummy(maxIterations int) *Dummy { return &Dummy{maxIterations: maxIterations} }

// AccessTensor implements graph.TensorAccessor.
func (d *Dummy) AccessTensor(graph.BackendTensor) bool {
	more := d.maxIterations == 0 || d.iteration < d.maxIterations
	if d.iteration == d.maxIterations {
		d.iteration = 0
	} else {
		d.iteration++
	}
	return more
}

// AccessTensorData implements graph.TensorAccessor.
func (d *Dummy) AccessTensorData() bool { return false }

// Fill sets every element of the tensor to a value, encoded according to the tensor's
// data type. Quantized 8-bit tensors are filled with the quantized value.
type Fill struct {
	Value float64
}

// AccessTensor implements graph.TensorAccessor.
func (f Fill) AccessTensor(tensor graph.BackendTensor) bool {
	data := tensor.Bytes()
	if data == nil {
		klog.Warningf("accessors.Fill: tensor %s is not mapped or allocated", tensor.Desc())
		return true
	}
	element := Encode(tensor.Desc(), f.Value)
	if len(element) == 0 {
		klog.Warningf("accessors.Fill: data type %s not supported", tensor.Desc().DType())
		return true
	}
	for ii := 0; ii+len(element) <= len(data); ii += len(element) {
		copy(data[ii:], element)
	}
	return true
}

// AccessTensorData implements graph.TensorAccessor.
func (f Fill) AccessTensorData() bool { return true }

// Encode returns the little-endian encoding of value as one element of a tensor with
// descriptor desc, or nil if the data type is not supported.
func Encode(desc graph.TensorDescriptor, value float64) []byte {
	var buf [8]byte
	switch desc.DType() {
	case dtypes.Float64:
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(value))
		return buf[:8]
	case dtypes.Float32:
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(value)))
		return buf[:4]
	case dtypes.Float16:
		binary.LittleEndian.PutUint16(buf[:], float16.Fromfloat32(float32(value)).Bits())
		return buf[:2]
	case dtypes.Uint8:
		return []byte{uint8(quantize(desc.Quantization, value, 0, math.MaxUint8))}
	case dtypes.Int8:
		return []byte{uint8(int8(quantize(desc.Quantization, value, math.MinInt8, math.MaxInt8)))}
	case dtypes.Int16:
		binary.LittleEndian.PutUint16(buf[:], uint16(int16(value)))
		return buf[:2]
	case dtypes.Uint16:
		binary.LittleEndian.PutUint16(buf[:], uint16(value))
		return buf[:2]
	case dtypes.Int32:
		binary.LittleEndian.PutUint32(buf[:], uint32(int32(value)))
		return buf[:4]
	case dtypes.Uint32:
		binary.LittleEndian.PutUint32(buf[:], uint32(value))
		return buf[:4]
	case dtypes.Int64:
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(value)))
		return buf[:8]
	case dtypes.Uint64:
		binary.LittleEndian.PutUint64(buf[:], uint64(value))
		return buf[:8]
	}
	return nil
}

// quantize maps value to round(value/scale)+offset, clamped to [lo, hi]. Without
// quantization information the value is only rounded.
func quantize(q graph.QuantizationInfo, value float64, lo, hi float64) int {
	if !q.Empty() && q.Scale() != 0 {
		value = math.Round(value/float64(q.Scale())) + float64(q.Offset())
	} else {
		value = math.Round(value)
	}
	return int(min(max(value, lo), hi))
}

// Func calls a function with the tensor contents mapped.
type Func func(tensor graph.BackendTensor) bool

func (f Func) AccessTensor(tensor graph.BackendTensor) bool { return f(tensor) }
func (f Func) AccessTensorData() bool                       { return true }

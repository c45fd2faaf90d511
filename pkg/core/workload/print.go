// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workload

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// strided is implemented by backend tensors that are views with element strides.
type strided interface {
	Strides() []int
}

// printTensor writes the values of the input of node to its writer, mapping it for the
// duration of the call.
func printTensor(node *graph.PrintNode) error {
	input := node.Input(0)
	if input == nil || input.Handle() == nil {
		return errors.Errorf("%s: input tensor not configured", node)
	}
	handle := input.Handle()
	if err := handle.Map(true); err != nil {
		return errors.WithMessagef(err, "%s: mapping input", node)
	}
	defer handle.Unmap()

	tensor := handle.Tensor()
	if filter := node.Filter(); filter != nil {
		tensor = filter(tensor)
	}
	name := node.Name()
	if name == "" {
		name = node.String()
	}
	if _, err := fmt.Fprintf(node.Writer(), "%s: %s\n", name, tensor.Desc()); err != nil {
		return err
	}
	return WriteValues(node.Writer(), tensor)
}

// WriteValues writes the elements of tensor, one line per row of its innermost axis.
// Quantized tensors are written with their raw (integer) values.
func WriteValues(w io.Writer, tensor graph.BackendTensor) error {
	desc := tensor.Desc()
	shape := desc.Shape
	data := tensor.Bytes()
	if data == nil {
		return errors.Errorf("tensor %s not mapped or not allocated", desc)
	}
	strides := shape.Strides()
	if s, ok := tensor.(strided); ok && len(s.Strides()) == shape.Rank() {
		strides = s.Strides()
	}
	elementSize := int(shape.DType.Size())
	rowLen := 1
	if shape.Rank() > 0 {
		rowLen = shape.Dim(-1)
	}
	numRows := 0
	if rowLen > 0 {
		numRows = shape.Size() / rowLen
	}
	coords := make([]int, shape.Rank())
	var sb strings.Builder
	for range numRows {
		sb.Reset()
		for col := range rowLen {
			if shape.Rank() > 0 {
				coords[shape.Rank()-1] = col
			}
			offset := 0
			for axis, c := range coords {
				offset += c * strides[axis]
			}
			pos := offset * elementSize
			if pos+elementSize > len(data) {
				return errors.Errorf("tensor %s: element at %v out of the mapped memory", desc, coords)
			}
			if col > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(formatElement(shape.DType, data[pos:pos+elementSize]))
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
		// Advance the outer coordinates.
		for axis := shape.Rank() - 2; axis >= 0; axis-- {
			coords[axis]++
			if coords[axis] < shape.Dim(axis) {
				break
			}
			coords[axis] = 0
		}
	}
	return nil
}

func formatElement(dtype dtypes.DType, b []byte) string {
	switch dtype {
	case dtypes.Float32:
		return fmt.Sprintf("%g", math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case dtypes.Float64:
		return fmt.Sprintf("%g", math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case dtypes.Float16:
		return fmt.Sprintf("%g", float16.Frombits(binary.LittleEndian.Uint16(b)).Float32())
	case dtypes.Uint8:
		return fmt.Sprintf("%d", b[0])
	case dtypes.Int8:
		return fmt.Sprintf("%d", int8(b[0]))
	case dtypes.Int16:
		return fmt.Sprintf("%d", int16(binary.LittleEndian.Uint16(b)))
	case dtypes.Uint16:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint16(b))
	case dtypes.Int32:
		return fmt.Sprintf("%d", int32(binary.LittleEndian.Uint32(b)))
	case dtypes.Uint32:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint32(b))
	case dtypes.Int64:
		return fmt.Sprintf("%d", int64(binary.LittleEndian.Uint64(b)))
	case dtypes.Uint64:
		return fmt.Sprintf("%d", binary.LittleEndian.Uint64(b))
	default:
		return "?"
	}
}

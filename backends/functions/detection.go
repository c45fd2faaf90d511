// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package functions

import (
	"github.com/gomlx/nngraph/backends"
	"github.com/gomlx/nngraph/pkg/core/graph"
	"github.com/pkg/errors"
)

// PriorBox generates the SSD prior boxes of a feature map for an image.
type PriorBox[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the prior boxes of featureMap (its spatial size) for image.
func (f *PriorBox[T]) Configure(d backends.Dispatcher, featureMap, image, output T, info graph.PriorBoxInfo) error {
	const op = "PriorBox"
	if err := requirePresent(op, []string{"feature map", "image", "output"}, featureMap, image, output); err != nil {
		return err
	}
	want, err := graph.PriorBoxDescriptor(featureMap.Desc(), info)
	if err != nil {
		return err
	}
	if !want.Shape.EqualDimensions(output.Desc().Shape) {
		return errors.Errorf("%s: output %s should be %s", op, output.Desc().Shape, want.Shape)
	}
	return f.setup(d, op, graph.NodeTypePriorBox, info, []T{featureMap, image}, []T{output})
}

// DetectionOutput decodes SSD boxes and selects them with non-maximum suppression.
// Its kernel is only implemented for host memory.
type DetectionOutput[T NativeTensor] struct {
	kernelFunction[T]
}

// Configure the detection output.
func (f *DetectionOutput[T]) Configure(d backends.Dispatcher, location, confidence, priors, output T, info graph.DetectionOutputInfo) error {
	const op = "DetectionOutput"
	if err := requirePresent(op, []string{"location", "confidence", "priors", "output"}, location, confidence, priors, output); err != nil {
		return err
	}
	if info.NumClasses <= 0 {
		return errors.Errorf("%s: number of classes must be > 0, got %d", op, info.NumClasses)
	}
	want, err := graph.DetectionOutputDescriptor(location.Desc(), info)
	if err != nil {
		return err
	}
	if !want.Shape.EqualDimensions(output.Desc().Shape) {
		return errors.Errorf("%s: output %s should be %s", op, output.Desc().Shape, want.Shape)
	}
	return f.setup(d, op, graph.NodeTypeDetectionOutput, info, []T{location, confidence, priors}, []T{output})
}

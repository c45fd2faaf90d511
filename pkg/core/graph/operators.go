// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import "fmt"

// ActivationFunction enumerates the supported activation functions.
type ActivationFunction int

//go:generate go tool enumer -type=ActivationFunction -trimprefix=Activation -output=gen_activationfunction_enumer.go operators.go

const (
	ActivationIdentity ActivationFunction = iota
	ActivationLogistic
	ActivationTanh
	ActivationReLU
	ActivationBoundedReLU
	ActivationLUBoundedReLU
	ActivationLeakyReLU
	ActivationSoftReLU
	ActivationAbs
	ActivationSquare
	ActivationSqrt
	ActivationLinear
	ActivationELU
	ActivationHardSwish
	ActivationSwish
	ActivationGELU
)

// ActivationInfo describes an activation: the function and its optional parameters A and B
// (e.g. the upper and lower bounds of LUBoundedReLU, or the slope of LeakyReLU).
type ActivationInfo struct {
	Function ActivationFunction
	A, B     float32

	// Enabled is false for "no activation", used by nodes that can carry a fused activation.
	Enabled bool
}

// MakeActivation returns an enabled ActivationInfo.
func MakeActivation(fn ActivationFunction, a, b float32) ActivationInfo {
	return ActivationInfo{Function: fn, A: a, B: b, Enabled: true}
}

func (a ActivationInfo) String() string {
	if !a.Enabled {
		return "none"
	}
	return fmt.Sprintf("%s(a=%g, b=%g)", a.Function, a.A, a.B)
}

// DimensionRoundingType selects how a non-integer output size is rounded in convolution and pooling.
type DimensionRoundingType int

//go:generate go tool enumer -type=DimensionRoundingType -trimprefix=Round -output=gen_dimensionroundingtype_enumer.go operators.go

const (
	RoundFloor DimensionRoundingType = iota
	RoundCeil
)

// PadStrideInfo describes the strides and padding of a sliding-window operator.
//
// A zero stride means 1, so the zero value is a unit stride without padding.
type PadStrideInfo struct {
	StrideX, StrideY                     int
	PadLeft, PadRight, PadTop, PadBottom int
	Rounding                             DimensionRoundingType
}

// MakePadStride returns a PadStrideInfo with symmetric padding and floor rounding.
func MakePadStride(strideX, strideY, padX, padY int) PadStrideInfo {
	return PadStrideInfo{StrideX: strideX, StrideY: strideY, PadLeft: padX, PadRight: padX, PadTop: padY, PadBottom: padY}
}

// Strides returns the horizontal and vertical strides, with unset (zero) strides taken as 1.
func (p PadStrideInfo) Strides() (x, y int) {
	x, y = p.StrideX, p.StrideY
	if x == 0 {
		x = 1
	}
	if y == 0 {
		y = 1
	}
	return
}

// HasPadding returns whether any side is padded.
func (p PadStrideInfo) HasPadding() bool {
	return p.PadLeft != 0 || p.PadRight != 0 || p.PadTop != 0 || p.PadBottom != 0
}

func (p PadStrideInfo) String() string {
	strideX, strideY := p.Strides()
	return fmt.Sprintf("stride=%dx%d pad=[%d,%d,%d,%d]", strideX, strideY, p.PadLeft, p.PadRight, p.PadTop, p.PadBottom)
}

// PoolingType enumerates the pooling reductions.
type PoolingType int

//go:generate go tool enumer -type=PoolingType -trimprefix=Pooling -output=gen_poolingtype_enumer.go operators.go

const (
	PoolingMax PoolingType = iota
	PoolingAvg
	PoolingL2
)

// PoolingInfo describes a pooling operation. Global pooling reduces the whole spatial plane to 1x1.
type PoolingInfo struct {
	Type                  PoolingType
	PoolWidth, PoolHeight int
	PadStride             PadStrideInfo
	Global                bool
	ExcludePadding        bool
}

// EltwiseOperation enumerates the binary element-wise operations.
type EltwiseOperation int

//go:generate go tool enumer -type=EltwiseOperation -trimprefix=Eltwise -output=gen_eltwiseoperation_enumer.go operators.go

const (
	EltwiseAdd EltwiseOperation = iota
	EltwiseSub
	EltwiseMul
	EltwiseMax
	EltwiseMin
	EltwiseSquaredDiff
)

// ConvolutionMethod selects the convolution algorithm used by a backend.
type ConvolutionMethod int

//go:generate go tool enumer -type=ConvolutionMethod -trimprefix=ConvolutionMethod -output=gen_convolutionmethod_enumer.go operators.go

const (
	ConvolutionMethodDefault ConvolutionMethod = iota
	ConvolutionMethodGEMM
	ConvolutionMethodDirect
	ConvolutionMethodWinograd
)

// FastMathHint allows backends to pick faster, less precise algorithms.
type FastMathHint bool

const (
	FastMathDisabled FastMathHint = false
	FastMathEnabled  FastMathHint = true
)

// PriorBoxInfo holds the parameters of a PriorBox (SSD anchors) node.
type PriorBoxInfo struct {
	MinSizes, MaxSizes  []float32
	AspectRatios        []float32
	Variances           []float32
	Flip, Clip          bool
	Offset              float32
	StepX, StepY        float32
	ImgWidth, ImgHeight int
}

// NumPriors returns the number of priors generated per spatial location.
//
// Aspect ratio 1 is always present. Other ratios contribute once, or twice if Flip is set.
// Each max size adds one extra prior.
func (p PriorBoxInfo) NumPriors() int {
	ratios := 1
	for _, ar := range p.AspectRatios {
		if ar == 1 {
			continue
		}
		ratios++
		if p.Flip {
			ratios++
		}
	}
	return len(p.MinSizes)*ratios + len(p.MaxSizes)
}

// DetectionOutputInfo holds the parameters of a DetectionOutput (SSD post-processing) node.
type DetectionOutputInfo struct {
	NumClasses          int
	ShareLocation       bool
	BackgroundLabelID   int
	NMSThreshold        float32
	ConfidenceThreshold float32
	TopK                int
	KeepTopK            int
}

// DetectionOutputValuesPerBox is the number of values produced per kept detection:
// image id, label, confidence, xmin, ymin, xmax, ymax.
const DetectionOutputValuesPerBox = 7

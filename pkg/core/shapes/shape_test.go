// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())
	require.False(t, Shape{}.Ok())

	s := Make(dtypes.Float32, 2, 3, 4)
	require.True(t, s.Ok())
	assert.Equal(t, 3, s.Rank())
	assert.Equal(t, 24, s.Size())
	assert.Equal(t, 96, s.Memory())
	assert.Equal(t, 4, s.Dim(-1))
	assert.Equal(t, []int{12, 4, 1}, s.Strides())
	assert.Equal(t, "(Float32)[2 3 4]", s.String())

	s2 := s.WithDim(1, 5)
	assert.Equal(t, []int{2, 3, 4}, s.Dimensions)
	assert.Equal(t, []int{2, 5, 4}, s2.Dimensions)
	assert.True(t, s.EqualDimensions(s.WithDType(dtypes.Uint8)))
	assert.False(t, s.Equal(s.WithDType(dtypes.Uint8)))

	require.Panics(t, func() { _ = Make(dtypes.Float32, 2, 0) })
	require.Panics(t, func() { _ = s.Dim(3) })
}

func TestDataLayout(t *testing.T) {
	nchw := MakeWithLayout(dtypes.Float32, LayoutNCHW, 1, 3, 224, 112)
	nhwc := MakeWithLayout(dtypes.Float32, LayoutNHWC, 1, 3, 224, 112)
	assert.Equal(t, []int{1, 3, 224, 112}, nchw.Dimensions)
	assert.Equal(t, []int{1, 224, 112, 3}, nhwc.Dimensions)
	for _, layout := range []DataLayout{LayoutNCHW, LayoutNHWC} {
		s := MakeWithLayout(dtypes.Int8, layout, 2, 8, 5, 7)
		assert.Equal(t, 2, s.LayoutDim(layout, DimBatch))
		assert.Equal(t, 8, s.LayoutDim(layout, DimChannel))
		assert.Equal(t, 5, s.LayoutDim(layout, DimHeight))
		assert.Equal(t, 7, s.LayoutDim(layout, DimWidth))
		assert.Equal(t, 16, s.WithLayoutDim(layout, DimChannel, 16).LayoutDim(layout, DimChannel))
	}
	require.Panics(t, func() { DimensionIndex(LayoutUnknown, DimChannel) })

	layout, err := DataLayoutString("nhwc")
	require.NoError(t, err)
	assert.Equal(t, LayoutNHWC, layout)
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Make[int](10)
	assert.Len(t, s, 0)

	s.Insert(3, 7)
	assert.Len(t, s, 2)
	assert.True(t, s.Has(3))
	assert.True(t, s.Has(7))
	assert.False(t, s.Has(5))

	s2 := MakeWith(5, 7)
	s3 := s.Sub(s2)
	assert.Len(t, s3, 1)
	assert.True(t, s3.Has(3))

	s.Remove(7, 11)
	assert.True(t, s.Equal(s3))
	assert.False(t, s.Equal(s2))
}

func TestSortedAndClone(t *testing.T) {
	s := MakeWith(9, -1, 4)
	c := s.Clone()
	c.Insert(2)
	assert.Equal(t, []int{-1, 4, 9}, Sorted(s))
	assert.Equal(t, []int{-1, 2, 4, 9}, Sorted(c))
	assert.Empty(t, Sorted(Make[int]()))
}

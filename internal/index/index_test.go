// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package index_test

import (
	"math"
	"testing"

	"github.com/sigil-dev/recall/internal/index"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToFlat(t *testing.T) {
	idx, err := index.New(index.Config{Dimension: 3})
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	_, ok := idx.(*index.Flat)
	assert.True(t, ok, "empty backend should build a flat index")
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := index.New(index.Config{Backend: "faiss-gpu", Dimension: 3})
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeIndexBackendUnsupported))
	assert.Equal(t, "faiss-gpu", recallerr.FieldsOf(err)["backend"])
}

func TestNew_InvalidDimension(t *testing.T) {
	for _, dim := range []int{0, -4} {
		_, err := index.New(index.Config{Dimension: dim})
		require.Error(t, err)
		assert.True(t, recallerr.IsInvalidInput(err))
	}
}

func TestBackends_IncludesFlat(t *testing.T) {
	assert.Contains(t, index.Backends(), "flat")
}

func TestRegisterBackend_CustomFactory(t *testing.T) {
	index.RegisterBackend("test-custom", func(cfg index.Config) (index.Index, error) {
		return index.NewFlat(cfg.Dimension, false), nil
	})

	idx, err := index.New(index.Config{Backend: "test-custom", Dimension: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestL2(t *testing.T) {
	assert.InDelta(t, 5.0, index.L2([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.Equal(t, 0.0, index.L2([]float32{1, 2, 3}, []float32{1, 2, 3}))
}

func TestPad(t *testing.T) {
	got := index.Pad([]index.Neighbor{{Distance: 1, Position: 0}}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, index.NoMatch, got[1].Position)
	assert.True(t, math.IsInf(got[2].Distance, 1))
}

func TestCheckVector(t *testing.T) {
	assert.NoError(t, index.CheckVector([]float32{1, 2}, 2))

	err := index.CheckVector([]float32{1}, 2)
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeIndexVectorInvalid))
}

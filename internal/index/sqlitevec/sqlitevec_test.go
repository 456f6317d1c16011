// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlitevec_test

import (
	"context"
	"testing"

	"github.com/sigil-dev/recall/internal/index"
	"github.com/sigil-dev/recall/internal/index/sqlitevec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNewIndex(t *testing.T, dim int) *sqlitevec.Index {
	t.Helper()
	idx, err := sqlitevec.New(dim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndex_InsertAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := mustNewIndex(t, 4)

	require.NoError(t, idx.Insert(ctx, []float32{1.0, 0.0, 0.0, 0.0}))
	require.NoError(t, idx.Insert(ctx, []float32{0.0, 1.0, 0.0, 0.0}))
	require.NoError(t, idx.Insert(ctx, []float32{0.9, 0.1, 0.0, 0.0}))

	got, err := idx.Search(ctx, []float32{1.0, 0.0, 0.0, 0.0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 0, got[0].Position, "exact match should be first")
	assert.InDelta(t, 0.0, got[0].Distance, 1e-6)
	assert.Equal(t, 2, got[1].Position)
	assert.Less(t, got[0].Distance, got[1].Distance)
}

func TestIndex_DistanceIsL2(t *testing.T) {
	ctx := context.Background()
	idx := mustNewIndex(t, 2)
	require.NoError(t, idx.Insert(ctx, []float32{3, 4}))

	got, err := idx.Search(ctx, []float32{0, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got[0].Distance, 1e-5)
}

func TestIndex_PadsWhenFewerThanK(t *testing.T) {
	ctx := context.Background()
	idx := mustNewIndex(t, 2)
	require.NoError(t, idx.Insert(ctx, []float32{1, 1}))

	got, err := idx.Search(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, index.NoMatch, got[2].Position)
}

func TestIndex_EmptySearch(t *testing.T) {
	idx := mustNewIndex(t, 2)

	got, err := idx.Search(context.Background(), []float32{1, 1}, 2)
	require.NoError(t, err)
	for _, n := range got {
		assert.Equal(t, index.NoMatch, n.Position)
	}
}

func TestIndex_ResetRestartsPositions(t *testing.T) {
	ctx := context.Background()
	idx := mustNewIndex(t, 2)
	require.NoError(t, idx.Insert(ctx, []float32{1, 1}))
	require.NoError(t, idx.Insert(ctx, []float32{2, 2}))
	require.NoError(t, idx.Reset(ctx))
	assert.Equal(t, 0, idx.Len())

	require.NoError(t, idx.Insert(ctx, []float32{5, 5}))
	got, err := idx.Search(ctx, []float32{5, 5}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got[0].Position)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx := mustNewIndex(t, 3)
	assert.Error(t, idx.Insert(context.Background(), []float32{1}))
	assert.Equal(t, 0, idx.Len())
}

func TestIndex_RegisteredBackend(t *testing.T) {
	idx, err := index.New(index.Config{Backend: "sqlitevec", Dimension: 2})
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	assert.Equal(t, 0, idx.Len())
}

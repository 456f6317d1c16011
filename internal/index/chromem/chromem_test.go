// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chromem_test

import (
	"context"
	"testing"

	"github.com/sigil-dev/recall/internal/index"
	"github.com/sigil-dev/recall/internal/index/chromem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNewIndex(t *testing.T, dim int) *chromem.Index {
	t.Helper()
	idx, err := chromem.New(dim)
	require.NoError(t, err)
	return idx
}

func TestIndex_UnitVectors(t *testing.T) {
	ctx := context.Background()
	idx := mustNewIndex(t, 2)

	require.NoError(t, idx.Insert(ctx, []float32{1, 0}))
	require.NoError(t, idx.Insert(ctx, []float32{0, 1}))
	require.NoError(t, idx.Insert(ctx, []float32{0.6, 0.8}))

	got, err := idx.Search(ctx, []float32{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Position)
	assert.InDelta(t, 0.0, got[0].Distance, 1e-6)
	assert.Equal(t, 2, got[1].Position)
	assert.InDelta(t, 0.6324555, got[1].Distance, 1e-5)
}

func TestIndex_KLargerThanCount(t *testing.T) {
	ctx := context.Background()
	idx := mustNewIndex(t, 2)
	require.NoError(t, idx.Insert(ctx, []float32{1, 0}))

	got, err := idx.Search(ctx, []float32{1, 0}, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, index.NoMatch, got[3].Position)
}

func TestIndex_EmptyAndReset(t *testing.T) {
	ctx := context.Background()
	idx := mustNewIndex(t, 2)

	got, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, index.NoMatch, got[0].Position)

	require.NoError(t, idx.Insert(ctx, []float32{1, 0}))
	require.NoError(t, idx.Reset(ctx))
	assert.Equal(t, 0, idx.Len())

	require.NoError(t, idx.Insert(ctx, []float32{0, 1}))
	got, err = idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got[0].Position)
}

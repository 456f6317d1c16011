// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package chromem implements an index backend on a chromem-go collection.
package chromem

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/sigil-dev/recall/internal/index"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

const collectionName = "recall"

func init() {
	index.RegisterBackend("chromem", func(cfg index.Config) (index.Index, error) {
		// chromem already scans documents on all CPUs.
		return New(cfg.Dimension)
	})
}

// Compile-time interface check.
var _ index.Index = (*Index)(nil)

// Index ranks candidates by chromem's cosine similarity and reports the exact
// L2 distance to the original vector. For unit-length embeddings both orders
// agree.
type Index struct {
	db  *chromem.DB
	col *chromem.Collection
	dim int
	// chromem normalizes on insert; originals are kept for L2 distances.
	vectors [][]float32
}

// New creates an in-memory chromem database with a single collection.
func New(dim int) (*Index, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "creating chromem collection")
	}
	return &Index{db: db, col: col, dim: dim}, nil
}

// noEmbed is installed so chromem never reaches for its default remote
// embedder; every document arrives with its embedding.
func noEmbed(_ context.Context, _ string) ([]float32, error) {
	return nil, recallerr.New(recallerr.CodeIndexBackendFailure, "chromem index does not embed text")
}

func (x *Index) Insert(ctx context.Context, vector []float32) error {
	if err := index.CheckVector(vector, x.dim); err != nil {
		return err
	}

	pos := len(x.vectors)
	stored := append([]float32(nil), vector...)
	doc := chromem.Document{
		ID:        strconv.Itoa(pos),
		Embedding: append([]float32(nil), vector...),
	}
	if err := x.col.AddDocument(ctx, doc); err != nil {
		return recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "adding document %d", pos)
	}
	x.vectors = append(x.vectors, stored)
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]index.Neighbor, error) {
	if err := index.CheckVector(vector, x.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	n := min(k, x.col.Count())
	if n == 0 {
		return index.Pad(nil, k), nil
	}

	results, err := x.col.QueryEmbedding(ctx, append([]float32(nil), vector...), n, nil, nil)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "querying chromem collection")
	}

	out := make([]index.Neighbor, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil || pos < 0 || pos >= len(x.vectors) {
			slog.Warn("chromem returned unknown document", "id", r.ID)
			continue
		}
		out = append(out, index.Neighbor{Distance: index.L2(vector, x.vectors[pos]), Position: pos})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })

	return index.Pad(out, k), nil
}

func (x *Index) Reset(_ context.Context) error {
	if err := x.db.DeleteCollection(collectionName); err != nil {
		return recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "deleting chromem collection")
	}
	col, err := x.db.CreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "recreating chromem collection")
	}
	x.col = col
	x.vectors = nil
	return nil
}

func (x *Index) Len() int { return len(x.vectors) }

func (x *Index) Close() error { return nil }

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package hnsw implements an approximate index backend on coder/hnsw.
package hnsw

import (
	"context"
	"log/slog"
	"sort"

	"github.com/coder/hnsw"

	"github.com/sigil-dev/recall/internal/index"
)

func init() {
	index.RegisterBackend("hnsw", func(cfg index.Config) (index.Index, error) {
		if cfg.Accelerate {
			slog.Debug("hnsw index has no accelerated path, ignoring hint")
		}
		return New(cfg.Dimension), nil
	})
}

const (
	// maxNeighbors is the per-node edge budget (M).
	maxNeighbors = 32
	// searchWidth is the minimum candidate set explored per search (ef).
	// Graphs no larger than this are searched exhaustively.
	searchWidth = 256
)

// Compile-time interface check.
var _ index.Index = (*Index)(nil)

// Index is a hierarchical navigable small world graph keyed by position.
// Recall is approximate: a search may miss the true nearest neighbour on
// large graphs.
type Index struct {
	graph *hnsw.Graph[int]
	dim   int
	ef    int
}

// New returns an empty graph using Euclidean distance.
func New(dim int) *Index {
	return &Index{graph: newGraph(), dim: dim, ef: searchWidth}
}

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.EuclideanDistance
	g.M = maxNeighbors
	g.EfSearch = searchWidth
	return g
}

func (x *Index) Insert(_ context.Context, vector []float32) error {
	if err := index.CheckVector(vector, x.dim); err != nil {
		return err
	}
	pos := x.graph.Len()
	x.graph.Add(hnsw.MakeNode(pos, append([]float32(nil), vector...)))
	return nil
}

func (x *Index) Search(_ context.Context, vector []float32, k int) ([]index.Neighbor, error) {
	if err := index.CheckVector(vector, x.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	if x.graph.Len() == 0 {
		return index.Pad(nil, k), nil
	}

	// The layer-0 walk stops once its result set is full and the best
	// distance stops improving, so collect ef candidates and rerank them.
	nodes := x.graph.Search(vector, max(x.ef, k))
	out := make([]index.Neighbor, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, index.Neighbor{
			Distance: index.L2(vector, node.Value),
			Position: node.Key,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Position < out[j].Position
	})
	if len(out) > k {
		out = out[:k]
	}

	return index.Pad(out, k), nil
}

func (x *Index) Reset(_ context.Context) error {
	x.graph = newGraph()
	return nil
}

func (x *Index) Len() int { return x.graph.Len() }

func (x *Index) Close() error { return nil }

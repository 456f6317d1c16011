// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package index

import (
	"context"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// minShardSize keeps tiny indexes on the sequential path.
const minShardSize = 1024

func init() {
	RegisterBackend("flat", func(cfg Config) (Index, error) {
		return NewFlat(cfg.Dimension, cfg.Accelerate), nil
	})
}

// Compile-time interface check.
var _ Index = (*Flat)(nil)

// Flat is an exact brute-force L2 index. With parallel enabled, searches are
// sharded across GOMAXPROCS goroutines.
type Flat struct {
	dim      int
	parallel bool
	vectors  [][]float32
}

// NewFlat returns an empty Flat index for vectors of length dim.
func NewFlat(dim int, parallel bool) *Flat {
	return &Flat{dim: dim, parallel: parallel}
}

func (f *Flat) Insert(_ context.Context, vector []float32) error {
	if err := CheckVector(vector, f.dim); err != nil {
		return err
	}
	f.vectors = append(f.vectors, append([]float32(nil), vector...))
	return nil
}

// Search always returns exactly k slots; unfilled slots carry NoMatch.
func (f *Flat) Search(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	if err := CheckVector(vector, f.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	shards := 1
	if f.parallel {
		shards = runtime.GOMAXPROCS(0)
		if maxShards := len(f.vectors) / minShardSize; maxShards < shards {
			shards = maxShards
		}
		if shards < 1 {
			shards = 1
		}
	}

	var best []Neighbor
	if shards == 1 {
		best = f.scan(vector, 0, len(f.vectors), k)
	} else {
		slog.Debug("flat index parallel search", "shards", shards, "vectors", len(f.vectors))

		partial := make([][]Neighbor, shards)
		size := (len(f.vectors) + shards - 1) / shards

		g, gctx := errgroup.WithContext(ctx)
		for s := 0; s < shards; s++ {
			lo := s * size
			hi := min(lo+size, len(f.vectors))
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				partial[s] = f.scan(vector, lo, hi, k)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, p := range partial {
			best = append(best, p...)
		}
		sortNeighbors(best)
		if len(best) > k {
			best = best[:k]
		}
	}

	return Pad(best, k), nil
}

func (f *Flat) scan(vector []float32, lo, hi, k int) []Neighbor {
	out := make([]Neighbor, 0, hi-lo)
	for pos := lo; pos < hi; pos++ {
		out = append(out, Neighbor{Distance: L2(vector, f.vectors[pos]), Position: pos})
	}
	sortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func (f *Flat) Reset(_ context.Context) error {
	f.vectors = nil
	return nil
}

func (f *Flat) Len() int { return len(f.vectors) }

func (f *Flat) Close() error { return nil }

// sortNeighbors orders by distance, then by position so that equal distances
// resolve the same way on every search path.
func sortNeighbors(ns []Neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].Position < ns[j].Position
	})
}

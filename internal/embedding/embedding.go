// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package embedding defines the embedding provider contract and the
// provider-independent embedders: a deterministic offline hash embedder and a
// caching decorator.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-large"

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	// Embed returns the embedding of text. Provider failures are returned
	// as errors; implementations do not retry.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the provider and model, e.g. "openai/text-embedding-3-large".
	Name() string
}

// Compile-time interface check.
var _ Embedder = (*Hash)(nil)

// Hash generates deterministic unit-length embeddings from an FNV-64a hash of
// the text. Identical text always maps to the identical vector; it carries
// no semantic similarity between different texts.
type Hash struct {
	dim int
}

// NewHash returns a Hash embedder producing vectors of length dim.
func NewHash(dim int) *Hash {
	return &Hash{dim: dim}
}

func (h *Hash) Name() string { return "hash" }

func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := fnv.New64a()
	_, _ = f.Write([]byte(text))
	seed := f.Sum64()

	vec := make([]float32, h.dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return Normalize(vec), nil
}

// Normalize returns vec scaled to unit length. A zero vector is returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// Float32s converts a float64 vector as returned by some SDKs.
func Float32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

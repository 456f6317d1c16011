// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package index defines the similarity index contract used by the memory
// store and the registry of index backends.
package index

import (
	"context"
	"math"
	"sort"
	"sync"

	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// NoMatch is the position reported for an empty neighbour slot.
const NoMatch = -1

// DefaultBackend is used when Config.Backend is empty.
const DefaultBackend = "flat"

// Neighbor is one search hit. Distance is the Euclidean (L2) distance between
// the query and the stored vector; Position is the insertion position of the
// stored vector, or NoMatch.
type Neighbor struct {
	Distance float64
	Position int
}

// Index stores fixed-length vectors addressed by insertion position.
//
// Implementations need not be safe for concurrent writers. Concurrent
// Search calls must be safe when no writer is active.
type Index interface {
	// Insert appends vector at position Len().
	Insert(ctx context.Context, vector []float32) error

	// Search returns up to k neighbours ordered by ascending distance.
	// Slots the backend cannot fill may be reported with Position NoMatch.
	Search(ctx context.Context, vector []float32, k int) ([]Neighbor, error)

	// Reset drops every stored vector.
	Reset(ctx context.Context) error

	// Len returns the number of stored vectors.
	Len() int

	Close() error
}

// Config selects and parameterises an index backend.
type Config struct {
	Backend   string
	Dimension int
	// Accelerate asks the backend for its parallel search path if it has one.
	// It never changes results.
	Accelerate bool
}

// Factory builds an index for a validated Config.
type Factory func(cfg Config) (Index, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory under name. Backend packages call this
// from init().
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the index named by cfg.Backend.
func New(cfg Config) (Index, error) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if cfg.Dimension <= 0 {
		return nil, recallerr.Errorf(recallerr.CodeIndexConfigInvalid,
			"index: dimension must be greater than 0, got %d", cfg.Dimension)
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, recallerr.New(recallerr.CodeIndexBackendUnsupported,
			"unsupported index backend: "+cfg.Backend,
			recallerr.FieldBackend(cfg.Backend),
		)
	}

	return f(cfg)
}

// CheckVector reports an invalid-input error when vector does not have dim
// components.
func CheckVector(vector []float32, dim int) error {
	if len(vector) != dim {
		return recallerr.Errorf(recallerr.CodeIndexVectorInvalid,
			"vector has %d dimensions, index expects %d", len(vector), dim)
	}
	return nil
}

// L2 returns the Euclidean distance between a and b, which must have equal
// length.
func L2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Pad extends neighbours to k slots with NoMatch entries.
func Pad(neighbors []Neighbor, k int) []Neighbor {
	for len(neighbors) < k {
		neighbors = append(neighbors, Neighbor{Distance: math.Inf(1), Position: NoMatch})
	}
	return neighbors
}

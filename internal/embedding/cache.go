// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"context"

	"github.com/dgraph-io/ristretto"

	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// DefaultCacheSize is the number of embeddings a Cached embedder keeps when
// no size is configured.
const DefaultCacheSize = 10_000

// Compile-time interface check.
var _ Embedder = (*Cached)(nil)

// Cached memoizes successful embeddings of an inner Embedder. Failed calls
// are never cached, so a transient provider error is retried by the next
// caller.
type Cached struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCached wraps inner with a cache holding up to size embeddings.
func NewCached(inner Embedder, size int64) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
		// Cost counts entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEmbeddingRequestInvalid, "creating embedding cache")
	}

	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.inner.Name() + "\x00" + text
	if v, ok := c.cache.Get(key); ok {
		return append([]float32(nil), v.([]float32)...), nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, append([]float32(nil), vec...), 1)
	// Make the entry visible to the next Get.
	c.cache.Wait()
	return vec, nil
}

// Close stops the cache's background goroutines.
func (c *Cached) Close() {
	c.cache.Close()
}

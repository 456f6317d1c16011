// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package ollama implements embedding.Embedder against a local Ollama server.
package ollama

import (
	"context"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/sigil-dev/recall/internal/embedding"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "nomic-embed-text"
)

type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// Compile-time interface check.
var _ embedding.Embedder = (*Embedder)(nil)

type Embedder struct {
	client *ollama.Client
	model  string
}

func New(cfg Config) (*Embedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEmbeddingRequestInvalid, "ollama: invalid host %q", cfg.Host)
	}

	client := ollama.NewClient(u, &http.Client{Timeout: cfg.Timeout})
	return &Embedder{client: client, model: cfg.Model}, nil
}

func (e *Embedder) Name() string { return "ollama/" + e.model }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeEmbeddingUpstreamFailure, "ollama: embedding text", recallerr.FieldProvider("ollama"))
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, recallerr.New(recallerr.CodeEmbeddingResponseMalformed, "ollama: response contained no embedding", recallerr.FieldProvider("ollama"))
	}
	return res.Embeddings[0], nil
}

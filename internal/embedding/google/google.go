// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package google implements embedding.Embedder with the Gemini API.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/sigil-dev/recall/internal/embedding"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// DefaultModel is the Gemini embedding model used when none is configured.
const DefaultModel = "gemini-embedding-001"

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// Compile-time interface check.
var _ embedding.Embedder = (*Embedder)(nil)

type Embedder struct {
	client *genai.Client
	config Config
}

func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, recallerr.New(recallerr.CodeEmbeddingRequestInvalid, "google: missing api_key in config", recallerr.FieldProvider("google"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEmbeddingUpstreamFailure, "google: creating client")
	}

	return &Embedder{client: client, config: cfg}, nil
}

func (e *Embedder) Name() string { return "google/" + e.config.Model }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var embedCfg *genai.EmbedContentConfig
	if e.config.Dimensions > 0 {
		dims := int32(e.config.Dimensions)
		embedCfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := e.client.Models.EmbedContent(ctx, e.config.Model, contents, embedCfg)
	if err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeEmbeddingUpstreamFailure, "google: embedding content", recallerr.FieldProvider("google"))
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, recallerr.New(recallerr.CodeEmbeddingResponseMalformed, "google: response contained no embedding", recallerr.FieldProvider("google"))
	}

	return resp.Embeddings[0].Values, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package openai implements embedding.Embedder with the OpenAI embeddings API.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/sigil-dev/recall/internal/embedding"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// Config holds OpenAI embedding configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
	Model   string
	// Dimensions requests shortened embeddings; zero keeps the model default.
	Dimensions int
}

// Compile-time interface check.
var _ embedding.Embedder = (*Embedder)(nil)

// Embedder calls the OpenAI embeddings endpoint.
type Embedder struct {
	client openaisdk.Client
	config Config
}

// New creates an OpenAI embedder. Returns an error if the API key is missing.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, recallerr.New(recallerr.CodeEmbeddingRequestInvalid, "openai: missing api_key in config",
			recallerr.FieldProvider("openai"))
	}
	if cfg.Model == "" {
		cfg.Model = embedding.DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Embedder{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

func (e *Embedder) Name() string { return "openai/" + e.config.Model }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		Model: openaisdk.EmbeddingModel(e.config.Model),
	}
	if e.config.Dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(e.config.Dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeEmbeddingUpstreamFailure, "openai: creating embedding",
			recallerr.FieldProvider("openai"))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, recallerr.New(recallerr.CodeEmbeddingResponseMalformed, "openai: response contained no embedding",
			recallerr.FieldProvider("openai"))
	}

	return embedding.Float32s(resp.Data[0].Embedding), nil
}

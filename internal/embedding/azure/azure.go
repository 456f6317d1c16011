// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package azure implements embedding.Embedder against Azure OpenAI
// deployments.
package azure

import (
	"context"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/sigil-dev/recall/internal/embedding"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// Config holds Azure OpenAI embedding configuration.
type Config struct {
	APIKey   string
	Endpoint string // https://<resource>.openai.azure.com
	// Deployment is the Azure deployment name; defaults to Model.
	Deployment string
	Model      string
	APIVersion string // optional, keeps the SDK default when empty
	Dimensions int
}

// Compile-time interface check.
var _ embedding.Embedder = (*Embedder)(nil)

// Embedder calls an Azure OpenAI embeddings deployment.
type Embedder struct {
	client *goopenai.Client
	config Config
}

// New creates an Azure OpenAI embedder. Returns an error if the API key or
// endpoint is missing.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, recallerr.New(recallerr.CodeEmbeddingRequestInvalid, "azure: missing api_key in config",
			recallerr.FieldProvider("azure"))
	}
	if cfg.Endpoint == "" {
		return nil, recallerr.New(recallerr.CodeEmbeddingRequestInvalid, "azure: missing endpoint in config",
			recallerr.FieldProvider("azure"))
	}
	if cfg.Model == "" {
		cfg.Model = embedding.DefaultModel
	}
	if cfg.Deployment == "" {
		cfg.Deployment = cfg.Model
	}

	clientCfg := goopenai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		clientCfg.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	clientCfg.AzureModelMapperFunc = func(string) string { return deployment }

	return &Embedder{client: goopenai.NewClientWithConfig(clientCfg), config: cfg}, nil
}

func (e *Embedder) Name() string { return "azure/" + e.config.Deployment }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      []string{text},
		Model:      goopenai.EmbeddingModel(e.config.Model),
		Dimensions: e.config.Dimensions,
	})
	if err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeEmbeddingUpstreamFailure, "azure: creating embedding",
			recallerr.FieldProvider("azure"))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, recallerr.New(recallerr.CodeEmbeddingResponseMalformed, "azure: response contained no embedding",
			recallerr.FieldProvider("azure"))
	}

	return resp.Data[0].Embedding, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package google implements judge.Judge with the Gemini API.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/sigil-dev/recall/internal/judge"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

var _ judge.Judge = (*Judge)(nil)

type Judge struct {
	client *genai.Client
	model  string
}

func New(cfg Config) (*Judge, error) {
	if cfg.APIKey == "" {
		return nil, recallerr.New(recallerr.CodeJudgeRequestInvalid, "google: missing api_key in config",
			recallerr.FieldProvider("google"))
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
		return nil, recallerr.Wrapf(err, recallerr.CodeJudgeUpstreamFailure, "google: creating client")
	}
	return &Judge{client: client, model: cfg.Model}, nil
}

func (j *Judge) Name() string { return "google/" + j.model }

func (j *Judge) Invoke(ctx context.Context, req judge.Request) (string, error) {
	resp, err := j.client.Models.GenerateContent(ctx, j.model,
		genai.Text(judge.UserPrompt(req)), buildConfig())
	if err != nil {
		return "", recallerr.Wrap(err, recallerr.CodeJudgeUpstreamFailure, "google: generating content",
			recallerr.FieldProvider("google"))
	}

	text := resp.Text()
	if text == "" {
		return "", recallerr.New(recallerr.CodeJudgeResponseMalformed, "google: response contained no text",
			recallerr.FieldProvider("google"))
	}
	return text, nil
}

func buildConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(judge.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		MaxOutputTokens:   judge.MaxOutputTokens,
	}
}

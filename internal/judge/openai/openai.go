// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package openai implements judge.Judge with the OpenAI chat completions API.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/sigil-dev/recall/internal/judge"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

const DefaultModel = "gpt-4o-mini"

// Config holds OpenAI judge configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

var _ judge.Judge = (*Judge)(nil)

type Judge struct {
	client openaisdk.Client
	model  string
}

func New(cfg Config) (*Judge, error) {
	if cfg.APIKey == "" {
		return nil, recallerr.New(recallerr.CodeJudgeRequestInvalid, "openai: missing api_key in config",
			recallerr.FieldProvider("openai"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Judge{client: openaisdk.NewClient(opts...), model: cfg.Model}, nil
}

func (j *Judge) Name() string { return "openai/" + j.model }

func (j *Judge) Invoke(ctx context.Context, req judge.Request) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(j.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(judge.SystemPrompt),
			openaisdk.UserMessage(judge.UserPrompt(req)),
		},
		MaxCompletionTokens: param.NewOpt(int64(judge.MaxOutputTokens)),
		Temperature:         param.NewOpt(0.0),
	}

	resp, err := j.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", recallerr.Wrap(err, recallerr.CodeJudgeUpstreamFailure, "openai: creating chat completion",
			recallerr.FieldProvider("openai"))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", recallerr.New(recallerr.CodeJudgeResponseMalformed, "openai: response contained no text",
			recallerr.FieldProvider("openai"))
	}
	return resp.Choices[0].Message.Content, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package anthropic implements judge.Judge with the Anthropic Messages API.
package anthropic

import (
	"context"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sigil-dev/recall/internal/judge"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

const DefaultModel = string(anthropicsdk.ModelClaudeHaiku4_5)

// Config holds Anthropic judge configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

var _ judge.Judge = (*Judge)(nil)

type Judge struct {
	client anthropicsdk.Client
	model  string
}

// New returns an Anthropic judge. The API key is required.
func New(cfg Config) (*Judge, error) {
	if cfg.APIKey == "" {
		return nil, recallerr.New(recallerr.CodeJudgeRequestInvalid, "anthropic: missing api_key in config",
			recallerr.FieldProvider("anthropic"))
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

	return &Judge{
		client: anthropicsdk.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (j *Judge) Name() string { return "anthropic/" + j.model }

func (j *Judge) Invoke(ctx context.Context, req judge.Request) (string, error) {
	msg, err := j.client.Messages.New(ctx, buildParams(j.model, req))
	if err != nil {
		return "", recallerr.Wrap(err, recallerr.CodeJudgeUpstreamFailure, "anthropic: creating message",
			recallerr.FieldProvider("anthropic"))
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", recallerr.New(recallerr.CodeJudgeResponseMalformed, "anthropic: response contained no text",
			recallerr.FieldProvider("anthropic"))
	}
	return out.String(), nil
}

func buildParams(model string, req judge.Request) anthropicsdk.MessageNewParams {
	return anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: judge.MaxOutputTokens,
		System: []anthropicsdk.TextBlockParam{
			{Text: judge.SystemPrompt},
		},
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(judge.UserPrompt(req))),
		},
		Temperature: anthropicsdk.Float(0),
	}
}

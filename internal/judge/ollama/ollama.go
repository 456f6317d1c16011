// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package ollama implements judge.Judge against a local Ollama server.
package ollama

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"

	"github.com/sigil-dev/recall/internal/judge"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3.1"
)

type Config struct {
	Host  string
	Model string
}

var _ judge.Judge = (*Judge)(nil)

type Judge struct {
	client *ollama.Client
	model  string
}

// New returns an Ollama judge. The HTTP client carries no timeout of its own;
// the caller bounds each call through its context.
func New(cfg Config) (*Judge, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeJudgeRequestInvalid, "ollama: invalid host %q", cfg.Host)
	}

	return &Judge{client: ollama.NewClient(u, &http.Client{}), model: cfg.Model}, nil
}

func (j *Judge) Name() string { return "ollama/" + j.model }

func (j *Judge) Invoke(ctx context.Context, req judge.Request) (string, error) {
	var text strings.Builder

	gen := &ollama.GenerateRequest{
		Model:  j.model,
		System: judge.SystemPrompt,
		Prompt: judge.UserPrompt(req),
		Options: map[string]any{
			"temperature": 0,
			"num_predict": judge.MaxOutputTokens,
		},
	}

	err := j.client.Generate(ctx, gen, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", recallerr.Wrap(err, recallerr.CodeJudgeUpstreamFailure, "ollama: generating",
			recallerr.FieldProvider("ollama"))
	}
	if text.Len() == 0 {
		return "", recallerr.New(recallerr.CodeJudgeResponseMalformed, "ollama: response contained no text",
			recallerr.FieldProvider("ollama"))
	}
	return text.String(), nil
}

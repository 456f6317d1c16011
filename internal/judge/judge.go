// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package judge defines the prompted-model call used to grade retrieved
// context, plus the provider-independent pieces shared by every backend.
package judge

import (
	"context"
	"fmt"
	"strings"
)

// Request is one (query, retrieved context) pair to be graded.
type Request struct {
	Query   string
	Context string
}

// Judge invokes a model with the retrieval grading prompt and returns its raw
// text output. Deadlines are imposed by the caller through ctx.
type Judge interface {
	Invoke(ctx context.Context, req Request) (string, error)
	Name() string
}

// Func adapts an ordinary function to the Judge interface.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Invoke(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

func (f Func) Name() string { return "func" }

// MaxOutputTokens bounds the grading response. A score and a short reason fit
// comfortably.
const MaxOutputTokens = 800

// SystemPrompt instructs the model to grade retrieval quality on a 1-5 scale.
const SystemPrompt = `You are an expert in evaluating the quality of a list of context chunks retrieved for a query.

Grade how well the retrieved context serves the query on an integer scale from 1 to 5:
1 - the context is irrelevant to the query, or the relevant chunks are buried at the bottom.
2 - the context is partially relevant but misses most of what the query needs.
3 - the context is relevant but the most useful chunks are not ranked first.
4 - the context is relevant and mostly well ranked, with minor gaps.
5 - the context fully answers the query and the most relevant chunks come first.

Judge only retrieval quality. Do not use outside knowledge and ignore whether the context is factually correct.

Reply on a single line in exactly this form:
score: <integer 1-5>, reason: <one or two sentences>`

// UserPrompt renders the per-call message for req.
func UserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query:\n%s\n\n", strings.TrimSpace(req.Query))
	fmt.Fprintf(&b, "Retrieved context:\n%s\n", strings.TrimSpace(req.Context))
	return b.String()
}

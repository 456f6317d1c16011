// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/recall/internal/eval"
	"github.com/sigil-dev/recall/internal/memory"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
	"github.com/sigil-dev/recall/pkg/health"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "add-memory",
		Method:        http.MethodPost,
		Path:          "/api/v1/memories",
		Summary:       "Add content to memory",
		Tags:          []string{"memories"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddMemory)

	huma.Register(s.api, huma.Operation{
		OperationID: "query-memories",
		Method:      http.MethodPost,
		Path:        "/api/v1/memories/query",
		Summary:     "Retrieve the closest memories",
		Tags:        []string{"memories"},
	}, s.handleQueryMemories)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clear-memories",
		Method:        http.MethodDelete,
		Path:          "/api/v1/memories",
		Summary:       "Remove every memory",
		Tags:          []string{"memories"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearMemories)

	huma.Register(s.api, huma.Operation{
		OperationID: "evaluate-retrieval",
		Method:      http.MethodPost,
		Path:        "/api/v1/evaluations/retrieval",
		Summary:     "Grade retrieved context against a query",
		Tags:        []string{"evaluations"},
	}, s.handleEvaluateRetrieval)

	huma.Register(s.api, huma.Operation{
		OperationID: "evaluate-exact-match",
		Method:      http.MethodPost,
		Path:        "/api/v1/evaluations/exact-match",
		Summary:     "Compare a response with ground truth",
		Tags:        []string{"evaluations"},
	}, s.handleEvaluateExactMatch)
}

// --- Request/Response types for huma ---

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status  string          `json:"status" example:"ok" doc:"ok, or degraded while the judge is cooling down"`
	Records int             `json:"records" doc:"Number of stored memories"`
	Judge   *health.Metrics `json:"judge,omitempty" doc:"Judge circuit state"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

type addMemoryInput struct {
	Body struct {
		Content  string          `json:"content" minLength:"1" doc:"Content to embed and store"`
		MimeKind memory.MimeKind `json:"mime_kind,omitempty" enum:"text/plain,text/markdown,application/json" doc:"Content kind, text/plain by default"`
		Metadata map[string]any  `json:"metadata,omitempty" doc:"Free-form metadata returned with matches"`
	}
}

type addMemoryOutput struct {
	Body struct {
		ID       string          `json:"id" doc:"Record identifier"`
		MimeKind memory.MimeKind `json:"mime_kind"`
		Records  int             `json:"records" doc:"Number of stored memories after the insert"`
	}
}

type queryMemoriesInput struct {
	Body struct {
		Content string `json:"content" minLength:"1" doc:"Query text"`
	}
}

// MatchBody is one retrieved memory.
type MatchBody struct {
	ID       string          `json:"id"`
	Content  string          `json:"content"`
	MimeKind memory.MimeKind `json:"mime_kind"`
	Score    float64         `json:"score" doc:"Similarity in (0, 1]"`
	Distance float64         `json:"distance" doc:"Euclidean distance to the query"`
	Metadata map[string]any  `json:"metadata"`
}

type queryMemoriesOutput struct {
	Body struct {
		Matches []MatchBody `json:"matches"`
	}
}

type retrievalInput struct {
	Body struct {
		Query         string             `json:"query,omitempty" doc:"Query text, used with context"`
		Context       string             `json:"context,omitempty" doc:"Retrieved context, used with query"`
		Conversation  *eval.Conversation `json:"conversation,omitempty" doc:"Multi-turn alternative to query/context"`
		LegacyAliases bool               `json:"legacy_aliases,omitempty" doc:"Also emit gpt_ prefixed score keys"`
	}
}

type exactMatchInput struct {
	Body struct {
		GroundTruth string `json:"ground_truth" doc:"Expected answer; may be empty"`
		Response    string `json:"response" doc:"Answer to compare; may be empty"`
	}
}

// EvaluationBody is an evaluator result. Undetermined scores are null.
type EvaluationBody struct {
	Metric string         `json:"metric"`
	Score  *float64       `json:"score"`
	Reason string         `json:"reason,omitempty"`
	Fields map[string]any `json:"fields" doc:"Flat result record as emitted by the batch runner"`
}

type evaluationOutput struct {
	Body EvaluationBody
}

// --- Handlers ---

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*HealthResponse, error) {
	svc := s.svc()
	out := &HealthResponse{Body: HealthBody{Status: health.StatusOK}}

	if svc.Memory != nil {
		s.mu.RLock()
		out.Body.Records = svc.Memory.Len()
		s.mu.RUnlock()
	}
	if svc.Judge != nil {
		m := svc.Judge.Health()
		out.Body.Judge = &m
		out.Body.Status = m.Status()
	}
	return out, nil
}

func (s *Server) handleAddMemory(ctx context.Context, input *addMemoryInput) (*addMemoryOutput, error) {
	store := s.svc().Memory
	if store == nil {
		return nil, huma.Error503ServiceUnavailable("memory store not configured")
	}

	pending, err := store.Prepare(ctx, input.Body.Content, input.Body.MimeKind, input.Body.Metadata)
	if err != nil {
		return nil, apiError(err, "adding memory")
	}

	s.mu.Lock()
	rec, err := store.Commit(ctx, pending)
	n := store.Len()
	s.mu.Unlock()
	if err != nil {
		return nil, apiError(err, "adding memory")
	}

	out := &addMemoryOutput{}
	out.Body.ID = rec.ID
	out.Body.MimeKind = rec.MimeKind
	out.Body.Records = n
	return out, nil
}

func (s *Server) handleQueryMemories(ctx context.Context, input *queryMemoriesInput) (*queryMemoriesOutput, error) {
	store := s.svc().Memory
	if store == nil {
		return nil, huma.Error503ServiceUnavailable("memory store not configured")
	}

	s.mu.RLock()
	empty := store.Len() == 0
	s.mu.RUnlock()

	var matches []memory.Match
	if !empty {
		vec, err := store.EmbedQuery(ctx, input.Body.Content)
		if err != nil {
			return nil, apiError(err, "querying memories")
		}
		s.mu.RLock()
		matches, err = store.Nearest(ctx, vec)
		s.mu.RUnlock()
		if err != nil {
			return nil, apiError(err, "querying memories")
		}
	}

	out := &queryMemoriesOutput{}
	out.Body.Matches = make([]MatchBody, 0, len(matches))
	for _, m := range matches {
		out.Body.Matches = append(out.Body.Matches, MatchBody{
			ID:       m.ID,
			Content:  m.Content,
			MimeKind: m.MimeKind,
			Score:    m.Score,
			Distance: m.Distance,
			Metadata: m.Metadata,
		})
	}
	return out, nil
}

func (s *Server) handleClearMemories(ctx context.Context, _ *struct{}) (*struct{}, error) {
	store := s.svc().Memory
	if store == nil {
		return nil, huma.Error503ServiceUnavailable("memory store not configured")
	}

	s.mu.Lock()
	err := store.Clear(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, apiError(err, "clearing memories")
	}
	return nil, nil
}

func (s *Server) handleEvaluateRetrieval(ctx context.Context, input *retrievalInput) (*evaluationOutput, error) {
	scorer := s.svc().Retrieval
	if scorer == nil {
		return nil, huma.Error503ServiceUnavailable("judge not configured")
	}

	res, err := scorer.Evaluate(ctx, eval.Input{
		Query:        input.Body.Query,
		Context:      input.Body.Context,
		Conversation: input.Body.Conversation,
	})
	if err != nil {
		return nil, apiError(err, "evaluating retrieval")
	}

	p := eval.Canonical
	if input.Body.LegacyAliases {
		p = eval.LegacyAliases
	}
	return evaluation(res, p), nil
}

func (s *Server) handleEvaluateExactMatch(_ context.Context, input *exactMatchInput) (*evaluationOutput, error) {
	return evaluation(eval.ExactMatch(input.Body.GroundTruth, input.Body.Response), eval.Canonical), nil
}

func evaluation(res eval.Result, p eval.Presentation) *evaluationOutput {
	return &evaluationOutput{Body: EvaluationBody{
		Metric: res.Metric,
		Score:  eval.Nullable(res.Score),
		Reason: res.Reason,
		Fields: eval.NullNaN(res.Fields(p)),
	}}
}

// apiError maps a coded error onto an RFC 9457 problem response. Server-side
// failures are logged; the client sees only the message.
func apiError(err error, msg string) error {
	status := recallerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, "error", err, "code", recallerr.CodeOf(err))
		return huma.NewError(status, msg)
	}
	return huma.NewError(status, msg+": "+err.Error())
}

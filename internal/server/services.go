// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"

	"github.com/sigil-dev/recall/internal/eval"
	"github.com/sigil-dev/recall/internal/memory"
	"github.com/sigil-dev/recall/pkg/health"
)

// MemoryStore is the subset of *memory.Store the API uses. Embedding runs
// through Prepare and EmbedQuery outside the server's store lock.
type MemoryStore interface {
	Prepare(ctx context.Context, content string, kind memory.MimeKind, metadata map[string]any) (memory.Pending, error)
	Commit(ctx context.Context, p memory.Pending) (memory.Record, error)
	EmbedQuery(ctx context.Context, content string) ([]float32, error)
	Nearest(ctx context.Context, vec []float32) ([]memory.Match, error)
	Clear(ctx context.Context) error
	Len() int
}

// RetrievalEvaluator grades retrieved context against a query.
type RetrievalEvaluator interface {
	Evaluate(ctx context.Context, in eval.Input) (eval.Result, error)
}

// HealthReporter exposes the judge's circuit state.
type HealthReporter interface {
	Health() health.Metrics
}

// Services holds the dependencies behind the REST routes. Nil members make
// their routes answer 503.
type Services struct {
	Memory    MemoryStore
	Retrieval RetrievalEvaluator
	Judge     HealthReporter
}

// RegisterServices sets the service dependencies used by the REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.svcMu.Lock()
	defer s.svcMu.Unlock()
	s.services = svc
}

func (s *Server) svc() *Services {
	s.svcMu.RLock()
	defer s.svcMu.RUnlock()
	if s.services == nil {
		return &Services{}
	}
	return s.services
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package eval grades retrieval quality with a judge model and provides the
// deterministic evaluators and batch runner around it.
package eval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/sigil-dev/recall/internal/judge"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

const (
	// RetrievalMetric is the canonical result key of the retrieval scorer.
	RetrievalMetric = "custom-retrieval"

	DefaultTimeout     = 600 * time.Second
	DefaultConcurrency = 4

	MinScore = 1.0
	MaxScore = 5.0
)

var tracer = otel.Tracer("github.com/sigil-dev/recall/internal/eval")

// Turn is one exchange of a conversation. Either field may be empty; the
// judge grades whatever the turn carries.
type Turn struct {
	Query   string `json:"query" yaml:"query"`
	Context string `json:"context" yaml:"context"`
}

type Conversation struct {
	Turns []Turn `json:"turns" yaml:"turns"`
}

// Input carries exactly one of a (Query, Context) pair or a Conversation.
type Input struct {
	Query        string
	Context      string
	Conversation *Conversation
}

// RetrievalOption customises a RetrievalScorer.
type RetrievalOption func(*RetrievalScorer)

// WithTimeout bounds each judge call. Non-positive values are ignored.
func WithTimeout(d time.Duration) RetrievalOption {
	return func(s *RetrievalScorer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithAggregator(agg Aggregator) RetrievalOption {
	return func(s *RetrievalScorer) {
		if agg != nil {
			s.aggregate = agg
		}
	}
}

// WithConcurrency caps how many conversation turns are judged at once.
func WithConcurrency(n int) RetrievalOption {
	return func(s *RetrievalScorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// RetrievalScorer grades how well retrieved context serves a query on a
// 1-5 scale. It holds no per-call state and is safe for concurrent use.
type RetrievalScorer struct {
	judge       judge.Judge
	timeout     time.Duration
	aggregate   Aggregator
	concurrency int
}

func NewRetrievalScorer(j judge.Judge, opts ...RetrievalOption) *RetrievalScorer {
	s := &RetrievalScorer{
		judge:       j,
		timeout:     DefaultTimeout,
		aggregate:   Mean,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RetrievalScorer) Name() string { return RetrievalMetric }

// Evaluate validates in, then judges the pair or every conversation turn.
// Input problems are returned as eval.input.invalid_input before the judge
// is called. Judge failures never surface as errors: they yield a NaN score.
func (s *RetrievalScorer) Evaluate(ctx context.Context, in Input) (Result, error) {
	if err := validateInput(in); err != nil {
		return Result{}, err
	}

	ctx, span := tracer.Start(ctx, "eval.Retrieval")
	defer span.End()
	span.SetAttributes(attribute.String("eval.judge", s.judge.Name()))

	if in.Conversation == nil {
		j := s.judgeOne(ctx, judge.Request{Query: in.Query, Context: in.Context})
		return Result{Metric: RetrievalMetric, Judgment: j, PromptBased: true}, nil
	}

	turns := in.Conversation.Turns
	span.SetAttributes(attribute.Int("eval.turns", len(turns)))

	perTurn := make([]Judgment, len(turns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, t := range turns {
		g.Go(func() error {
			// A turn with nothing to grade is undetermined without a judge call.
			if strings.TrimSpace(t.Query) == "" && strings.TrimSpace(t.Context) == "" {
				perTurn[i] = Undetermined()
				return nil
			}
			perTurn[i] = s.judgeOne(gctx, judge.Request{Query: t.Query, Context: t.Context})
			return nil
		})
	}
	_ = g.Wait()

	scores := make([]float64, len(perTurn))
	for i, j := range perTurn {
		scores[i] = j.Score
	}

	return Result{
		Metric:      RetrievalMetric,
		Judgment:    Judgment{Score: s.aggregate(scores)},
		PerTurn:     perTurn,
		PromptBased: true,
	}, nil
}

func (s *RetrievalScorer) judgeOne(ctx context.Context, req judge.Request) Judgment {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.judge.Invoke(ctx, req)
	if err != nil {
		code := recallerr.CodeOf(err)
		if errors.Is(err, context.DeadlineExceeded) {
			code = recallerr.CodeJudgeCallTimeout
		}
		slog.Warn("retrieval judge call failed, score undetermined",
			"judge", s.judge.Name(),
			"code", code,
			"error", err,
		)
		return Undetermined()
	}
	if strings.TrimSpace(out) == "" {
		slog.Warn("retrieval judge returned empty output, score undetermined", "judge", s.judge.Name())
		return Undetermined()
	}

	return ParseScore(out, MinScore, MaxScore)
}

func validateInput(in Input) error {
	hasPair := in.Query != "" || in.Context != ""
	switch {
	case in.Conversation == nil && !hasPair:
		return usageError("either query and context or a conversation must be provided")
	case in.Conversation != nil && hasPair:
		return usageError("query/context and conversation are mutually exclusive")
	case in.Conversation == nil:
		if in.Query == "" || in.Context == "" {
			return usageError("both query and context are required")
		}
		return nil
	}

	if len(in.Conversation.Turns) == 0 {
		return usageError("conversation has no turns")
	}
	return nil
}

func usageError(msg string) error {
	return recallerr.New(recallerr.CodeEvalInputInvalid, msg,
		recallerr.FieldMetric(RetrievalMetric),
		recallerr.FieldBlame(recallerr.BlameUser),
	)
}

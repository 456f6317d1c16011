// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package eval_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/recall/internal/eval"
	"github.com/sigil-dev/recall/internal/judge"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedJudge answers by query text and counts calls.
func scriptedJudge(calls *atomic.Int32, answers map[string]string) judge.Func {
	return func(_ context.Context, req judge.Request) (string, error) {
		calls.Add(1)
		out, ok := answers[req.Query]
		if !ok {
			return "", errors.New("no scripted answer")
		}
		return out, nil
	}
}

func TestRetrievalScorer_SinglePair(t *testing.T) {
	var calls atomic.Int32
	s := eval.NewRetrievalScorer(scriptedJudge(&calls, map[string]string{
		"q": "score: 4, reason: clear and relevant",
	}))

	res, err := s.Evaluate(context.Background(), eval.Input{Query: "q", Context: "c"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, eval.RetrievalMetric, res.Metric)
	assert.Equal(t, 4.0, res.Score)
	assert.Equal(t, "clear and relevant", res.Reason)
	assert.Nil(t, res.PerTurn)

	fields := res.Fields(eval.LegacyAliases)
	assert.Equal(t, map[string]any{
		"custom-retrieval":        4.0,
		"gpt_custom-retrieval":    4.0,
		"custom-retrieval_reason": "clear and relevant",
	}, fields)
}

func TestRetrievalScorer_UsageErrorsSkipJudge(t *testing.T) {
	tests := []struct {
		name string
		in   eval.Input
	}{
		{"neither shape", eval.Input{}},
		{"both shapes", eval.Input{Query: "q", Context: "c", Conversation: &eval.Conversation{Turns: []eval.Turn{{Query: "q", Context: "c"}}}}},
		{"query without context", eval.Input{Query: "q"}},
		{"empty conversation", eval.Input{Conversation: &eval.Conversation{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			s := eval.NewRetrievalScorer(scriptedJudge(&calls, nil))

			_, err := s.Evaluate(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, recallerr.HasCode(err, recallerr.CodeEvalInputInvalid))
			assert.Equal(t, recallerr.BlameUser, recallerr.BlameOf(err))
			assert.Equal(t, int32(0), calls.Load())
		})
	}
}

func TestRetrievalScorer_JudgeFailureIsNaN(t *testing.T) {
	var calls atomic.Int32
	s := eval.NewRetrievalScorer(scriptedJudge(&calls, map[string]string{"blank": "   "}))

	res, err := s.Evaluate(context.Background(), eval.Input{Query: "unknown", Context: "c"})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Score))
	assert.False(t, res.HasReason)

	fields := res.Fields(eval.LegacyAliases)
	require.Contains(t, fields, eval.RetrievalMetric)
	assert.True(t, math.IsNaN(fields["gpt_custom-retrieval"].(float64)))
	assert.NotContains(t, fields, "custom-retrieval_reason")

	res, err = s.Evaluate(context.Background(), eval.Input{Query: "blank", Context: "c"})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Score))
}

func TestRetrievalScorer_TimeoutIsNaN(t *testing.T) {
	slow := judge.Func(func(ctx context.Context, _ judge.Request) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "score: 5, reason: too late", nil
		}
	})
	s := eval.NewRetrievalScorer(slow, eval.WithTimeout(20*time.Millisecond))

	start := time.Now()
	res, err := s.Evaluate(context.Background(), eval.Input{Query: "q", Context: "c"})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Score))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRetrievalScorer_ConversationAggregates(t *testing.T) {
	var calls atomic.Int32
	answers := map[string]string{
		"t1": "score: 5, reason: perfect",
		"t2": "2",
		"t3": "no idea",
	}
	turns := eval.Conversation{Turns: []eval.Turn{
		{Query: "t1", Context: "c1"},
		{Query: "t2", Context: "c2"},
		{Query: "t3", Context: "c3"},
	}}

	s := eval.NewRetrievalScorer(scriptedJudge(&calls, answers), eval.WithConcurrency(2))
	res, err := s.Evaluate(context.Background(), eval.Input{Conversation: &turns})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	assert.Equal(t, 3.5, res.Score, "mean ignores the undetermined turn")
	require.Len(t, res.PerTurn, 3)
	assert.Equal(t, 5.0, res.PerTurn[0].Score)
	assert.Equal(t, "perfect", res.PerTurn[0].Reason)
	assert.Equal(t, 2.0, res.PerTurn[1].Score)
	assert.True(t, math.IsNaN(res.PerTurn[2].Score))

	fields := res.Fields(eval.LegacyAliases)
	assert.Equal(t, 3.5, fields["custom-retrieval"])
	assert.Equal(t, 3.5, fields["gpt_custom-retrieval"])
	assert.NotContains(t, fields, "custom-retrieval_reason")

	perTurn, ok := fields[eval.PerTurnKey].(map[string]any)
	require.True(t, ok)
	scores := perTurn["custom-retrieval"].([]float64)
	assert.Equal(t, []float64{5, 2}, scores[:2])
	assert.Equal(t, []string{"perfect", "", ""}, perTurn["custom-retrieval_reason"])
	assert.Contains(t, perTurn, "gpt_custom-retrieval")
}

func TestRetrievalScorer_ConversationPartialTurns(t *testing.T) {
	var calls atomic.Int32
	var seen []judge.Request
	var mu sync.Mutex
	j := judge.Func(func(_ context.Context, req judge.Request) (string, error) {
		calls.Add(1)
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		if req.Context == "" {
			return "score: 1, reason: nothing retrieved", nil
		}
		return "score: 5, reason: relevant", nil
	})
	conv := eval.Conversation{Turns: []eval.Turn{
		{Query: "q1", Context: "c1"},
		{Query: "q2"},
		{},
	}}

	s := eval.NewRetrievalScorer(j, eval.WithConcurrency(1))
	res, err := s.Evaluate(context.Background(), eval.Input{Conversation: &conv})
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load(), "an empty turn is not sent to the judge")
	require.Len(t, res.PerTurn, 3)
	assert.Equal(t, 5.0, res.PerTurn[0].Score)
	assert.Equal(t, 1.0, res.PerTurn[1].Score)
	assert.Equal(t, "nothing retrieved", res.PerTurn[1].Reason)
	assert.True(t, math.IsNaN(res.PerTurn[2].Score))
	assert.Equal(t, 3.0, res.Score)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, judge.Request{Query: "q2"})
}

func TestRetrievalScorer_JudgeFailureDoesNotAffectNextCall(t *testing.T) {
	var calls atomic.Int32
	flaky := judge.Func(func(context.Context, judge.Request) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("503 overloaded")
		}
		return "score: 5, reason: fine", nil
	})
	tracker, err := judge.NewHealthTracker(time.Hour)
	require.NoError(t, err)
	guarded := judge.Guard(flaky, tracker)
	s := eval.NewRetrievalScorer(guarded)
	ctx := context.Background()

	first, err := s.Evaluate(ctx, eval.Input{Query: "q", Context: "c"})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(first.Score))

	for range 2 {
		res, err := s.Evaluate(ctx, eval.Input{Query: "q", Context: "c"})
		require.NoError(t, err)
		assert.Equal(t, 5.0, res.Score)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(1), guarded.Health().FailureCount)
}

func TestRetrievalScorer_CustomAggregator(t *testing.T) {
	var calls atomic.Int32
	answers := map[string]string{"a": "score: 1, reason: x", "b": "score: 5, reason: y"}
	conv := eval.Conversation{Turns: []eval.Turn{{Query: "a", Context: "c"}, {Query: "b", Context: "c"}}}

	s := eval.NewRetrievalScorer(scriptedJudge(&calls, answers), eval.WithAggregator(eval.Min))
	res, err := s.Evaluate(context.Background(), eval.Input{Conversation: &conv})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Score)
}

func TestRetrievalScorer_CanonicalPresentation(t *testing.T) {
	var calls atomic.Int32
	s := eval.NewRetrievalScorer(scriptedJudge(&calls, map[string]string{"q": "score: 3, reason: fine"}))

	res, err := s.Evaluate(context.Background(), eval.Input{Query: "q", Context: "c"})
	require.NoError(t, err)
	fields := res.Fields(eval.Canonical)
	assert.NotContains(t, fields, "gpt_custom-retrieval")
	assert.Equal(t, 3.0, fields["custom-retrieval"])
}

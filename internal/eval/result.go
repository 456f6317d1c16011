// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package eval

import "math"

const (
	// LegacyPrefix marks the duplicate score key older consumers read.
	LegacyPrefix = "gpt_"
	// ReasonSuffix is appended to a metric name to form its reason key.
	ReasonSuffix = "_reason"
	// PerTurnKey holds per-turn value lists for conversation results.
	PerTurnKey = "evaluation_per_turn"
)

// Presentation selects which keys Result.Fields emits.
type Presentation int

const (
	// Canonical emits only the metric key and its reason.
	Canonical Presentation = iota
	// LegacyAliases additionally emits LegacyPrefix+metric for prompt-based
	// metrics, holding the same value.
	LegacyAliases
)

// Result is the outcome of one evaluator call.
type Result struct {
	Metric string
	Judgment
	// PerTurn holds the individual turn judgments of a conversation, in turn
	// order. It is nil for single-pair evaluations.
	PerTurn []Judgment
	// PromptBased is set for metrics graded by a judge model; only those
	// carry legacy aliases.
	PromptBased bool
}

// Fields renders r as a flat key/value record.
func (r Result) Fields(p Presentation) map[string]any {
	out := map[string]any{r.Metric: r.Score}
	legacy := p == LegacyAliases && r.PromptBased
	if legacy {
		out[LegacyPrefix+r.Metric] = r.Score
	}
	if r.HasReason {
		out[r.Metric+ReasonSuffix] = r.Reason
	}
	if r.PerTurn == nil {
		return out
	}

	scores := make([]float64, len(r.PerTurn))
	reasons := make([]string, len(r.PerTurn))
	anyReason := false
	for i, t := range r.PerTurn {
		scores[i] = t.Score
		reasons[i] = t.Reason
		anyReason = anyReason || t.HasReason
	}

	perTurn := map[string]any{r.Metric: scores}
	if legacy {
		perTurn[LegacyPrefix+r.Metric] = scores
	}
	if anyReason {
		perTurn[r.Metric+ReasonSuffix] = reasons
	}
	out[PerTurnKey] = perTurn
	return out
}

// Nullable maps NaN to nil so undetermined scores encode as JSON null.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// NullNaN returns a copy of fields, as produced by Result.Fields, with every
// NaN score replaced by a nil *float64. encoding/json rejects NaN.
func NullNaN(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch tv := v.(type) {
		case float64:
			out[k] = Nullable(tv)
		case []float64:
			list := make([]*float64, len(tv))
			for i, f := range tv {
				list[i] = Nullable(f)
			}
			out[k] = list
		case map[string]any:
			out[k] = NullNaN(tv)
		default:
			out[k] = v
		}
	}
	return out
}

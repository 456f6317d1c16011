// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package eval

import (
	"context"
	"math"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// Row is one dataset entry. Evaluators use whichever fields they need.
type Row struct {
	Query       string `yaml:"query" json:"query"`
	Context     string `yaml:"context" json:"context"`
	Response    string `yaml:"response" json:"response"`
	GroundTruth string `yaml:"ground_truth" json:"ground_truth"`
}

// LoadDataset reads a YAML list of rows. JSON arrays parse as well.
func LoadDataset(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEvalDatasetReadFailure, "reading dataset %s", path)
	}

	var rows []Row
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEvalDatasetInvalid, "parsing dataset %s", path)
	}
	if len(rows) == 0 {
		return nil, recallerr.Errorf(recallerr.CodeEvalDatasetInvalid, "dataset %s has no rows", path)
	}
	return rows, nil
}

// RowEvaluator scores one dataset row.
type RowEvaluator interface {
	Name() string
	// Applies reports whether row carries the fields the evaluator needs.
	Applies(row Row) bool
	EvaluateRow(ctx context.Context, row Row) (Result, error)
}

func (s *RetrievalScorer) Applies(row Row) bool {
	return row.Query != "" && row.Context != ""
}

func (s *RetrievalScorer) EvaluateRow(ctx context.Context, row Row) (Result, error) {
	return s.Evaluate(ctx, Input{Query: row.Query, Context: row.Context})
}

// ExactMatcher adapts ExactMatch to RowEvaluator.
type ExactMatcher struct{}

func (ExactMatcher) Name() string { return ExactMatchMetric }

// Applies skips rows that carry neither a response nor a ground truth; a
// row with only one of them still scores 0.
func (ExactMatcher) Applies(row Row) bool {
	return row.Response != "" || row.GroundTruth != ""
}

func (ExactMatcher) EvaluateRow(_ context.Context, row Row) (Result, error) {
	return ExactMatch(row.GroundTruth, row.Response), nil
}

// RowResult holds the rendered fields of every evaluator that applied to a row.
type RowResult struct {
	Row    Row            `json:"inputs"`
	Fields map[string]any `json:"outputs"`
}

// Report is the outcome of a batch run. Summary maps each metric to the mean
// of its non-NaN row scores.
type Report struct {
	Rows    []RowResult        `json:"rows"`
	Summary map[string]float64 `json:"metrics"`
}

// Runner evaluates dataset rows with a fixed set of evaluators.
type Runner struct {
	Evaluators  []RowEvaluator
	Concurrency int
	// Presentation controls legacy aliases in row fields.
	Presentation Presentation
}

// Run evaluates every row with every applicable evaluator. Rows run
// concurrently up to Concurrency; the report keeps dataset order.
func (r *Runner) Run(ctx context.Context, rows []Row) (*Report, error) {
	ctx, span := tracer.Start(ctx, "eval.Run")
	defer span.End()

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([][]Result, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, row := range rows {
		g.Go(func() error {
			for _, ev := range r.Evaluators {
				if !ev.Applies(row) {
					continue
				}
				res, err := ev.EvaluateRow(gctx, row)
				if err != nil {
					return recallerr.With(err, recallerr.Field("row", i), recallerr.FieldMetric(ev.Name()))
				}
				results[i] = append(results[i], res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Rows: make([]RowResult, len(rows)), Summary: map[string]float64{}}
	perMetric := map[string][]float64{}
	for i, row := range rows {
		fields := map[string]any{}
		for _, res := range results[i] {
			for k, v := range res.Fields(r.Presentation) {
				fields[k] = v
			}
			perMetric[res.Metric] = append(perMetric[res.Metric], res.Score)
		}
		report.Rows[i] = RowResult{Row: row, Fields: fields}
	}

	for m, scores := range perMetric {
		report.Summary[m] = Mean(scores)
	}
	return report, nil
}

// Metrics returns the summary metric names in sorted order.
func (r *Report) Metrics() []string {
	names := make([]string, 0, len(r.Summary))
	for m := range r.Summary {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// Defined reports whether v is a real score rather than the NaN sentinel.
func Defined(v float64) bool { return !math.IsNaN(v) }

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/recall/internal/eval"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

var evalMetrics = []string{eval.RetrievalMetric, eval.ExactMatchMetric}

func newEvalCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score every row of a dataset",
		Long: `Run the selected evaluators over a YAML or JSON dataset. Each row may carry
query, context, response and ground_truth; an evaluator only scores rows that
have the fields it needs. The summary is the mean of each metric's defined
row scores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd, v)
		},
	}

	cmd.Flags().String("dataset", "", "dataset file (required)")
	cmd.Flags().StringSlice("metrics", evalMetrics, "evaluators to run")
	cmd.Flags().Bool("legacy-aliases", false, "also emit gpt_ prefixed score keys")
	cmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

type evalRowOutput struct {
	Inputs  eval.Row       `json:"inputs" yaml:"inputs"`
	Outputs map[string]any `json:"outputs" yaml:"outputs"`
}

type evalOutput struct {
	Rows    []evalRowOutput     `json:"rows" yaml:"rows"`
	Metrics map[string]*float64 `json:"metrics" yaml:"metrics"`
}

func runEval(cmd *cobra.Command, v *viper.Viper) error {
	metrics, _ := cmd.Flags().GetStringSlice("metrics")
	for _, m := range metrics {
		if !slices.Contains(evalMetrics, m) {
			return recallerr.Errorf(recallerr.CodeCLIInputInvalid, "unknown metric %q, want one of %v", m, evalMetrics)
		}
	}
	format, _ := cmd.Flags().GetString("output")
	if !slices.Contains([]string{"table", "json", "yaml"}, format) {
		return recallerr.Errorf(recallerr.CodeCLIInputInvalid, "unknown output format %q", format)
	}

	path, _ := cmd.Flags().GetString("dataset")
	rows, err := eval.LoadDataset(path)
	if err != nil {
		return err
	}

	runner := &eval.Runner{}
	if legacy, _ := cmd.Flags().GetBool("legacy-aliases"); legacy {
		runner.Presentation = eval.LegacyAliases
	}

	if slices.Contains(metrics, eval.RetrievalMetric) {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		app, err := Wire(cfg, WireOptions{RequireJudge: true})
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		runner.Evaluators = append(runner.Evaluators, app.Scorer)
		runner.Concurrency = cfg.Judge.Concurrency
	}
	if slices.Contains(metrics, eval.ExactMatchMetric) {
		runner.Evaluators = append(runner.Evaluators, eval.ExactMatcher{})
	}

	report, err := runner.Run(cmd.Context(), rows)
	if err != nil {
		return err
	}

	out := evalOutput{Rows: make([]evalRowOutput, len(report.Rows)), Metrics: map[string]*float64{}}
	for i, r := range report.Rows {
		out.Rows[i] = evalRowOutput{Inputs: r.Row, Outputs: eval.NullNaN(r.Fields)}
	}
	for m, s := range report.Summary {
		out.Metrics[m] = eval.Nullable(s)
	}

	w := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return recallerr.Errorf(recallerr.CodeCLIOutputFailure, "encoding report: %w", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return recallerr.Errorf(recallerr.CodeCLIOutputFailure, "encoding report: %w", err)
		}
		return enc.Close()
	default:
		return printSummary(cmd, report)
	}
	return nil
}

func printSummary(cmd *cobra.Command, report *eval.Report) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("METRIC", "MEAN", "SCORED ROWS")
	for _, m := range report.Metrics() {
		mean := "undetermined"
		if s := report.Summary[m]; eval.Defined(s) {
			mean = strconv.FormatFloat(s, 'f', 4, 64)
		}
		t.Row(m, mean, strconv.Itoa(scoredRows(report, m)))
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n%d rows evaluated\n", t.String(), len(report.Rows))
	return err
}

// scoredRows counts rows with a defined score for metric.
func scoredRows(report *eval.Report, metric string) int {
	n := 0
	for _, r := range report.Rows {
		if s, ok := r.Fields[metric].(float64); ok && eval.Defined(s) {
			n++
		}
	}
	return n
}

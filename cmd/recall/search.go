// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/recall/internal/eval"
	"github.com/sigil-dev/recall/internal/memory"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// document is one entry of a search document file. A bare string is a
// text/plain document; structured content with mime_kind application/json
// is re-encoded as JSON.
type document struct {
	Content  string          `yaml:"content" json:"content"`
	MimeKind memory.MimeKind `yaml:"mime_kind" json:"mime_kind"`
	Metadata map[string]any  `yaml:"metadata" json:"metadata"`
}

func (d *document) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.MimeKind = memory.MimeText
		return node.Decode(&d.Content)
	}

	var raw struct {
		Content  yaml.Node       `yaml:"content"`
		MimeKind memory.MimeKind `yaml:"mime_kind"`
		Metadata map[string]any  `yaml:"metadata"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	d.MimeKind = raw.MimeKind
	d.Metadata = raw.Metadata

	switch raw.Content.Kind {
	case 0:
		return nil
	case yaml.ScalarNode:
		return raw.Content.Decode(&d.Content)
	}

	var structured any
	if err := raw.Content.Decode(&structured); err != nil {
		return err
	}
	encoded, err := json.Marshal(structured)
	if err != nil {
		return err
	}
	d.Content = string(encoded)
	if d.MimeKind == "" {
		d.MimeKind = memory.MimeJSON
	}
	return nil
}

// loadDocuments reads a YAML or JSON list of documents.
func loadDocuments(path string) ([]document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, recallerr.Errorf(recallerr.CodeCLIInputInvalid, "reading documents %s: %w", path, err)
	}

	var docs []document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, recallerr.Errorf(recallerr.CodeCLIInputInvalid, "parsing documents %s: %w", path, err)
	}
	if len(docs) == 0 {
		return nil, recallerr.Errorf(recallerr.CodeCLIInputInvalid, "documents file %s is empty", path)
	}
	return docs, nil
}

func newSearchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Load documents into memory and retrieve the closest matches",
		Long: `Embed every document in --documents, then print the best matches for the
query. With --judge the retrieved context is graded against the query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, v, args[0])
		},
	}

	cmd.Flags().StringP("documents", "d", "", "YAML or JSON file with the documents to search (required)")
	cmd.Flags().IntP("top-k", "k", 0, "override memory.top_k")
	cmd.Flags().Float64("threshold", 0, "override memory.score_threshold")
	cmd.Flags().Bool("judge", false, "grade the retrieved context with the configured judge")
	cmd.Flags().Bool("json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("documents")

	return cmd
}

type searchOutput struct {
	Query      string                `json:"query"`
	Matches    []searchMatch         `json:"matches"`
	Evaluation *searchEvaluationBody `json:"evaluation,omitempty"`
}

type searchMatch struct {
	ID       string          `json:"id"`
	Score    float64         `json:"score"`
	Distance float64         `json:"distance"`
	MimeKind memory.MimeKind `json:"mime_kind"`
	Content  string          `json:"content"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

type searchEvaluationBody struct {
	Metric string   `json:"metric"`
	Score  *float64 `json:"score"`
	Reason string   `json:"reason,omitempty"`
}

func runSearch(cmd *cobra.Command, v *viper.Viper, query string) error {
	if cmd.Flags().Changed("top-k") {
		if err := v.BindPFlag("memory.top_k", cmd.Flags().Lookup("top-k")); err != nil {
			return recallerr.Errorf(recallerr.CodeCLISetupFailure, "binding top-k flag: %w", err)
		}
	}
	if cmd.Flags().Changed("threshold") {
		if err := v.BindPFlag("memory.score_threshold", cmd.Flags().Lookup("threshold")); err != nil {
			return recallerr.Errorf(recallerr.CodeCLISetupFailure, "binding threshold flag: %w", err)
		}
	}

	path, _ := cmd.Flags().GetString("documents")
	docs, err := loadDocuments(path)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	useJudge, _ := cmd.Flags().GetBool("judge")
	app, err := Wire(cfg, WireOptions{Memory: true, RequireJudge: useJudge})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	for i, d := range docs {
		if _, err := app.Memory.Add(ctx, d.Content, d.MimeKind, d.Metadata); err != nil {
			return recallerr.With(err, recallerr.Field("document", i))
		}
	}

	matches, err := app.Memory.Query(ctx, query)
	if err != nil {
		return err
	}

	out := searchOutput{Query: query, Matches: make([]searchMatch, 0, len(matches))}
	for _, m := range matches {
		out.Matches = append(out.Matches, searchMatch{
			ID:       m.ID,
			Score:    m.Score,
			Distance: m.Distance,
			MimeKind: m.MimeKind,
			Content:  m.Content,
			Metadata: m.Metadata,
		})
	}

	if useJudge {
		if len(matches) == 0 {
			return recallerr.New(recallerr.CodeCLIInputInvalid, "nothing retrieved to grade; lower --threshold or add documents")
		}
		res, err := app.Scorer.Evaluate(ctx, eval.Input{Query: query, Context: memory.RenderContext(matches)})
		if err != nil {
			return err
		}
		out.Evaluation = &searchEvaluationBody{
			Metric: res.Metric,
			Score:  eval.Nullable(res.Score),
			Reason: res.Reason,
		}
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return recallerr.Errorf(recallerr.CodeCLIOutputFailure, "encoding output: %w", err)
		}
		return nil
	}
	return printSearch(cmd, out)
}

func printSearch(cmd *cobra.Command, out searchOutput) error {
	w := cmd.OutOrStdout()
	if len(out.Matches) == 0 {
		_, err := fmt.Fprintln(w, "No matches.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "SCORE", "DISTANCE", "KIND", "CONTENT")
	for i, m := range out.Matches {
		t.Row(
			strconv.Itoa(i+1),
			strconv.FormatFloat(m.Score, 'f', 4, 64),
			strconv.FormatFloat(m.Distance, 'f', 4, 64),
			string(m.MimeKind),
			truncate(m.Content, 60),
		)
	}
	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return err
	}

	if ev := out.Evaluation; ev != nil {
		score := "undetermined"
		if ev.Score != nil {
			score = strconv.FormatFloat(*ev.Score, 'f', -1, 64)
		}
		if _, err := fmt.Fprintf(w, "\n%s: %s\n", ev.Metric, score); err != nil {
			return err
		}
		if ev.Reason != "" {
			if _, err := fmt.Fprintf(w, "reason: %s\n", ev.Reason); err != nil {
				return err
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

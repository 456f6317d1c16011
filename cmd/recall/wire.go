// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/sigil-dev/recall/internal/config"
	"github.com/sigil-dev/recall/internal/embedding"
	azureemb "github.com/sigil-dev/recall/internal/embedding/azure"
	googleemb "github.com/sigil-dev/recall/internal/embedding/google"
	ollamaemb "github.com/sigil-dev/recall/internal/embedding/ollama"
	openaiemb "github.com/sigil-dev/recall/internal/embedding/openai"
	"github.com/sigil-dev/recall/internal/eval"
	_ "github.com/sigil-dev/recall/internal/index/chromem"   // register chromem backend
	_ "github.com/sigil-dev/recall/internal/index/hnsw"      // register hnsw backend
	_ "github.com/sigil-dev/recall/internal/index/sqlitevec" // register sqlitevec backend
	"github.com/sigil-dev/recall/internal/judge"
	anthropicjudge "github.com/sigil-dev/recall/internal/judge/anthropic"
	googlejudge "github.com/sigil-dev/recall/internal/judge/google"
	ollamajudge "github.com/sigil-dev/recall/internal/judge/ollama"
	openaijudge "github.com/sigil-dev/recall/internal/judge/openai"
	"github.com/sigil-dev/recall/internal/memory"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// App holds the wired subsystems a command needs. Judge and Scorer are nil
// when no judge could be configured and none was required.
type App struct {
	Memory *memory.Store
	Judge  *judge.Guarded
	Scorer *eval.RetrievalScorer

	cache *embedding.Cached
}

// WireOptions selects which subsystems to build.
type WireOptions struct {
	Memory bool
	// RequireJudge turns a judge configuration problem into an error instead
	// of a warning.
	RequireJudge bool
}

// Wire builds the subsystems selected by opts from cfg.
func Wire(cfg *config.Config, opts WireOptions) (*App, error) {
	app := &App{}

	if opts.Memory {
		emb, err := newEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		if c, ok := emb.(*embedding.Cached); ok {
			app.cache = c
		}

		store, err := memory.New(memory.Config{
			EmbModelName:   cfg.Memory.EmbModelName,
			Dimension:      cfg.Memory.Dimension,
			UseGPU:         cfg.Memory.UseGPU,
			TopK:           cfg.Memory.TopK,
			ScoreThreshold: cfg.Memory.ScoreThreshold,
			Index:          cfg.Memory.Index,
		}, emb)
		if err != nil {
			app.closeCache()
			return nil, recallerr.Wrapf(err, recallerr.CodeCLISetupFailure, "creating memory store")
		}
		app.Memory = store
	}

	j, err := newJudge(cfg.Judge)
	switch {
	case err != nil && opts.RequireJudge:
		_ = app.Close()
		return nil, recallerr.Wrapf(err, recallerr.CodeCLISetupFailure, "creating judge")
	case err != nil:
		slog.Warn("judge not configured, retrieval evaluation disabled", "provider", cfg.Judge.Provider, "error", err)
	default:
		tracker, err := judge.NewHealthTracker(cfg.Judge.Cooldown)
		if err != nil {
			_ = app.Close()
			return nil, recallerr.Wrapf(err, recallerr.CodeCLISetupFailure, "creating judge health tracker")
		}
		agg, err := eval.AggregatorByName(cfg.Judge.Aggregation)
		if err != nil {
			_ = app.Close()
			return nil, recallerr.Wrapf(err, recallerr.CodeCLISetupFailure, "selecting aggregation")
		}

		var guardOpts []judge.GuardOption
		if cfg.Judge.FailFast {
			guardOpts = append(guardOpts, judge.WithFailFast())
		}
		app.Judge = judge.Guard(j, tracker, guardOpts...)
		app.Scorer = eval.NewRetrievalScorer(app.Judge,
			eval.WithTimeout(cfg.Judge.Timeout),
			eval.WithAggregator(agg),
			eval.WithConcurrency(cfg.Judge.Concurrency),
		)
		slog.Debug("judge configured", "judge", j.Name())
	}

	return app, nil
}

// Close releases the memory index and the embedding cache.
func (a *App) Close() error {
	var errs []error
	if a.Memory != nil {
		errs = append(errs, a.Memory.Close())
	}
	a.closeCache()
	return errors.Join(errs...)
}

func (a *App) closeCache() {
	if a.cache != nil {
		a.cache.Close()
		a.cache = nil
	}
}

// newEmbedder builds the configured provider, wrapped in a cache when
// embedding.cache_size is positive. The hash provider needs no network and is
// never cached.
func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	e := cfg.Embedding
	model := cfg.Memory.EmbModelName

	var (
		emb embedding.Embedder
		err error
	)
	switch strings.ToLower(e.Provider) {
	case "hash":
		return embedding.NewHash(cfg.Memory.Dimension), nil
	case "openai":
		emb, err = openaiemb.New(openaiemb.Config{
			APIKey:     e.APIKey,
			BaseURL:    e.BaseURL,
			Model:      model,
			Dimensions: cfg.Memory.Dimension,
		})
	case "azure":
		emb, err = azureemb.New(azureemb.Config{
			APIKey:     e.APIKey,
			Endpoint:   e.BaseURL,
			Model:      model,
			APIVersion: e.APIVersion,
			Dimensions: cfg.Memory.Dimension,
		})
	case "google":
		emb, err = googleemb.New(googleemb.Config{
			APIKey:     e.APIKey,
			BaseURL:    e.BaseURL,
			Model:      model,
			Dimensions: cfg.Memory.Dimension,
		})
	case "ollama":
		emb, err = ollamaemb.New(ollamaemb.Config{
			Host:  e.BaseURL,
			Model: model,
		})
	default:
		return nil, recallerr.Errorf(recallerr.CodeEmbeddingProviderNotFound, "unknown embedding provider %q", e.Provider)
	}
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeCLISetupFailure, "creating %s embedder", e.Provider)
	}

	if e.CacheSize <= 0 {
		return emb, nil
	}
	cached, err := embedding.NewCached(emb, e.CacheSize)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeCLISetupFailure, "creating embedding cache")
	}
	return cached, nil
}

func newJudge(cfg config.JudgeConfig) (judge.Judge, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return anthropicjudge.New(anthropicjudge.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "openai":
		return openaijudge.New(openaijudge.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "google":
		return googlejudge.New(googlejudge.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "ollama":
		return ollamajudge.New(ollamajudge.Config{Host: cfg.BaseURL, Model: cfg.Model})
	default:
		return nil, recallerr.Errorf(recallerr.CodeJudgeProviderNotFound, "unknown judge provider %q", cfg.Provider)
	}
}

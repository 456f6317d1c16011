// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigil-dev/recall/internal/config"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg := validConfig(t)

	assert.Equal(t, "text-embedding-3-large", cfg.Memory.EmbModelName)
	assert.Equal(t, 3072, cfg.Memory.Dimension)
	assert.Equal(t, 2, cfg.Memory.TopK)
	assert.Equal(t, 0.0, cfg.Memory.ScoreThreshold)
	assert.Equal(t, "flat", cfg.Memory.Index)
	assert.False(t, cfg.Memory.UseGPU)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, int64(10_000), cfg.Embedding.CacheSize)

	assert.Equal(t, 600*time.Second, cfg.Judge.Timeout)
	assert.Equal(t, "mean", cfg.Judge.Aggregation)
	assert.Equal(t, 4, cfg.Judge.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Judge.Cooldown)
	assert.False(t, cfg.Judge.FailFast)

	assert.Equal(t, "127.0.0.1:8470", cfg.Server.Listen)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
memory:
  dimension: 768
  top_k: 5
  score_threshold: 0.4
  index: hnsw
embedding:
  provider: ollama
judge:
  provider: anthropic
  timeout: 45s
server:
  listen: "0.0.0.0:9000"
  cors_origins: ["http://localhost:3000"]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Memory.Dimension)
	assert.Equal(t, 5, cfg.Memory.TopK)
	assert.Equal(t, 0.4, cfg.Memory.ScoreThreshold)
	assert.Equal(t, "hnsw", cfg.Memory.Index)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "anthropic", cfg.Judge.Provider)
	assert.Equal(t, 45*time.Second, cfg.Judge.Timeout)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "mean", cfg.Judge.Aggregation, "unset keys keep defaults")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RECALL_MEMORY_TOP_K", "7")
	t.Setenv("RECALL_JUDGE_API_KEY", "sk-env")
	t.Setenv("RECALL_SERVER_LISTEN", "10.0.0.1:8080")

	cfg := validConfig(t)
	assert.Equal(t, 7, cfg.Memory.TopK)
	assert.Equal(t, "sk-env", cfg.Judge.APIKey)
	assert.Equal(t, "10.0.0.1:8080", cfg.Server.Listen)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeConfigLoadReadFailure))
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	path := writeConfig(t, "memory:\n  index: faiss\n")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory.index")
	assert.True(t, recallerr.IsInvalidInput(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantKey string
	}{
		{"zero dimension", func(c *config.Config) { c.Memory.Dimension = 0 }, "memory.dimension"},
		{"zero top_k", func(c *config.Config) { c.Memory.TopK = 0 }, "memory.top_k"},
		{"threshold above one", func(c *config.Config) { c.Memory.ScoreThreshold = 1.5 }, "memory.score_threshold"},
		{"negative threshold", func(c *config.Config) { c.Memory.ScoreThreshold = -0.1 }, "memory.score_threshold"},
		{"unknown index", func(c *config.Config) { c.Memory.Index = "annoy" }, "memory.index"},
		{"empty model", func(c *config.Config) { c.Memory.EmbModelName = "" }, "memory.emb_model_name"},
		{"unknown embedding provider", func(c *config.Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"azure without endpoint", func(c *config.Config) { c.Embedding.Provider = "azure" }, "embedding.base_url"},
		{"negative cache", func(c *config.Config) { c.Embedding.CacheSize = -1 }, "embedding.cache_size"},
		{"unknown judge provider", func(c *config.Config) { c.Judge.Provider = "mistral" }, "judge.provider"},
		{"zero timeout", func(c *config.Config) { c.Judge.Timeout = 0 }, "judge.timeout"},
		{"unknown aggregation", func(c *config.Config) { c.Judge.Aggregation = "mode" }, "judge.aggregation"},
		{"zero concurrency", func(c *config.Config) { c.Judge.Concurrency = 0 }, "judge.concurrency"},
		{"zero cooldown", func(c *config.Config) { c.Judge.Cooldown = 0 }, "judge.cooldown"},
		{"empty listen", func(c *config.Config) { c.Server.Listen = "" }, "server.listen"},
		{"listen without port", func(c *config.Config) { c.Server.Listen = "localhost" }, "server.listen"},
		{"listen port text", func(c *config.Config) { c.Server.Listen = "localhost:http" }, "server.listen"},
		{"listen port range", func(c *config.Config) { c.Server.Listen = ":70000" }, "server.listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tt.wantKey)
			assert.True(t, recallerr.HasCode(errs[0], recallerr.CodeConfigValidateInvalidValue))
		})
	}
}

func TestValidate_AggregationCaseInsensitive(t *testing.T) {
	cfg := validConfig(t)
	cfg.Judge.Aggregation = "Median"
	assert.Empty(t, cfg.Validate())
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Memory.Dimension = -1
	cfg.Judge.Provider = ""
	cfg.Server.Listen = ""

	assert.Len(t, cfg.Validate(), 3)
}

func TestFromViper_UsesProvidedInstance(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("memory.index", "chromem")
	v.Set("judge.timeout", "2m")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "chromem", cfg.Memory.Index)
	assert.Equal(t, 2*time.Minute, cfg.Judge.Timeout)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "recall.yaml")

	written, err := config.WriteDefault(path)
	require.NoError(t, err)
	assert.True(t, written)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "keyring://recall/judge-api-key", cfg.Judge.APIKey)

	written, err = config.WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, written)
}

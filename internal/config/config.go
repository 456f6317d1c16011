// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package config loads recall configuration from defaults, an optional YAML
// file and RECALL_* environment variables.
package config

import (
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. RECALL_MEMORY_TOP_K.
const EnvPrefix = "RECALL"

// Config is the top-level recall configuration.
type Config struct {
	Memory    MemoryConfig    `mapstructure:"memory"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Judge     JudgeConfig     `mapstructure:"judge"`
	Server    ServerConfig    `mapstructure:"server"`
}

// MemoryConfig shapes the vector memory store.
type MemoryConfig struct {
	EmbModelName   string  `mapstructure:"emb_model_name"`
	Dimension      int     `mapstructure:"dimension"`
	UseGPU         bool    `mapstructure:"use_gpu"`
	TopK           int     `mapstructure:"top_k"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	Index          string  `mapstructure:"index"`
}

// EmbeddingConfig selects the embedding provider. The model comes from
// memory.emb_model_name.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	APIVersion string `mapstructure:"api_version"`
	CacheSize  int64  `mapstructure:"cache_size"`
}

// JudgeConfig selects the model that grades retrieval quality.
type JudgeConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Aggregation string        `mapstructure:"aggregation"`
	Concurrency int           `mapstructure:"concurrency"`
	// Cooldown is how long /health reports the judge degraded after a failure.
	Cooldown time.Duration `mapstructure:"cooldown"`
	// FailFast skips judge calls during the cooldown; those scores are NaN.
	FailFast bool `mapstructure:"fail_fast"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

var (
	embeddingProviders = []string{"openai", "azure", "google", "ollama", "hash"}
	judgeProviders     = []string{"anthropic", "openai", "google", "ollama"}
	indexBackends      = []string{"flat", "sqlitevec", "hnsw", "chromem"}
	aggregations       = []string{"mean", "median", "min", "max"}
)

// SetDefaults registers every default on v. Env overrides only apply to keys
// viper knows about, so every key gets a default here.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("memory.emb_model_name", "text-embedding-3-large")
	v.SetDefault("memory.dimension", 3072)
	v.SetDefault("memory.use_gpu", false)
	v.SetDefault("memory.top_k", 2)
	v.SetDefault("memory.score_threshold", 0.0)
	v.SetDefault("memory.index", "flat")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_version", "")
	v.SetDefault("embedding.cache_size", 10_000)

	v.SetDefault("judge.provider", "openai")
	v.SetDefault("judge.model", "")
	v.SetDefault("judge.api_key", "")
	v.SetDefault("judge.base_url", "")
	v.SetDefault("judge.timeout", 600*time.Second)
	v.SetDefault("judge.aggregation", "mean")
	v.SetDefault("judge.concurrency", 4)
	v.SetDefault("judge.cooldown", 30*time.Second)
	v.SetDefault("judge.fail_fast", false)

	v.SetDefault("server.listen", "127.0.0.1:8470")
	v.SetDefault("server.cors_origins", []string{})
}

// SetupEnv binds RECALL_* environment variables, with '.' in keys mapped to
// '_'.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, recallerr.Errorf(recallerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Load reads configuration from path (or defaults only when path is empty)
// with environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, recallerr.Errorf(recallerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors, collecting every
// problem rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateMemory()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateJudge()...)
	errs = append(errs, c.validateServer()...)

	return errs
}

func (c *Config) validateMemory() []error {
	var errs []error
	m := c.Memory

	if m.Dimension <= 0 {
		errs = append(errs, invalid("config: memory.dimension must be greater than 0, got %d", m.Dimension))
	}
	if m.TopK < 1 {
		errs = append(errs, invalid("config: memory.top_k must be at least 1, got %d", m.TopK))
	}
	if m.ScoreThreshold < 0 || m.ScoreThreshold > 1 {
		errs = append(errs, invalid("config: memory.score_threshold must be within [0, 1], got %g", m.ScoreThreshold))
	}
	if !slices.Contains(indexBackends, m.Index) {
		errs = append(errs, invalid("config: memory.index must be one of %v, got %q", indexBackends, m.Index))
	}
	if m.EmbModelName == "" {
		errs = append(errs, invalid("config: memory.emb_model_name must not be empty"))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error
	e := c.Embedding

	if !slices.Contains(embeddingProviders, e.Provider) {
		errs = append(errs, invalid("config: embedding.provider must be one of %v, got %q", embeddingProviders, e.Provider))
	}
	if e.Provider == "azure" && e.BaseURL == "" {
		errs = append(errs, invalid("config: embedding.base_url is required for the azure provider"))
	}
	if e.CacheSize < 0 {
		errs = append(errs, invalid("config: embedding.cache_size must not be negative, got %d", e.CacheSize))
	}

	return errs
}

func (c *Config) validateJudge() []error {
	var errs []error
	j := c.Judge

	if !slices.Contains(judgeProviders, j.Provider) {
		errs = append(errs, invalid("config: judge.provider must be one of %v, got %q", judgeProviders, j.Provider))
	}
	if j.Timeout <= 0 {
		errs = append(errs, invalid("config: judge.timeout must be positive, got %s", j.Timeout))
	}
	if !slices.Contains(aggregations, strings.ToLower(j.Aggregation)) {
		errs = append(errs, invalid("config: judge.aggregation must be one of %v, got %q", aggregations, j.Aggregation))
	}
	if j.Concurrency < 1 {
		errs = append(errs, invalid("config: judge.concurrency must be at least 1, got %d", j.Concurrency))
	}
	if j.Cooldown <= 0 {
		errs = append(errs, invalid("config: judge.cooldown must be positive, got %s", j.Cooldown))
	}

	return errs
}

func (c *Config) validateServer() []error {
	if c.Server.Listen == "" {
		return []error{invalid("config: server.listen must not be empty")}
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return []error{recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err)}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return []error{invalid("config: server.listen port must be a number, got %q", portStr)}
	}
	if port < 1 || port > 65535 {
		return []error{invalid("config: server.listen port must be between 1 and 65535, got %d", port)}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue, format, args...)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package memory implements an in-process vector memory: content is embedded
// on insertion and retrieved by nearest-neighbour search with a similarity
// score threshold.
//
// A Store performs no internal locking. Add, Commit and Clear must be
// serialized by the caller; Query and Nearest calls may run concurrently with
// each other while no writer is active. Prepare and EmbedQuery touch only the
// embedder and need no serialization, so callers can keep slow embedding
// calls outside their own locks.
package memory

import (
	"context"
	"log/slog"
	"maps"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sigil-dev/recall/internal/embedding"
	"github.com/sigil-dev/recall/internal/index"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

const (
	DefaultTopK           = 2
	DefaultScoreThreshold = 0.0

	// ScoreKey is the metadata key carrying the similarity score of a match.
	ScoreKey = "score"
)

var tracer = otel.Tracer("github.com/sigil-dev/recall/internal/memory")

// MimeKind tags how content is interpreted before embedding.
type MimeKind string

const (
	MimeText     MimeKind = "text/plain"
	MimeMarkdown MimeKind = "text/markdown"
	MimeJSON     MimeKind = "application/json"
)

// Valid reports whether k is a supported content kind.
func (k MimeKind) Valid() bool {
	switch k {
	case MimeText, MimeMarkdown, MimeJSON:
		return true
	}
	return false
}

// Config is fixed at construction.
type Config struct {
	EmbModelName   string  `json:"emb_model_name" mapstructure:"emb_model_name"`
	Dimension      int     `json:"dimension" mapstructure:"dimension"`
	UseGPU         bool    `json:"use_gpu" mapstructure:"use_gpu"`
	TopK           int     `json:"top_k" mapstructure:"top_k"`
	ScoreThreshold float64 `json:"score_threshold" mapstructure:"score_threshold"`
	// Index names the similarity index backend; empty selects index.DefaultBackend.
	Index string `json:"index" mapstructure:"index"`
}

func (c *Config) applyDefaults() {
	if c.EmbModelName == "" {
		c.EmbModelName = embedding.DefaultModel
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.Index == "" {
		c.Index = index.DefaultBackend
	}
}

// Validate returns every problem found in c.
func (c Config) Validate() []error {
	var errs []error
	if c.Dimension <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeMemoryConfigInvalid,
			"memory: dimension must be greater than 0, got %d", c.Dimension))
	}
	if c.TopK < 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeMemoryConfigInvalid,
			"memory: top_k must not be negative, got %d", c.TopK))
	}
	return errs
}

// Record is one stored entry. Records are immutable once added.
type Record struct {
	ID        string
	Embedding []float32
	Content   string
	MimeKind  MimeKind
	Metadata  map[string]any
}

// Match is a query hit. Metadata is a copy of the record metadata with
// ScoreKey set.
type Match struct {
	ID       string
	Content  string
	MimeKind MimeKind
	Score    float64
	Distance float64
	Metadata map[string]any
}

// Option customises a Store.
type Option func(*Store)

// WithIndex supplies a prebuilt index instead of building one from
// Config.Index. The index must be empty.
func WithIndex(idx index.Index) Option {
	return func(s *Store) { s.index = idx }
}

// Store is a vector memory. Record i always corresponds to index position i.
type Store struct {
	cfg      Config
	embedder embedding.Embedder
	index    index.Index
	records  []Record
}

// New validates cfg, applies defaults and builds the store.
func New(cfg Config, embedder embedding.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, recallerr.New(recallerr.CodeMemoryConfigInvalid, "memory: embedder is required")
	}
	cfg.applyDefaults()
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs[0]
	}

	s := &Store{cfg: cfg, embedder: embedder}
	for _, opt := range opts {
		opt(s)
	}

	if s.index == nil {
		idx, err := index.New(index.Config{
			Backend:    cfg.Index,
			Dimension:  cfg.Dimension,
			Accelerate: cfg.UseGPU,
		})
		if err != nil {
			return nil, err
		}
		s.index = idx
	}
	if n := s.index.Len(); n != 0 {
		return nil, recallerr.Errorf(recallerr.CodeMemoryConfigInvalid,
			"memory: index must start empty, has %d vectors", n)
	}

	slog.Debug("memory store created",
		"index", cfg.Index,
		"dimension", cfg.Dimension,
		"top_k", cfg.TopK,
		"embedder", embedder.Name(),
	)
	return s, nil
}

// Pending is an embedded record that has not been stored yet.
type Pending struct {
	rec Record
}

// Add embeds content and appends a new record. JSON content is flattened
// with FlattenJSON before embedding; the stored content is the original text.
func (s *Store) Add(ctx context.Context, content string, kind MimeKind, metadata map[string]any) (Record, error) {
	p, err := s.Prepare(ctx, content, kind, metadata)
	if err != nil {
		return Record{}, err
	}
	return s.Commit(ctx, p)
}

// Prepare validates and embeds content without touching the index.
func (s *Store) Prepare(ctx context.Context, content string, kind MimeKind, metadata map[string]any) (Pending, error) {
	ctx, span := tracer.Start(ctx, "memory.Prepare")
	defer span.End()

	if kind == "" {
		kind = MimeText
	}
	if !kind.Valid() {
		return Pending{}, recallerr.Errorf(recallerr.CodeMemoryAddInvalidInput, "memory: unsupported mime kind %q", kind)
	}
	span.SetAttributes(attribute.String("memory.mime_kind", string(kind)))

	text := content
	if kind == MimeJSON {
		flat, err := FlattenJSON([]byte(content))
		if err != nil {
			return Pending{}, err
		}
		text = flat
	}

	vec, err := s.embed(ctx, text, recallerr.CodeMemoryAddEmbedFailure)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return Pending{}, err
	}

	rec := Record{
		Embedding: vec,
		Content:   content,
		MimeKind:  kind,
		Metadata:  maps.Clone(metadata),
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	return Pending{rec: rec}, nil
}

// Commit inserts a prepared record into the index and assigns its ID.
func (s *Store) Commit(ctx context.Context, p Pending) (Record, error) {
	ctx, span := tracer.Start(ctx, "memory.Commit")
	defer span.End()

	if p.rec.Embedding == nil {
		return Record{}, recallerr.New(recallerr.CodeMemoryAddInvalidInput, "memory: commit of an unprepared record")
	}
	if err := s.index.Insert(ctx, p.rec.Embedding); err != nil {
		span.RecordError(err)
		return Record{}, recallerr.Wrap(err, recallerr.CodeMemoryAddIndexFailure, "memory: inserting into index")
	}

	rec := p.rec
	rec.ID = uuid.NewString()
	s.records = append(s.records, rec)

	span.SetAttributes(attribute.Int("memory.records", len(s.records)))
	slog.Debug("memory record added", "id", rec.ID, "mime_kind", rec.MimeKind, "records", len(s.records))
	return rec, nil
}

// Query returns up to TopK matches ordered by ascending distance, dropping
// matches scored below ScoreThreshold. An empty store yields an empty result
// without calling the embedder.
func (s *Store) Query(ctx context.Context, content string) ([]Match, error) {
	if len(s.records) == 0 || s.cfg.TopK == 0 {
		return []Match{}, nil
	}
	vec, err := s.EmbedQuery(ctx, content)
	if err != nil {
		return nil, err
	}
	return s.Nearest(ctx, vec)
}

// EmbedQuery embeds query content for a later Nearest call.
func (s *Store) EmbedQuery(ctx context.Context, content string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "memory.EmbedQuery")
	defer span.End()

	vec, err := s.embed(ctx, content, recallerr.CodeMemoryQueryEmbedFailure)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, err
	}
	return vec, nil
}

// Nearest searches the index for an already embedded query.
func (s *Store) Nearest(ctx context.Context, vec []float32) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "memory.Nearest")
	defer span.End()
	span.SetAttributes(attribute.Int("memory.top_k", s.cfg.TopK))

	if len(s.records) == 0 || s.cfg.TopK == 0 {
		return []Match{}, nil
	}

	neighbors, err := s.index.Search(ctx, vec, s.cfg.TopK)
	if err != nil {
		span.RecordError(err)
		return nil, recallerr.Wrap(err, recallerr.CodeMemoryQueryIndexFailure, "memory: searching index")
	}

	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Position == index.NoMatch || n.Position < 0 || n.Position >= len(s.records) {
			continue
		}

		score := Score(n.Distance)
		if score < s.cfg.ScoreThreshold {
			continue
		}

		rec := s.records[n.Position]
		meta := make(map[string]any, len(rec.Metadata)+1)
		maps.Copy(meta, rec.Metadata)
		meta[ScoreKey] = score

		matches = append(matches, Match{
			ID:       rec.ID,
			Content:  rec.Content,
			MimeKind: rec.MimeKind,
			Score:    score,
			Distance: n.Distance,
			Metadata: meta,
		})
	}

	span.SetAttributes(attribute.Int("memory.matches", len(matches)))
	return matches, nil
}

// UpdateContext retrieves the matches for content and renders them as a
// context block for a retrieval evaluation.
func (s *Store) UpdateContext(ctx context.Context, content string) (string, error) {
	matches, err := s.Query(ctx, content)
	if err != nil {
		return "", err
	}
	slog.Debug("memory context updated", "matches", len(matches))
	return RenderContext(matches), nil
}

// RenderContext joins match contents, best first, one per paragraph.
func RenderContext(matches []Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n\n")
}

// Clear drops every record and resets the index.
func (s *Store) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "memory.Clear")
	defer span.End()

	if err := s.index.Reset(ctx); err != nil {
		span.RecordError(err)
		return recallerr.Wrap(err, recallerr.CodeMemoryClearFailure, "memory: resetting index")
	}
	s.records = nil

	slog.Debug("memory store cleared")
	return nil
}

// Close releases the index. The store holds no other resources.
func (s *Store) Close() error {
	return s.index.Close()
}

// Len returns the number of stored records.
func (s *Store) Len() int { return len(s.records) }

// Dump returns the effective configuration, defaults applied.
func (s *Store) Dump() Config { return s.cfg }

// Score converts an L2 distance into a similarity in (0, 1].
func Score(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

func (s *Store) embed(ctx context.Context, text string, code recallerr.Code) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, recallerr.Wrap(err, code, "memory: embedding content",
			recallerr.FieldProvider(s.embedder.Name()))
	}
	if len(vec) != s.cfg.Dimension {
		return nil, recallerr.Errorf(recallerr.CodeMemoryEmbeddingDimMismatch,
			"memory: embedder %s returned %d dimensions, store expects %d",
			s.embedder.Name(), len(vec), s.cfg.Dimension)
	}
	return vec, nil
}

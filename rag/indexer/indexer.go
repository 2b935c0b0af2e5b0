// Package indexer embeds text chunks and writes them to the vector store.
package indexer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/rag"
	"github.com/smallnest/campusrag/rag/qdrant"
)

// DefaultUpsertBatch is how many points go in one upsert request.
const DefaultUpsertBatch = 64

// Chunk is one unit to index.
type Chunk struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Title   string         `json:"title,omitempty"`
	URL     string         `json:"url,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Result reports an indexing run.
type Result struct {
	Count int `json:"count"`
	Dim   int `json:"dim"`
}

// VectorStore is the write side of the vector database.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, points []qdrant.Point) error
}

// Indexer embeds chunks and upserts them.
type Indexer struct {
	embedder    rag.Embedder
	store       VectorStore
	denseName   string
	upsertBatch int
	logger      log.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithDenseName sets the dense vector name, default "dense".
func WithDenseName(name string) Option {
	return func(ix *Indexer) { ix.denseName = name }
}

// WithUpsertBatch sets the number of points per upsert.
func WithUpsertBatch(n int) Option {
	return func(ix *Indexer) { ix.upsertBatch = n }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// New creates an Indexer.
func New(embedder rag.Embedder, store VectorStore, opts ...Option) *Indexer {
	ix := &Indexer{
		embedder:    embedder,
		store:       store,
		denseName:   qdrant.DefaultDenseName,
		upsertBatch: DefaultUpsertBatch,
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.upsertBatch <= 0 {
		ix.upsertBatch = DefaultUpsertBatch
	}
	ix.logger = log.OrDefault(ix.logger)
	return ix
}

// Index embeds and stores chunks. HTML text is converted to plain text and
// chunks left without text are skipped.
func (ix *Indexer) Index(ctx context.Context, chunks []Chunk) (Result, error) {
	kept := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if LooksLikeHTML(c.Text) {
			text, err := HTMLToText(c.Text)
			if err != nil {
				return Result{}, fmt.Errorf("failed to convert chunk %s: %w", c.ID, err)
			}
			c.Text = text
		}
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			ix.logger.Debug("indexer.skip_empty id=%s", c.ID)
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return Result{}, nil
	}

	texts := make([]string, len(kept))
	for i, c := range kept {
		texts[i] = EmbeddingText(c)
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return Result{}, err
	}
	if len(vectors) != len(kept) || len(vectors[0]) == 0 {
		return Result{}, rag.Upstream(fmt.Sprintf("embedding returned %d vectors for %d chunks", len(vectors), len(kept)), 0, "", nil)
	}
	dim := len(vectors[0])

	if err := ix.store.EnsureCollection(ctx, dim); err != nil {
		return Result{}, err
	}

	points := make([]qdrant.Point, len(kept))
	for i, c := range kept {
		points[i] = qdrant.Point{
			ID:      PointID(c.ID),
			Vector:  map[string][]float32{ix.denseName: vectors[i]},
			Payload: payloadFor(c),
		}
	}
	for start := 0; start < len(points); start += ix.upsertBatch {
		end := min(start+ix.upsertBatch, len(points))
		if err := ix.store.Upsert(ctx, points[start:end]); err != nil {
			return Result{}, err
		}
	}

	ix.logger.Info("indexer.indexed count=%d dim=%d", len(kept), dim)
	return Result{Count: len(kept), Dim: dim}, nil
}

// EmbeddingText is the text embedded for c: optional title and section
// lines followed by the chunk text.
func EmbeddingText(c Chunk) string {
	parts := make([]string, 0, 3)
	if c.Title != "" {
		parts = append(parts, "Title: "+c.Title)
	}
	if section := sectionOf(c.Payload); section != "" {
		parts = append(parts, "Section: "+section)
	}
	parts = append(parts, c.Text)
	return strings.Join(parts, "\n\n")
}

func sectionOf(payload map[string]any) string {
	for _, k := range []string{"section", "SECTION", "Section"} {
		if v, ok := payload[k]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func payloadFor(c Chunk) map[string]any {
	p := map[string]any{
		"original_id": c.ID,
		"text":        c.Text,
	}
	if c.Title != "" {
		p["title"] = c.Title
	}
	if c.URL != "" {
		p["url"] = c.URL
	}
	// Custom payload keys win.
	for k, v := range c.Payload {
		p[k] = v
	}
	return p
}

// PointID maps a chunk id to a valid point id: unsigned integer strings
// become numbers, canonical UUIDs are kept and anything else gets a fresh
// random UUID.
func PointID(id string) any {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}
	if len(id) == 36 {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return uuid.NewString()
}

package rag

import "context"

// Source types reported on AnswerResult.
const (
	SourceTypeRAG  = "rag"
	SourceTypeNone = "none"
)

// Query is one answer request.
type Query struct {
	Question         string `json:"question"`
	TopK             int    `json:"topK,omitempty"`
	Model            string `json:"model,omitempty"`
	Summary          string `json:"summary,omitempty"`
	RecentTranscript string `json:"recentTranscript,omitempty"`
	// UserID selects the per-user partition filter when one is configured.
	UserID string `json:"uid,omitempty"`
}

// Payload is the stored metadata of an indexed chunk.
type Payload struct {
	Text  string         `json:"text"`
	Title string         `json:"title,omitempty"`
	URL   string         `json:"url,omitempty"`
	Extra map[string]any `json:"-"`
}

// Candidate is one hit from a single retrieval mode. Rank is its 0-based
// position in that mode's result list.
type Candidate struct {
	ID      string
	Score   float64
	Rank    int
	Payload Payload
}

// FusedCandidate is a candidate after rank fusion. Score is the sum of its
// reciprocal-rank contributions across modes.
type FusedCandidate struct {
	ID      string
	Score   float64
	Payload Payload
}

// ContextChunk is an assembled snippet shown to the model.
type ContextChunk struct {
	Title string  `json:"title,omitempty"`
	URL   string  `json:"url,omitempty"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Source is the caller-facing citation of a context chunk. Idx starts at 1
// and matches the [n] number used in the prompt.
type Source struct {
	Idx   int     `json:"idx"`
	Title string  `json:"title,omitempty"`
	URL   string  `json:"url,omitempty"`
	Score float64 `json:"score"`
}

// AnswerResult is the outcome of an answer request.
type AnswerResult struct {
	Reply      string         `json:"reply"`
	ReplyHTML  string         `json:"reply_html,omitempty"`
	PrimaryURL *string        `json:"primary_url"`
	BestScore  float64        `json:"best_score"`
	Sources    []Source       `json:"sources"`
	SourceType string         `json:"source_type"`
	Chunks     []ContextChunk `json:"-"`
}

// Condition matches a payload key against a value.
type Condition struct {
	Key   string
	Value any
}

// Filter restricts a vector search to points whose payload satisfies every
// Must condition and none of the MustNot conditions.
type Filter struct {
	Must    []Condition
	MustNot []Condition
}

// Empty reports whether the filter has no conditions.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.Must) == 0 && len(f.MustNot) == 0)
}

// SearchOptions configures one vector search call.
type SearchOptions struct {
	Limit int
	// ScoreThreshold is the backend-side floor. Zero omits it.
	ScoreThreshold float64
	Filter         *Filter
	// HNSWEf tunes dense search. Zero omits it.
	HNSWEf int
}

// Embedder turns texts into dense vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorSearcher runs dense and sparse searches against one collection.
type VectorSearcher interface {
	Dense(ctx context.Context, vector []float32, opts SearchOptions) ([]Candidate, error)
	Sparse(ctx context.Context, text string, opts SearchOptions) ([]Candidate, error)
}

// Package embedding is the client for an OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/rag"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "https://api.publicai.co/v1"
	// MaxChars is the per-text cap applied before sending.
	MaxChars = 8000
	// DefaultBatchSize is the number of texts per request in Embed.
	DefaultBatchSize = 16
	// DefaultPause separates consecutive sub-batches in Embed.
	DefaultPause = 150 * time.Millisecond
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	BatchSize int
	// Pause between sub-batches. Negative disables pacing.
	Pause      time.Duration
	HTTPClient *http.Client
	Logger     log.Logger
}

// Client embeds texts through the /embeddings endpoint.
type Client struct {
	api       *openai.Client
	model     string
	baseURL   string
	batchSize int
	pause     time.Duration
	logger    log.Logger
}

var _ rag.Embedder = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	baseURL := WithV1(cfg.BaseURL)
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = baseURL
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	pause := cfg.Pause
	if pause == 0 {
		pause = DefaultPause
	}
	if pause < 0 {
		pause = 0
	}

	return &Client{
		api:       openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		baseURL:   baseURL,
		batchSize: batch,
		pause:     pause,
		logger:    log.OrDefault(cfg.Logger),
	}
}

// WithV1 normalizes a base URL so it ends with the /v1 API prefix. An empty
// value yields DefaultBaseURL; a URL already containing /v1 is kept.
func WithV1(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return DefaultBaseURL
	}
	if strings.Contains(u, "/v1") {
		return u
	}
	return strings.TrimRight(u, "/") + "/v1"
}

// Sanitize trims every text, cuts it to MaxChars and drops the empty ones.
func Sanitize(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		t = rag.Clamp(strings.TrimSpace(t), MaxChars)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// EmbedBatch embeds texts in one request. Texts are sanitized first; if none
// survive, an InvalidArgument error is returned without a network call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	clean := Sanitize(texts)
	if len(clean) == 0 {
		return nil, rag.InvalidArgument("no valid texts to embed")
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: clean,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		upstream := c.classify(err)
		c.logger.Error("embedding.failed status=%d url=%s model=%s batch=%d payload=%q",
			upstream.Status, c.baseURL, c.model, len(clean), upstream.Payload)
		return nil, upstream
	}

	if len(resp.Data) == 0 {
		return nil, rag.Upstream("embedding response has no data", http.StatusOK, "", nil)
	}
	if len(resp.Data) != len(clean) {
		return nil, rag.Upstream(
			fmt.Sprintf("embedding response has %d vectors for %d inputs", len(resp.Data), len(clean)),
			http.StatusOK, "", nil)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Embed splits texts into sub-batches and embeds them in order, pausing
// between consecutive sub-batches.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var limiter *rate.Limiter
	if c.pause > 0 {
		limiter = rate.NewLimiter(rate.Every(c.pause), 1)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("failed to wait for embedding slot: %w", err)
			}
		}
		vecs, err := c.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	if len(out) == 0 {
		return nil, rag.InvalidArgument("no valid texts to embed")
	}
	return out, nil
}

func (c *Client) classify(err error) *rag.Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return rag.Upstream("embedding request failed", apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return rag.Upstream("embedding request failed", reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	return rag.Upstream("embedding request failed", 0, err.Error(), err)
}

// Package qdrant is a small REST client for the Qdrant endpoints campusrag
// uses: named dense and sparse search, collection creation and point upsert.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/rag"
)

const (
	DefaultDenseName  = "dense"
	DefaultSparseName = "sparse"
	DefaultTimeout    = 15 * time.Second
	// DefaultDistance is used when creating a collection.
	DefaultDistance = "Cosine"
)

// Config configures a Client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	// DenseName and SparseName are the named vectors of the collection.
	DenseName  string
	SparseName string
	HTTPClient *http.Client
	Logger     log.Logger
}

// Client talks to one Qdrant collection.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	denseName  string
	sparseName string
	http       *http.Client
	logger     log.Logger
}

var _ rag.VectorSearcher = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	dense := cfg.DenseName
	if dense == "" {
		dense = DefaultDenseName
	}
	sparse := cfg.SparseName
	if sparse == "" {
		sparse = DefaultSparseName
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		denseName:  dense,
		sparseName: sparse,
		http:       hc,
		logger:     log.OrDefault(cfg.Logger),
	}
}

type namedVector struct {
	Name   string    `json:"name"`
	Vector []float32 `json:"vector"`
}

type namedSparseText struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type searchParams struct {
	HNSWEf int `json:"hnsw_ef,omitempty"`
}

type searchRequest struct {
	Vector         *namedVector     `json:"vector,omitempty"`
	Sparse         *namedSparseText `json:"sparse,omitempty"`
	Params         *searchParams    `json:"params,omitempty"`
	Filter         *filterJSON      `json:"filter,omitempty"`
	Limit          int              `json:"limit"`
	WithPayload    bool             `json:"with_payload"`
	ScoreThreshold *float64         `json:"score_threshold,omitempty"`
}

type scoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type searchResponse struct {
	Result []scoredPoint `json:"result"`
}

// Dense runs a search on the dense named vector.
func (c *Client) Dense(ctx context.Context, vector []float32, opts rag.SearchOptions) ([]rag.Candidate, error) {
	req := c.baseRequest(opts)
	req.Vector = &namedVector{Name: c.denseName, Vector: vector}
	if opts.HNSWEf > 0 {
		req.Params = &searchParams{HNSWEf: opts.HNSWEf}
	}
	return c.search(ctx, "dense", req)
}

// Sparse runs a search on the sparse named vector from raw query text.
func (c *Client) Sparse(ctx context.Context, text string, opts rag.SearchOptions) ([]rag.Candidate, error) {
	req := c.baseRequest(opts)
	req.Sparse = &namedSparseText{Name: c.sparseName, Text: text}
	return c.search(ctx, "sparse", req)
}

func (c *Client) baseRequest(opts rag.SearchOptions) *searchRequest {
	req := &searchRequest{
		Limit:       opts.Limit,
		WithPayload: true,
		Filter:      encodeFilter(opts.Filter),
	}
	if opts.ScoreThreshold > 0 {
		threshold := opts.ScoreThreshold
		req.ScoreThreshold = &threshold
	}
	return req
}

func (c *Client) search(ctx context.Context, mode string, req *searchRequest) ([]rag.Candidate, error) {
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, c.collectionPath("points", "search"), req, &resp); err != nil {
		return nil, err
	}

	out := make([]rag.Candidate, 0, len(resp.Result))
	for i, p := range resp.Result {
		out = append(out, rag.Candidate{
			ID:      pointID(p.ID),
			Score:   p.Score,
			Rank:    i,
			Payload: decodePayload(p.Payload),
		})
	}
	c.logger.Debug("qdrant.search mode=%s hits=%d", mode, len(out))
	return out, nil
}

func (c *Client) collectionPath(parts ...string) string {
	p := "/collections/" + url.PathEscape(c.collection)
	for _, s := range parts {
		p += "/" + s
	}
	return p
}

// do sends body as JSON and decodes a 2xx response into out. Any other
// status becomes an UpstreamError with the truncated response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return rag.Upstream(fmt.Sprintf("qdrant %s %s failed", method, path), 0, "", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return rag.Upstream("failed to read qdrant response", res.StatusCode, "", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("qdrant.failed method=%s path=%s status=%d", method, path, res.StatusCode)
		return rag.Upstream(fmt.Sprintf("qdrant %s %s", method, path), res.StatusCode, string(raw), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return rag.Upstream("failed to decode qdrant response", res.StatusCode, string(raw), err)
	}
	return nil
}

// pointID renders a Qdrant point id, which is either an unsigned integer or
// a UUID string, as a string.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func decodePayload(p map[string]any) rag.Payload {
	out := rag.Payload{}
	for k, v := range p {
		switch k {
		case "text":
			out.Text = stringValue(v)
		case "title":
			out.Title = stringValue(v)
		case "url":
			out.URL = stringValue(v)
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]any)
			}
			out.Extra[k] = v
		}
	}
	return out
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embedServer struct {
	mu       sync.Mutex
	requests [][]string
	auth     string
	path     string
	status   int
	body     string
	short    bool
}

func (s *embedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	s.requests = append(s.requests, req.Input)
	s.auth = r.Header.Get("Authorization")
	s.path = r.URL.Path
	s.mu.Unlock()

	if s.status != 0 {
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.body))
		return
	}

	n := len(req.Input)
	if s.short {
		n--
	}
	data := make([]map[string]any, 0, n)
	// reversed on purpose: the client orders by index
	for i := n - 1; i >= 0; i-- {
		data = append(data, map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": []float32{float32(len(req.Input[i])), float32(i)},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
}

func newTestClient(t *testing.T, s *embedServer, batch int, pause time.Duration) *Client {
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:   srv.URL,
		APIKey:    "secret",
		Model:     "jina-embeddings-v3",
		BatchSize: batch,
		Pause:     pause,
		Logger:    &log.NoOpLogger{},
	})
}

func TestWithV1(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, WithV1(""))
	assert.Equal(t, "https://api.jina.ai/v1", WithV1("https://api.jina.ai/"))
	assert.Equal(t, "https://api.jina.ai/v1", WithV1("https://api.jina.ai/v1"))
	assert.Equal(t, "http://host:8080/v1/extra", WithV1("http://host:8080/v1/extra"))
}

func TestSanitize(t *testing.T) {
	long := strings.Repeat("a", MaxChars+10)
	out := Sanitize([]string{"  hi  ", "", "   ", long})
	require.Len(t, out, 2)
	assert.Equal(t, "hi", out[0])
	assert.Len(t, out[1], MaxChars)
}

func TestEmbedBatch(t *testing.T) {
	s := &embedServer{}
	c := newTestClient(t, s, 0, -1)

	vecs, err := c.EmbedBatch(context.Background(), []string{"abc", " ", "de"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{3, 0}, vecs[0])
	assert.Equal(t, []float32{2, 1}, vecs[1])

	assert.Equal(t, "/v1/embeddings", s.path)
	assert.Equal(t, "Bearer secret", s.auth)
	assert.Equal(t, [][]string{{"abc", "de"}}, s.requests)
}

func TestEmbedBatch_NothingToEmbed(t *testing.T) {
	s := &embedServer{}
	c := newTestClient(t, s, 0, -1)

	_, err := c.EmbedBatch(context.Background(), []string{"", "  "})
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)
	assert.Empty(t, s.requests)
}

func TestEmbedBatch_UpstreamStatus(t *testing.T) {
	s := &embedServer{status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate_limit"}}`}
	c := newTestClient(t, s, 0, -1)

	_, err := c.EmbedBatch(context.Background(), []string{"q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrUpstream)

	var e *rag.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusTooManyRequests, e.Status)
	assert.Contains(t, e.Payload, "slow down")
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	s := &embedServer{short: true}
	c := newTestClient(t, s, 0, -1)

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrUpstream)
}

func TestEmbed_SubBatches(t *testing.T) {
	s := &embedServer{}
	c := newTestClient(t, s, 2, 20*time.Millisecond)

	start := time.Now()
	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, float32(3), vecs[2][0])
	assert.Equal(t, float32(5), vecs[4][0])

	assert.Len(t, s.requests, 3)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestEmbed_ContextCanceled(t *testing.T) {
	s := &embedServer{}
	c := newTestClient(t, s, 1, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Embed(ctx, []string{"a", "b"})
	assert.Error(t, err)
}

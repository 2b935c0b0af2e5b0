package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallnest/campusrag/intent"
	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/observability"
	"github.com/smallnest/campusrag/rag"
	"github.com/smallnest/campusrag/rag/indexer"
	"github.com/smallnest/campusrag/store"
	memstore "github.com/smallnest/campusrag/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnswerer struct {
	got []rag.Query
	res *rag.AnswerResult
	err error
}

func (f *fakeAnswerer) Answer(_ context.Context, q rag.Query) (*rag.AnswerResult, error) {
	f.got = append(f.got, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeIndexer struct {
	chunks []indexer.Chunk
	err    error
}

func (f *fakeIndexer) Index(_ context.Context, chunks []indexer.Chunk) (indexer.Result, error) {
	f.chunks = chunks
	if f.err != nil {
		return indexer.Result{}, f.err
	}
	return indexer.Result{Count: len(chunks), Dim: 4}, nil
}

type fakeTitler struct{}

func (fakeTitler) Generate(_ context.Context, question string) (string, error) {
	if question == "" {
		return "", rag.InvalidArgument("question must not be empty")
	}
	return "Horaires bibliothèque", nil
}

func answered() *rag.AnswerResult {
	url := "https://www.epfl.ch/campus/library/"
	return &rag.AnswerResult{
		Reply:      "La bibliothèque ouvre à 7h.",
		PrimaryURL: &url,
		BestScore:  0.8,
		Sources:    []rag.Source{{Idx: 1, Title: "Library", URL: url, Score: 0.8}},
		SourceType: "rag",
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func errorKind(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error object in %v", body)
	return e["kind"].(string)
}

func TestPing(t *testing.T) {
	h := New(&fakeAnswerer{}, WithLogger(&log.NoOpLogger{})).Handler()
	w, _ := do(t, h, http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestAnswer(t *testing.T) {
	a := &fakeAnswerer{res: answered()}
	h := New(a, WithIntentRouter(intent.NewRouter()), WithLogger(&log.NoOpLogger{})).Handler()

	w, body := do(t, h, http.MethodPost, "/v1/answer", map[string]any{
		"question": "  Quand ouvre la bibliothèque ?  ",
		"topK":     3,
		"model":    "apertus-70b",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "La bibliothèque ouvre à 7h.", body["reply"])
	assert.Equal(t, "https://www.epfl.ch/campus/library/", body["primary_url"])
	assert.Equal(t, false, body["ed_intent_detected"])
	assert.Nil(t, body["ed_intent"])
	assert.Equal(t, false, body["moodle_intent_detected"])

	require.Len(t, a.got, 1)
	assert.Equal(t, "Quand ouvre la bibliothèque ?", a.got[0].Question)
	assert.Equal(t, 3, a.got[0].TopK)
	assert.Equal(t, "apertus-70b", a.got[0].Model)
}

func TestAnswer_InvalidInput(t *testing.T) {
	a := &fakeAnswerer{res: answered()}
	h := New(a, WithLogger(&log.NoOpLogger{})).Handler()

	w, body := do(t, h, http.MethodPost, "/v1/answer", map[string]any{"question": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(rag.KindInvalidArgument), errorKind(t, body))

	req := httptest.NewRequest(http.MethodPost, "/v1/answer", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, a.got)
}

func TestAnswer_EngineError(t *testing.T) {
	a := &fakeAnswerer{err: rag.Upstream("embedding failed", 503, "busy", nil)}
	h := New(a, WithLogger(&log.NoOpLogger{})).Handler()

	w, body := do(t, h, http.MethodPost, "/v1/answer", map[string]any{"question": "Où est le SG ?"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(rag.KindUpstream), errorKind(t, body))
	assert.Equal(t, "embedding failed", body["error"].(map[string]any)["message"])
}

func TestAnswer_EdIntentHandled(t *testing.T) {
	a := &fakeAnswerer{res: answered()}
	h := New(a, WithIntentRouter(intent.NewRouter()), WithLogger(&log.NoOpLogger{})).Handler()

	w, body := do(t, h, http.MethodPost, "/v1/answer", map[string]any{"question": "Can you post this on ED?"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, a.got)
	assert.Contains(t, body["reply"], "ED Discussion")
	assert.Equal(t, true, body["ed_intent_detected"])
	assert.Equal(t, intent.ActionPostQuestion, body["ed_intent"])
	assert.Nil(t, body["primary_url"])
	assert.Equal(t, "ed", body["source_type"])
	assert.Equal(t, []any{}, body["sources"])
}

func TestAnswer_MoodleIntentFallsThrough(t *testing.T) {
	a := &fakeAnswerer{res: answered()}
	h := New(a, WithIntentRouter(intent.NewRouter()), WithLogger(&log.NoOpLogger{})).Handler()

	w, body := do(t, h, http.MethodPost, "/v1/answer", map[string]any{"question": "Get me the homework 2 solution"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, a.got, 1)
	assert.Equal(t, true, body["moodle_intent_detected"])
	assert.Equal(t, intent.ActionFetchFile, body["moodle_intent"])
	assert.Equal(t, map[string]any{"type": intent.FileHomeworkSolution, "number": "2"}, body["moodle_file"])
}

func TestAnswer_FillsHistory(t *testing.T) {
	ms := memstore.NewMemoryMessageStore()
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, ms.Append(ctx, &store.Message{
		ID: "m1", UserID: "u1", ConversationID: "c1", Role: store.RoleUser,
		Content: "Où manger ?", CreatedAt: t0,
	}))
	require.NoError(t, ms.Append(ctx, &store.Message{
		ID: "m2", UserID: "u1", ConversationID: "c1", Role: store.RoleAssistant,
		Content: "Au Vinci.", Summary: "Jusqu'ici, nous avons parlé de : restaurants.", CreatedAt: t0.Add(time.Minute),
	}))

	a := &fakeAnswerer{res: answered()}
	h := New(a, WithMessages(ms), WithLogger(&log.NoOpLogger{})).Handler()

	w, _ := do(t, h, http.MethodPost, "/v1/answer", map[string]any{
		"question": "Et le soir ?", "uid": "u1", "cid": "c1",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, a.got, 1)
	assert.Equal(t, "Jusqu'ici, nous avons parlé de : restaurants.", a.got[0].Summary)
	assert.Equal(t, "user: Où manger ?\nassistant: Au Vinci.", a.got[0].RecentTranscript)
	assert.Equal(t, "u1", a.got[0].UserID)

	// A caller-provided summary wins.
	do(t, h, http.MethodPost, "/v1/answer", map[string]any{
		"question": "Et le soir ?", "uid": "u1", "cid": "c1", "summary": "mine",
	}, nil)
	require.Len(t, a.got, 2)
	assert.Equal(t, "mine", a.got[1].Summary)
	assert.NotEmpty(t, a.got[1].RecentTranscript)
}

func TestMessages(t *testing.T) {
	ms := memstore.NewMemoryMessageStore()
	h := New(&fakeAnswerer{}, WithMessages(ms), WithLogger(&log.NoOpLogger{})).Handler()
	path := "/v1/users/u1/conversations/c1/messages"

	w, body := do(t, h, http.MethodPost, path, map[string]any{"role": "user", "content": "Bonjour"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "u1", body["uid"])
	assert.Equal(t, "c1", body["cid"])

	w, _ = do(t, h, http.MethodPost, path, map[string]any{"id": body["id"], "role": "user", "content": "Encore"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = do(t, h, http.MethodPost, path, map[string]any{"role": "system", "content": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(rag.KindInvalidArgument), errorKind(t, body))

	w, _ = do(t, h, http.MethodPost, path, map[string]any{"role": "assistant", "content": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, h, http.MethodPost, path, map[string]any{"id": "a/b", "role": "user", "content": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, h, http.MethodPost, "/v1/users/u1:c1/conversations/c1/messages", map[string]any{"role": "user", "content": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, _ = do(t, h, http.MethodPost, path, map[string]any{"role": "assistant", "content": "Salut"}, nil)

	w, body = do(t, h, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Bonjour", msgs[0].(map[string]any)["content"])

	w, body = do(t, h, http.MethodGet, path+"?limit=1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["messages"].([]any), 1)
	assert.Equal(t, "Salut", body["messages"].([]any)[0].(map[string]any)["content"])

	w, _ = do(t, h, http.MethodGet, path+"?limit=-3", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessagesDisabled(t *testing.T) {
	h := New(&fakeAnswerer{}, WithLogger(&log.NoOpLogger{})).Handler()
	w, _ := do(t, h, http.MethodGet, "/v1/users/u1/conversations/c1/messages", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndex_APIKey(t *testing.T) {
	ix := &fakeIndexer{}
	h := New(&fakeAnswerer{res: answered()}, WithIndexer(ix), WithAPIKey("secret"), WithLogger(&log.NoOpLogger{})).Handler()
	chunks := map[string]any{"chunks": []map[string]any{{"id": "1", "text": "Rolex"}, {"id": "2", "text": "SG"}}}

	w, body := do(t, h, http.MethodPost, "/v1/index", chunks, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", body["error"].(map[string]any)["message"])

	w, _ = do(t, h, http.MethodPost, "/v1/index", chunks, map[string]string{APIKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, ix.chunks)

	w, body = do(t, h, http.MethodPost, "/v1/index", chunks, map[string]string{APIKeyHeader: "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, float64(4), body["dim"])
	assert.Equal(t, "Rolex", ix.chunks[0].Text)

	w, _ = do(t, h, http.MethodPost, "/v1/answer", map[string]any{"question": "Où est le SG ?"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIndex_Errors(t *testing.T) {
	ix := &fakeIndexer{}
	h := New(&fakeAnswerer{}, WithIndexer(ix), WithLogger(&log.NoOpLogger{})).Handler()

	w, body := do(t, h, http.MethodPost, "/v1/index", map[string]any{"chunks": []any{}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing 'chunks'", body["error"].(map[string]any)["message"])

	ix.err = rag.Upstream("qdrant upsert failed", 500, "", nil)
	w, body = do(t, h, http.MethodPost, "/v1/index", map[string]any{"chunks": []map[string]any{{"id": "1", "text": "x"}}}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(rag.KindUpstream), errorKind(t, body))
}

func TestTitle(t *testing.T) {
	h := New(&fakeAnswerer{}, WithTitler(fakeTitler{}), WithLogger(&log.NoOpLogger{})).Handler()

	w, body := do(t, h, http.MethodPost, "/v1/title", map[string]any{"question": "Horaires de la bibliothèque ?"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Horaires bibliothèque", body["title"])

	w, _ = do(t, h, http.MethodPost, "/v1/title", map[string]any{"question": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	m.IncDegraded()

	h := New(&fakeAnswerer{}, WithGatherer(reg), WithLogger(&log.NoOpLogger{})).Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "campusrag_")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(rag.InvalidArgument("x")))
	assert.Equal(t, http.StatusBadRequest, StatusFor((store.ConversationKey{}).Validate()))
	assert.Equal(t, http.StatusNotFound, StatusFor(store.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(rag.ModelFailure("x", nil)))
}

func TestAnswer_DefaultTopK(t *testing.T) {
	a := &fakeAnswerer{res: answered()}
	h := New(a, WithDefaultTopK(5), WithLogger(&log.NoOpLogger{})).Handler()

	do(t, h, http.MethodPost, "/v1/answer", map[string]any{"question": "Où est le SG ?"}, nil)
	do(t, h, http.MethodPost, "/v1/answer", map[string]any{"question": "Où est le SG ?", "topK": 2}, nil)
	require.Len(t, a.got, 2)
	assert.Equal(t, 5, a.got[0].TopK)
	assert.Equal(t, 2, a.got[1].TopK)
}

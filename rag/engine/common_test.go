package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/smallnest/campusrag/rag"
	"github.com/tmc/langchaingo/llms"
)

type llmCall struct {
	system  string
	human   string
	options llms.CallOptions
}

// mockLLM answers router calls (64 max tokens) with routed and answer calls
// with reply.
type mockLLM struct {
	mu        sync.Mutex
	calls     []llmCall
	reply     string
	routed    string
	err       error
	routerErr error
}

func (m *mockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	call := llmCall{options: opts}
	for _, msg := range messages {
		text := msg.Parts[0].(llms.TextContent).Text
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			call.system = text
		case llms.ChatMessageTypeHuman:
			call.human = text
		}
	}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if opts.MaxTokens == routerMaxTokens {
		if m.routerErr != nil {
			return nil, m.routerErr
		}
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.routed}}}, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *mockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type mockEmbedder struct {
	texts [][]string
	err   error
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.texts = append(m.texts, texts)
	if m.err != nil {
		return nil, m.err
	}
	return [][]float32{{0.1, 0.2, 0.3}}, nil
}

type mockRetriever struct {
	fused     []rag.FusedCandidate
	err       error
	gotQuery  string
	gotLimit  int
	gotUserID string
	calls     int
}

func (m *mockRetriever) Search(ctx context.Context, query string, vector []float32, limit int, userID string) ([]rag.FusedCandidate, error) {
	m.calls++
	m.gotQuery = query
	m.gotLimit = limit
	m.gotUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.fused, nil
}

func (m *mockRetriever) SearchLimit(topK int) int {
	if topK <= 0 {
		return 24
	}
	return min(max(topK, 4), 24)
}

var errBoom = errors.New("boom")

type upperRenderer struct{}

func (upperRenderer) Render(md string) string { return "<p>" + md + "</p>" }

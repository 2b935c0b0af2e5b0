package retriever

import (
	"context"
	"sync"

	"github.com/smallnest/campusrag/rag"
)

type mockSearcher struct {
	mu        sync.Mutex
	dense     []rag.Candidate
	sparse    []rag.Candidate
	denseErr  error
	sparseErr error
	gotOpts   []rag.SearchOptions
	gotText   string
}

func (m *mockSearcher) Dense(ctx context.Context, vector []float32, opts rag.SearchOptions) ([]rag.Candidate, error) {
	m.mu.Lock()
	m.gotOpts = append(m.gotOpts, opts)
	m.mu.Unlock()
	if m.denseErr != nil {
		return nil, m.denseErr
	}
	return m.dense, nil
}

func (m *mockSearcher) Sparse(ctx context.Context, text string, opts rag.SearchOptions) ([]rag.Candidate, error) {
	m.mu.Lock()
	m.gotOpts = append(m.gotOpts, opts)
	m.gotText = text
	m.mu.Unlock()
	if m.sparseErr != nil {
		return nil, m.sparseErr
	}
	return m.sparse, nil
}

func ranked(ids ...string) []rag.Candidate {
	out := make([]rag.Candidate, len(ids))
	for i, id := range ids {
		out[i] = rag.Candidate{ID: id, Rank: i, Score: 1 - float64(i)*0.1, Payload: rag.Payload{Text: "text " + id}}
	}
	return out
}

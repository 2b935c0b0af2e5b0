package assembler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/smallnest/campusrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(id, url, title, text string, score float64) rag.FusedCandidate {
	return rag.FusedCandidate{ID: id, Score: score, Payload: rag.Payload{URL: url, Title: title, Text: text}}
}

func TestAssemble_PerDocumentCap(t *testing.T) {
	a := New(Config{})
	chunks := a.Assemble([]rag.FusedCandidate{
		cand("1", "https://epfl.ch/a", "A", "first", 0.9),
		cand("2", "https://epfl.ch/a", "A", "second", 0.9),
		cand("3", "https://epfl.ch/a", "A", "third", 0.8),
	})
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].Text)
	assert.Equal(t, "second", chunks[1].Text)
}

func TestAssemble_GroupOrderAndMaxDocs(t *testing.T) {
	a := New(Config{})
	chunks := a.Assemble([]rag.FusedCandidate{
		cand("1", "u1", "", "one", 0.5),
		cand("2", "u2", "", "two", 0.9),
		cand("3", "u3", "", "three", 0.7),
		cand("4", "u4", "", "four", 0.6),
	})
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"u2", "u3", "u4"}, []string{chunks[0].URL, chunks[1].URL, chunks[2].URL})
}

func TestAssemble_KeyFallback(t *testing.T) {
	assert.Equal(t, "u", SourceKey(cand("1", "u", "t", "", 0)))
	assert.Equal(t, "t", SourceKey(cand("1", "", "t", "", 0)))
	assert.Equal(t, "1", SourceKey(cand("1", "", "", "", 0)))
}

func TestAssemble_BudgetSkipsWithoutStopping(t *testing.T) {
	a := New(Config{Budget: 300, SnippetLimit: 600})
	big := strings.Repeat("x", 400)
	chunks := a.Assemble([]rag.FusedCandidate{
		cand("1", "u1", "", big, 0.9),
		cand("2", "u2", "", "small one", 0.8),
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, "small one", chunks[0].Text)
}

func TestAssemble_BudgetInvariant(t *testing.T) {
	a := New(Config{})
	var cands []rag.FusedCandidate
	for i := 0; i < 12; i++ {
		cands = append(cands, cand(fmt.Sprint(i), fmt.Sprintf("u%d", i%4), "", strings.Repeat("y", 100+i*70), 1-float64(i)*0.01))
	}
	chunks := a.Assemble(cands)

	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, rag.Len(c.Text), DefaultSnippetLimit)
		total += rag.Len(c.Text) + chunkOverhead
	}
	assert.LessOrEqual(t, total, DefaultBudget)
}

func TestAssemble_SnippetTruncated(t *testing.T) {
	a := New(Config{SnippetLimit: 10})
	chunks := a.Assemble([]rag.FusedCandidate{cand("1", "u", "", "abcdefghijklmnop", 0.5)})
	require.Len(t, chunks, 1)
	assert.Equal(t, "abcdefghij", chunks[0].Text)
}

func TestAssemble_DedupeRepeatedText(t *testing.T) {
	a := New(Config{})
	chunks := a.Assemble([]rag.FusedCandidate{
		cand("1", "u1", "Guide", "same body", 0.9),
		cand("2", "u2", "Guide", "same body", 0.8),
	})
	assert.Len(t, chunks, 1)
}

func TestAssemble_Empty(t *testing.T) {
	assert.Empty(t, New(Config{}).Assemble(nil))
}

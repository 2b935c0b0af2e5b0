package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/rag"
	"github.com/smallnest/campusrag/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func newBuilder(llm llms.Model, cfg SummaryConfig) *RollingSummaryBuilder {
	cfg.Logger = &log.NoOpLogger{}
	return NewRollingSummaryBuilder(llm, cfg)
}

func TestBuild_NoPriorThreeTurns(t *testing.T) {
	llm := &fakeLLM{reply: "  " + SummaryHeader + "\n- inscription aux cours\nIntentions/attentes : s'inscrire  "}
	b := newBuilder(llm, SummaryConfig{FallbackModel: "answer-model"})

	summary, err := b.Build(context.Background(), "", []Turn{
		{Role: "user", Content: "Comment s'inscrire aux cours ?"},
		{Role: "assistant", Content: "Via IS-Academia."},
		{Role: "user", Content: "Et la date limite ?"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary, SummaryHeader))
	assert.LessOrEqual(t, rag.Len(summary), DefaultSummaryLimit)
	assert.False(t, strings.HasSuffix(summary, " "))

	call := llm.lastCall()
	assert.Equal(t, "answer-model", call.options.Model)
	assert.InDelta(t, 0.1, call.options.Temperature, 1e-9)
	assert.Equal(t, DefaultSummaryTokens, call.options.MaxTokens)

	// system, new exchanges, final instruction
	require.Len(t, call.messages, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, call.messages[0].Role)
	assert.Contains(t, text(call.messages[0]), "français")
	assert.Contains(t, text(call.messages[1]), "user: Comment s'inscrire aux cours ?")
	assert.Contains(t, text(call.messages[1]), "assistant: Via IS-Academia.")
}

func TestBuild_HeaderPrependedAndClamped(t *testing.T) {
	llm := &fakeLLM{reply: "- " + strings.Repeat("é", 2000)}
	b := newBuilder(llm, SummaryConfig{Model: "summary-model", FallbackModel: "answer-model"})

	summary, err := b.Build(context.Background(), "old", []Turn{{Role: "user", Content: "x"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary, SummaryHeader+"\n- "))
	assert.Equal(t, DefaultSummaryLimit, rag.Len(summary))
	assert.Equal(t, "summary-model", llm.lastCall().options.Model)
}

func TestBuild_EmptyOutputIsModelError(t *testing.T) {
	b := newBuilder(&fakeLLM{reply: "   "}, SummaryConfig{})
	_, err := b.Build(context.Background(), "", []Turn{{Role: "user", Content: "x"}})
	assert.ErrorIs(t, err, rag.ErrModel)

	b = newBuilder(&fakeLLM{err: errors.New("503")}, SummaryConfig{})
	_, err = b.Build(context.Background(), "", []Turn{{Role: "user", Content: "x"}})
	assert.ErrorIs(t, err, rag.ErrModel)
}

func TestMessages_LimitsInputs(t *testing.T) {
	b := newBuilder(&fakeLLM{}, SummaryConfig{})

	var turns []Turn
	for i := range 12 {
		turns = append(turns, Turn{Role: "user", Content: fmt.Sprintf("turn-%02d %s", i, strings.Repeat("a", 300))})
	}
	prior := strings.Repeat("p", 1000)
	msgs := b.Messages(prior, turns)
	require.Len(t, msgs, 4)

	priorText := strings.TrimPrefix(text(msgs[1]), "Résumé précédent :\n")
	assert.Equal(t, DefaultPriorLimit, rag.Len(priorText))

	exchanges := strings.TrimPrefix(text(msgs[2]), "Nouveaux échanges (à intégrer sans tout réécrire) :\n")
	assert.LessOrEqual(t, rag.Len(exchanges), DefaultTranscriptLimit)
	assert.NotContains(t, exchanges, "turn-03")
	assert.Contains(t, exchanges, "turn-04")
}

func TestBuild_Deterministic(t *testing.T) {
	llm := &fakeLLM{reply: SummaryHeader + "\n- a"}
	b := newBuilder(llm, SummaryConfig{})
	turns := []Turn{{Role: "user", Content: "q"}, {Role: "assistant", Content: "r"}}

	first, err := b.Build(context.Background(), "prior", turns)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), "prior", turns)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, llm.calls[0].messages, llm.calls[1].messages)
}

func TestTurnsFromMessages(t *testing.T) {
	turns := TurnsFromMessages([]*store.Message{
		{Role: "assistant", Content: "a"},
		{Role: "system", Content: "b"},
		{Role: "user", Content: "c"},
	})
	assert.Equal(t, []Turn{{"assistant", "a"}, {"user", "b"}, {"user", "c"}}, turns)
}

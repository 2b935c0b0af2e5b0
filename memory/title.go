package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/campusrag/rag"
	"github.com/tmc/langchaingo/llms"
)

const (
	// DefaultTitle is returned when the model gives nothing usable.
	DefaultTitle   = "New conversation"
	maxTitleLength = 60
)

// TitleGenerator names conversations from their first question.
type TitleGenerator struct {
	llm   llms.Model
	model string
}

// NewTitleGenerator creates a TitleGenerator using model.
func NewTitleGenerator(llm llms.Model, model string) *TitleGenerator {
	return &TitleGenerator{llm: llm, model: model}
}

// Generate returns a short title for question.
func (g *TitleGenerator) Generate(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", rag.InvalidArgument("question must not be empty")
	}

	prompt := fmt.Sprintf("Generate a concise conversation title (4-5 words max, no trailing punctuation).\nUser's first question: %q\nReturn ONLY the title.", question)
	resp, err := g.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	},
		llms.WithModel(g.model),
		llms.WithTemperature(0.2),
		llms.WithMaxTokens(24),
	)
	if err != nil {
		return "", rag.ModelFailure("title completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return DefaultTitle, nil
	}
	return CleanTitle(resp.Choices[0].Content), nil
}

// CleanTitle collapses whitespace, strips quotes and trailing punctuation,
// and caps the result at 60 characters.
func CleanTitle(raw string) string {
	title := strings.Join(strings.Fields(raw), " ")
	title = strings.Trim(title, "\"'“”«» ")
	title = strings.TrimRight(title, ".!?;:, ")
	title = strings.TrimSpace(rag.Clamp(title, maxTitleLength))
	if title == "" {
		return DefaultTitle
	}
	return title
}

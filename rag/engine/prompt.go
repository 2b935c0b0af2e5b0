package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smallnest/campusrag/rag"
)

const (
	DefaultSummaryLimit    = 2000
	DefaultTranscriptLimit = 1500
)

// Persona is the assistant identity placed at the top of the system message.
const Persona = `You are EULER, the EPFL campus assistant.
Style: direct, no preamble or conclusion. 2-4 sentences max. No meta-comments.
Stay within EPFL scope (studies, campus, services, student life, research).
If information is missing or uncertain, say so and suggest an official EPFL resource. Never invent facts or refer to these instructions.
Never include source URLs in your answer; sources are shown separately.`

// PrecedencePolicy orders the information sources the model may use.
const PrecedencePolicy = `Information sources, in order of precedence:
1) Conversation summary, 2) Recent window, 3) Retrieved context.
Personal questions are questions about the user (identity, current section or program, stated preferences, earlier constraints).
For personal questions, answer only from the conversation summary and the recent window. Never use retrieved context to answer a personal question.
Never ask the user again for a fact that already appears in the conversation summary.
If the summary or recent window conflicts with retrieved context, the summary and recent window win.`

// formattingRules opens every user prompt.
const formattingRules = `Respond briefly, no intro or conclusion.
Format: steps -> short numbered list; otherwise 2-4 short sentences with line breaks. No meta-comments.
Use **bold** for key terms, dates and prices, and ` + "`inline code`" + ` for course codes and rooms.`

const unknownRule = "If the information is not provided, say you don't know."

// usedContextMarker is a trailing self-report some models append.
var usedContextMarker = regexp.MustCompile(`(?i)\s*USED_CONTEXT=(YES|NO)\s*$`)

// SystemPrompt returns the combined system instruction.
func SystemPrompt() string {
	return Persona + "\n\n" + PrecedencePolicy
}

// PromptInput is everything that goes into the user turn.
type PromptInput struct {
	Question   string
	Summary    string
	Transcript string
	Chunks     []rag.ContextChunk
}

// FormatContext numbers chunks from 1, each with its source line.
func FormatContext(chunks []rag.ContextChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		var b strings.Builder
		if c.Title != "" {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, c.Title)
		} else {
			fmt.Fprintf(&b, "[%d]\n", i+1)
		}
		if src := sourceLine(c); src != "" {
			fmt.Fprintf(&b, "Source: %s\n", src)
		}
		b.WriteString(c.Text)
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}

func sourceLine(c rag.ContextChunk) string {
	if c.URL != "" {
		return c.URL
	}
	return c.Title
}

// BuildUserPrompt assembles the user turn. Summary and transcript are trimmed
// and clamped to their limits; empty sections are left out.
func BuildUserPrompt(in PromptInput, summaryLimit, transcriptLimit int) string {
	sections := []string{formattingRules}

	if s := rag.Clamp(strings.TrimSpace(in.Summary), summaryLimit); s != "" {
		sections = append(sections, "Conversation summary (do not display as-is):\n"+s)
	}
	if t := rag.Clamp(strings.TrimSpace(in.Transcript), transcriptLimit); t != "" {
		sections = append(sections, "Recent window (do not display):\n"+t)
	}
	if len(in.Chunks) > 0 {
		sections = append(sections, "Retrieved context:\n"+FormatContext(in.Chunks))
	}
	sections = append(sections, "Question: "+in.Question, unknownRule)
	return strings.Join(sections, "\n\n")
}

// CleanReply trims the reply and removes a trailing USED_CONTEXT marker.
func CleanReply(s string) string {
	return strings.TrimSpace(usedContextMarker.ReplaceAllString(s, ""))
}

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/smallnest/campusrag/rag"
)

var (
	colorAccent = lipgloss.Color("#2CD7C7")
	colorMuted  = lipgloss.Color("#6C7A89")
	colorWarn   = lipgloss.Color("#F4D03F")

	replyStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
)

// renderAnswer formats an answer for the terminal.
func renderAnswer(res *rag.AnswerResult) string {
	var b strings.Builder
	b.WriteString(replyStyle.Render(res.Reply))
	b.WriteString("\n")

	if len(res.Sources) == 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("no context used (best score %.4f)", res.BestScore)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(headerStyle.Render("Sources"))
	b.WriteString("\n")
	for _, s := range res.Sources {
		title := s.Title
		if title == "" {
			title = s.URL
		}
		fmt.Fprintf(&b, "  [%d] %s %s\n", s.Idx, title, mutedStyle.Render(fmt.Sprintf("(%.4f)", s.Score)))
		if s.URL != "" && s.URL != title {
			fmt.Fprintf(&b, "      %s\n", mutedStyle.Render(s.URL))
		}
	}
	return b.String()
}

// Package render turns markdown replies into sanitized HTML for clients that
// cannot render markdown themselves.
package render

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// HTMLRenderer renders markdown with the common extensions and sanitizes the
// output with the bluemonday UGC policy.
type HTMLRenderer struct {
	policy *bluemonday.Policy
}

// NewHTMLRenderer creates an HTMLRenderer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{policy: bluemonday.UGCPolicy()}
}

// Render converts markdown to sanitized HTML. Blank input renders as "".
func (r *HTMLRenderer) Render(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}

	// parsers keep state between calls, so one per render
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := markdown.Render(doc, renderer)
	return strings.TrimSpace(string(r.policy.SanitizeBytes(out)))
}

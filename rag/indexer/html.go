package indexer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	htmlTagRe    = regexp.MustCompile(`(?i)<(?:html|body|div|p|span|a|h[1-6]|ul|ol|li|table|tr|td|br|section|article|script|style)\b[^>]*>`)
	spaceRunRe   = regexp.MustCompile(`[ \t\f\r\v\x{00a0}]+`)
	blankLinesRe = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*)+`)
)

const (
	paragraphSelector = "p,div,section,article,header,footer,h1,h2,h3,h4,h5,h6,blockquote,pre,table"
	lineSelector      = "li,tr,br"
)

// LooksLikeHTML reports whether s contains common HTML tags.
func LooksLikeHTML(s string) bool {
	return htmlTagRe.MatchString(s)
}

// HTMLToText extracts readable text from an HTML fragment or page. Scripts
// and styles are dropped. Paragraph-level elements end with a blank line.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script,style,noscript,template").Remove()
	doc.Find(paragraphSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})
	doc.Find(lineSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return normalizeSpace(root.Text()), nil
}

// HTMLTitle returns the <title> of a page, or its first h1.
func HTMLTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func normalizeSpace(s string) string {
	s = spaceRunRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Package assembler turns fused candidates into a small, source-diverse set of
// context chunks that fits a character budget.
package assembler

import (
	"sort"

	"github.com/smallnest/campusrag/rag"
)

const (
	DefaultMaxDocs      = 3
	DefaultMaxPerDoc    = 2
	DefaultBudget       = 1600
	DefaultSnippetLimit = 600
	// chunkOverhead is charged per accepted chunk for its header and separators.
	chunkOverhead = 50
	// dedupePrefix is how much of a snippet takes part in duplicate detection.
	dedupePrefix = 160
)

// Config bounds the assembled context.
type Config struct {
	MaxDocs      int
	MaxPerDoc    int
	Budget       int
	SnippetLimit int
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxDocs:      DefaultMaxDocs,
		MaxPerDoc:    DefaultMaxPerDoc,
		Budget:       DefaultBudget,
		SnippetLimit: DefaultSnippetLimit,
	}
}

// Assembler builds context chunks from fused candidates.
type Assembler struct {
	config Config
}

// New creates an Assembler. Zero fields fall back to defaults.
func New(config Config) *Assembler {
	d := DefaultConfig()
	if config.MaxDocs <= 0 {
		config.MaxDocs = d.MaxDocs
	}
	if config.MaxPerDoc <= 0 {
		config.MaxPerDoc = d.MaxPerDoc
	}
	if config.Budget <= 0 {
		config.Budget = d.Budget
	}
	if config.SnippetLimit <= 0 {
		config.SnippetLimit = d.SnippetLimit
	}
	return &Assembler{config: config}
}

type group struct {
	key     string
	members []rag.FusedCandidate
}

// SourceKey identifies the document a candidate belongs to: its URL, else its
// title, else its point id.
func SourceKey(c rag.FusedCandidate) string {
	switch {
	case c.Payload.URL != "":
		return c.Payload.URL
	case c.Payload.Title != "":
		return c.Payload.Title
	default:
		return c.ID
	}
}

// Assemble groups candidates by source, keeps the first MaxPerDoc arrivals of
// each group, orders groups by their best score and walks the top MaxDocs.
// Each member's text is cut to SnippetLimit and accepted only while
// len+overhead fits the remaining budget; a rejected member does not stop
// the walk. Members repeating an accepted title and text prefix are skipped.
func (a *Assembler) Assemble(candidates []rag.FusedCandidate) []rag.ContextChunk {
	groups := make([]*group, 0)
	byKey := make(map[string]*group)
	for _, c := range candidates {
		key := SourceKey(c)
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key}
			byKey[key] = g
			groups = append(groups, g)
		}
		if len(g.members) < a.config.MaxPerDoc {
			g.members = append(g.members, c)
		}
	}

	// members arrive in descending fused order, so members[0] is the best
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].members[0].Score > groups[j].members[0].Score
	})
	if len(groups) > a.config.MaxDocs {
		groups = groups[:a.config.MaxDocs]
	}

	budget := a.config.Budget
	seen := make(map[string]bool)
	chunks := make([]rag.ContextChunk, 0)
	for _, g := range groups {
		for _, m := range g.members {
			text := rag.Clamp(m.Payload.Text, a.config.SnippetLimit)
			dedupe := m.Payload.Title + "|" + rag.Clamp(text, dedupePrefix)
			if seen[dedupe] {
				continue
			}
			cost := rag.Len(text) + chunkOverhead
			if cost > budget {
				continue
			}
			chunks = append(chunks, rag.ContextChunk{
				Title: m.Payload.Title,
				URL:   m.Payload.URL,
				Text:  text,
				Score: m.Score,
			})
			seen[dedupe] = true
			budget -= cost
		}
	}
	return chunks
}

package indexer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/smallnest/campusrag/rag"
)

// DefaultChunkSize is the default chunk length in characters.
const DefaultChunkSize = 1200

var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Document is a whole page to split into chunks.
type Document struct {
	ID      string
	Title   string
	URL     string
	Content string
	Payload map[string]any
}

// Splitter cuts documents into chunks of at most ChunkSize characters,
// preferring paragraph, then line, then sentence, then word boundaries.
type Splitter struct {
	ChunkSize  int
	Separators []string
}

// NewSplitter creates a Splitter. A non-positive size selects the default.
func NewSplitter(size int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Splitter{ChunkSize: size, Separators: defaultSeparators}
}

// SplitText splits text into pieces no longer than the chunk size.
func (s *Splitter) SplitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	if rag.Len(text) <= s.ChunkSize {
		return []string{text}
	}
	if len(separators) == 0 || separators[0] == "" {
		return s.hardCut(text)
	}

	sep := separators[0]
	var pieces []string
	for _, part := range strings.Split(text, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if rag.Len(part) <= s.ChunkSize {
			pieces = append(pieces, part)
			continue
		}
		pieces = append(pieces, s.split(part, separators[1:])...)
	}
	return s.merge(pieces, sep)
}

func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += s.ChunkSize {
		end := min(start+s.ChunkSize, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// merge joins neighbouring pieces while they fit.
func (s *Splitter) merge(pieces []string, sep string) []string {
	var merged []string
	current := ""
	for _, p := range pieces {
		if current == "" {
			current = p
			continue
		}
		if proposed := current + sep + p; rag.Len(proposed) <= s.ChunkSize {
			current = proposed
			continue
		}
		merged = append(merged, current)
		current = p
	}
	if current != "" {
		merged = append(merged, current)
	}
	return merged
}

// Split turns doc into chunks. HTML content is converted to text first.
// Chunk ids are name-based UUIDs of the document id and chunk index, so
// re-indexing a document overwrites its points.
func (s *Splitter) Split(doc Document) ([]Chunk, error) {
	content := doc.Content
	title := doc.Title
	if LooksLikeHTML(content) {
		if title == "" {
			title = HTMLTitle(content)
		}
		text, err := HTMLToText(content)
		if err != nil {
			return nil, fmt.Errorf("failed to convert document %s: %w", doc.ID, err)
		}
		content = text
	}

	pieces := s.SplitText(content)
	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		payload := make(map[string]any, len(doc.Payload)+3)
		for k, v := range doc.Payload {
			payload[k] = v
		}
		payload["parent_id"] = doc.ID
		payload["chunk_index"] = i
		payload["chunk_total"] = len(pieces)

		chunks = append(chunks, Chunk{
			ID:      uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d", doc.ID, i)).String(),
			Text:    piece,
			Title:   title,
			URL:     doc.URL,
			Payload: payload,
		})
	}
	return chunks, nil
}

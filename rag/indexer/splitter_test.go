package indexer

import (
	"strings"
	"testing"

	"github.com/smallnest/campusrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	s := NewSplitter(10)
	assert.Equal(t, []string{"1234567890", "abcdefghij"}, s.SplitText("1234567890abcdefghij"))
	assert.Equal(t, []string{"part1", "part2", "part3"}, s.SplitText("part1\n\npart2\n\npart3"))
	assert.Equal(t, []string{"aa bb\n\ncc"}, s.SplitText("aa bb\n\ncc"))
	assert.Nil(t, s.SplitText("  "))

	long := strings.Repeat("mot ", 500)
	for _, piece := range NewSplitter(100).SplitText(long) {
		assert.LessOrEqual(t, rag.Len(piece), 100)
	}
}

func TestSplit(t *testing.T) {
	s := NewSplitter(20)
	doc := Document{
		ID:      "page-1",
		URL:     "https://epfl.ch/page",
		Content: "<html><head><title>Page</title></head><body><p>Premier paragraphe.</p><p>Deuxième paragraphe.</p></body></html>",
		Payload: map[string]any{"lang": "fr"},
	}

	chunks, err := s.Split(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Premier paragraphe.", chunks[0].Text)
	assert.Equal(t, "Page", chunks[0].Title)
	assert.Equal(t, "page-1", chunks[1].Payload["parent_id"])
	assert.Equal(t, 1, chunks[1].Payload["chunk_index"])
	assert.Equal(t, 2, chunks[1].Payload["chunk_total"])
	assert.Equal(t, "fr", chunks[0].Payload["lang"])

	again, err := s.Split(doc)
	require.NoError(t, err)
	assert.Equal(t, chunks[0].ID, again[0].ID)
	assert.Equal(t, chunks[0].ID, PointID(chunks[0].ID))
}

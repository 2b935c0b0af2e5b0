package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/smallnest/campusrag/rag/indexer"
	"github.com/spf13/cobra"
)

var (
	indexChunks    string
	indexHTMLDir   string
	indexBaseURL   string
	indexChunkSize int
	indexDryRun    bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed and upsert documents into the vector store",
	Long: `Index reads pre-chunked JSON (--chunks) or a directory of HTML pages
(--html-dir) which are split into chunks, embeds them and upserts the points.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexChunks, "chunks", "", "JSON file with a chunk array or {\"chunks\": [...]}")
	indexCmd.Flags().StringVar(&indexHTMLDir, "html-dir", "", "directory of .html pages to split and index")
	indexCmd.Flags().StringVar(&indexBaseURL, "base-url", "", "URL prefix joined with each page's relative path")
	indexCmd.Flags().IntVar(&indexChunkSize, "chunk-size", indexer.DefaultChunkSize, "maximum chunk length in characters")
	indexCmd.Flags().BoolVar(&indexDryRun, "dry-run", false, "print the chunks instead of indexing them")
	indexCmd.MarkFlagsMutuallyExclusive("chunks", "html-dir")
	indexCmd.MarkFlagsOneRequired("chunks", "html-dir")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	var chunks []indexer.Chunk
	var err error
	if indexChunks != "" {
		chunks, err = loadChunks(indexChunks)
	} else {
		chunks, err = splitHTMLDir(indexHTMLDir, indexBaseURL, indexChunkSize)
	}
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index")
	}

	if indexDryRun {
		data, err := json.MarshalIndent(chunks, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal chunks: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	comps, err := newComponents(cfg, logger)
	if err != nil {
		return err
	}
	res, err := comps.indexer.Index(cmd.Context(), chunks)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	cmd.Println(headerStyle.Render(fmt.Sprintf("indexed %d chunks", res.Count)) + mutedStyle.Render(fmt.Sprintf(" (dim %d)", res.Dim)))
	return nil
}

// loadChunks reads a chunk array or an object with a chunks field.
func loadChunks(path string) ([]indexer.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	var chunks []indexer.Chunk
	if err := json.Unmarshal(data, &chunks); err == nil {
		return chunks, nil
	}
	var wrapped struct {
		Chunks []indexer.Chunk `json:"chunks"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse chunks %s: %w", path, err)
	}
	return wrapped.Chunks, nil
}

// splitHTMLDir splits every .html file under dir. Document ids are the
// slash-separated relative paths.
func splitHTMLDir(dir, baseURL string, size int) ([]indexer.Chunk, error) {
	splitter := indexer.NewSplitter(size)
	var chunks []indexer.Chunk

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if d.IsDir() || (ext != ".html" && ext != ".htm") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		doc := indexer.Document{ID: rel, Content: string(content)}
		if baseURL != "" {
			doc.URL = strings.TrimRight(baseURL, "/") + "/" + rel
		}
		docChunks, err := splitter.Split(doc)
		if err != nil {
			return err
		}
		chunks = append(chunks, docChunks...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", dir, err)
	}
	return chunks, nil
}

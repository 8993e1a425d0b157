package ingestion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// ChunkSize is the maximum length of a chunk in characters.
	ChunkSize = 1000
	// ChunkOverlap is the number of characters shared by adjacent chunks.
	ChunkOverlap = 200
)

// chunkSeparators are tried in order: paragraph, line, word, character.
var chunkSeparators = []string{"\n\n", "\n", " ", ""}

func newSplitter() textsplitter.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(ChunkSize),
		textsplitter.WithChunkOverlap(ChunkOverlap),
		textsplitter.WithSeparators(chunkSeparators),
	)
}

// textChunk is a split section before embedding.
type textChunk struct {
	text     string
	metadata map[string]string
}

// splitSections chunks every section, keeping its adapter metadata on each
// chunk. Whitespace-only chunks are dropped.
func splitSections(splitter textsplitter.TextSplitter, sections []schema.Document) ([]textChunk, error) {
	docs, err := textsplitter.SplitDocuments(splitter, sections)
	if err != nil {
		return nil, err
	}

	chunks := make([]textChunk, 0, len(docs))
	for _, doc := range docs {
		text := strings.TrimSpace(doc.PageContent)
		if text == "" {
			continue
		}
		chunks = append(chunks, textChunk{text: text, metadata: stringMetadata(doc.Metadata)})
	}
	return chunks, nil
}

// stringMetadata flattens adapter metadata to strings.
func stringMetadata(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := in[k].(type) {
		case nil:
		case string:
			out[k] = v
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

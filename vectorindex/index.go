package vectorindex

import (
	"context"

	"github.com/codefulcrum/senseai/core"
	"github.com/philippgille/chromem-go"
)

// Index is a loaded, searchable vector index.
// Safe for concurrent use.
type Index struct {
	collection *chromem.Collection
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int {
	return i.collection.Count()
}

// Search returns up to k fragments ranked by similarity to vector, best first.
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]core.Fragment, error) {
	if n := i.collection.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return []core.Fragment{}, nil
	}

	results, err := i.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, err
	}

	fragments := make([]core.Fragment, len(results))
	for j, r := range results {
		fragments[j] = core.Fragment{
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    r.Similarity,
		}
	}
	return fragments, nil
}

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/codefulcrum/senseai/ai"
)

// batchEmbedder embeds chunk texts in fixed-size batches with retry.
type batchEmbedder struct {
	embedder    ai.Embedder
	batchSize   int
	retry       RetryPolicy
	callTimeout time.Duration
	logger      *slog.Logger
}

// embed returns one unit-length vector per text, in order. progress is
// called after each batch with the number of texts embedded so far.
func (b *batchEmbedder) embed(ctx context.Context, texts []string, progress func(done int)) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		batch := texts[start:end]

		var result [][]float32
		err := b.retry.Do(ctx, b.logger, func(ctx context.Context) error {
			callCtx, cancel := b.callContext(ctx)
			defer cancel()

			var err error
			result, err = b.embedder.EmbedTexts(callCtx, batch)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", b.retry.MaxAttempts, err)
		}
		if len(result) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(batch), len(result))
		}

		for _, v := range result {
			vectors = append(vectors, NormalizeVector(v))
		}
		if progress != nil {
			progress(len(vectors))
		}
	}
	return vectors, nil
}

func (b *batchEmbedder) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.callTimeout)
}

// NormalizeVector scales v to unit length in a new slice.
// A zero vector stays zero.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	mag := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}

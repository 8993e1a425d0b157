package ai

import (
	"context"

	"github.com/codefulcrum/senseai/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Answer is a generated reply and the fragments it was grounded on.
type Answer struct {
	Text    string
	Sources []core.Fragment
}

// AnswerGenerator produces grounded answers from retrieved context.
// Implementations must be thread-safe for concurrent use.
type AnswerGenerator interface {
	// CondenseQuestion rewrites a follow-up question into a standalone
	// question using the conversation history. With no history the question
	// is returned unchanged.
	CondenseQuestion(ctx context.Context, question string, history []core.Exchange) (string, error)

	// GenerateAnswer answers question using only the supplied fragments as
	// context, with history available for conversational references.
	GenerateAnswer(ctx context.Context, question string, fragments []core.Fragment, history []core.Exchange) (*Answer, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// AnswerGenerator returns the answer generation service.
	AnswerGenerator() AnswerGenerator

	// Close releases resources held by the provider and its services.
	Close() error
}

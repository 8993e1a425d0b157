package ingestion

import "errors"

var (
	// ErrContentStoreRequired is returned when a content store is not provided.
	ErrContentStoreRequired = errors.New("content store required")

	// ErrIndexStoreRequired is returned when an index store is not provided.
	ErrIndexStoreRequired = errors.New("index store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInProgress is returned when the item is already being ingested.
	ErrInProgress = errors.New("ingestion already in progress")

	// ErrNoText is returned when extraction yields no usable chunks.
	ErrNoText = errors.New("no extractable text")

	// ErrEmbeddingMismatch is returned when the provider returns a different
	// number of vectors than texts sent.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)

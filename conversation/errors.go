package conversation

import "errors"

var (
	// ErrContentLookupRequired is returned when a content lookup is not provided.
	ErrContentLookupRequired = errors.New("content lookup required")

	// ErrIndexLoaderRequired is returned when an index loader is not provided.
	ErrIndexLoaderRequired = errors.New("index loader required")

	// ErrSessionStoreRequired is returned when a session store is not provided.
	ErrSessionStoreRequired = errors.New("session store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidRetrievalK is returned for a non-positive fragment count.
	ErrInvalidRetrievalK = errors.New("retrieval k must be greater than 0")
)

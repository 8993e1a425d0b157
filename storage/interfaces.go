package storage

import (
	"context"

	"github.com/codefulcrum/senseai/core"
)

// ContentRepository persists content item metadata.
// Implementations must be thread-safe and support concurrent access.
type ContentRepository interface {
	// PutContent inserts or replaces a content item.
	// Sets UpdatedAt; sets CreatedAt if it is zero.
	PutContent(ctx context.Context, item *core.ContentItem) error

	// GetContent retrieves a content item by ID.
	// Returns ErrNotFound if the item doesn't exist.
	GetContent(ctx context.Context, id string) (*core.ContentItem, error)

	// ListContent returns every stored content item, in no particular order.
	ListContent(ctx context.Context) ([]*core.ContentItem, error)

	// DeleteContent removes a content item.
	// Returns ErrNotFound if the item doesn't exist.
	DeleteContent(ctx context.Context, id string) error

	// Close releases repository resources. The backend stays open.
	Close() error
}

// SessionState is the full persisted session state.
type SessionState struct {
	Records     []*core.SessionRecord
	Transcripts map[string][]core.Turn

	// Malformed lists entries that could not be decoded. They are not
	// included in Records or Transcripts.
	Malformed []MalformedEntry
}

// MalformedEntry describes one undecodable persisted entry.
type MalformedEntry struct {
	Key string
	Err error
}

// SessionRepository persists session records and transcripts as one unit.
// Implementations must be thread-safe and support concurrent access.
type SessionRepository interface {
	// ReplaceSessions overwrites all persisted records and transcripts with
	// the given state in a single transaction.
	ReplaceSessions(ctx context.Context, records []*core.SessionRecord, transcripts map[string][]core.Turn) error

	// LoadSessions reads the persisted state. An empty store yields an empty
	// state, not an error.
	LoadSessions(ctx context.Context) (*SessionState, error)

	// Close releases repository resources. The backend stays open.
	Close() error
}

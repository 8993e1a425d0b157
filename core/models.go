package core

import (
	"strings"
	"time"
)

// Origin identifies where a content item came from.
type Origin string

const (
	// OriginFile is an uploaded document.
	OriginFile Origin = "file"
	// OriginURL is a registered web page.
	OriginURL Origin = "url"
)

// URLTypeTag is the content type tag of every URL-sourced item.
const URLTypeTag = "url/html"

// ProcessingStatus tracks a content item through ingestion.
type ProcessingStatus string

const (
	// StatusPending means the item is registered but its index is not built yet.
	StatusPending ProcessingStatus = "pending"
	// StatusReady means the vector index was built and the item can be chatted with.
	StatusReady ProcessingStatus = "ready"
	// StatusFailed means the last ingestion attempt failed.
	StatusFailed ProcessingStatus = "failed"
)

// ContentItem is a registered document or URL and its metadata.
type ContentItem struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Type       string           `json:"type"` // "file:<ext>" or "url/html"
	Origin     Origin           `json:"origin"`
	SourceURL  string           `json:"sourceUrl,omitempty"`
	SourcePath string           `json:"sourcePath,omitempty"` // retained raw source on disk
	Size       int64            `json:"size"`
	Owner      string           `json:"owner,omitempty"`
	Status     ProcessingStatus `json:"status"`
	LastError  string           `json:"lastError,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// FileTypeTag builds the type tag for a file with the given extension.
// The extension may carry a leading dot.
func FileTypeTag(ext string) string {
	return "file:" + strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Extension returns the lowercase file extension encoded in the type tag,
// or an empty string for URL items.
func (c *ContentItem) Extension() string {
	ext, ok := strings.CutPrefix(c.Type, "file:")
	if !ok {
		return ""
	}
	return ext
}

// IsURL reports whether the item was registered from a URL.
func (c *ContentItem) IsURL() bool {
	return c.Origin == OriginURL
}

// SessionRecord holds the durable usage counters of one conversation.
// It is keyed by the content item id.
type SessionRecord struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
	Owner        string    `json:"owner,omitempty"`
}

// Role tags a transcript turn.
type Role string

const (
	// RoleUser is a message written by the caller.
	RoleUser Role = "user"
	// RoleAssistant is a generated answer.
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Exchange is one user input paired with the assistant output that answered it.
// Either side may be empty.
type Exchange struct {
	Input  string
	Output string
}

// Fragment is a chunk of source text returned by retrieval.
type Fragment struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float32           `json:"score,omitempty"`
}

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	Role              Role
	Content           string
	Sources           []Fragment
	MessagesRemaining int
	SessionExpiresIn  time.Duration
	// Terminal is set when the session hit its time or message limit and
	// Content explains which.
	Terminal bool
}

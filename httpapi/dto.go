package httpapi

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/codefulcrum/senseai/core"
)

// documentResponse is the wire form of a content item.
type documentResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	UploadedAt string `json:"uploadedAt"`
	Size       int64  `json:"size"`
	Source     string `json:"source"`
	SourceURL  string `json:"sourceUrl,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	Status     string `json:"status"`
	LastError  string `json:"lastError,omitempty"`
}

func newDocumentResponse(item *core.ContentItem) documentResponse {
	typ := item.Type
	if !item.IsURL() {
		typ = item.Extension()
	}
	return documentResponse{
		ID:         item.ID,
		Name:       item.Name,
		Type:       typ,
		UploadedAt: item.CreatedAt.Format(time.RFC3339Nano),
		Size:       item.Size,
		Source:     string(item.Origin),
		SourceURL:  item.SourceURL,
		DeviceID:   item.Owner,
		Status:     string(item.Status),
		LastError:  item.LastError,
	}
}

type urlRequest struct {
	URL      string `json:"url" binding:"required"`
	DeviceID string `json:"device_id"`
}

type sessionRequest struct {
	DeviceID string `json:"device_id"`
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages   string         `json:"messages"`
	SessionIDs sessionIDs     `json:"session_ids"`
	History    []historyEntry `json:"history"`
	DeviceID   string         `json:"device_id"`
}

// turns converts client history, dropping entries with unknown roles.
func (r *chatRequest) turns() []core.Turn {
	turns := make([]core.Turn, 0, len(r.History))
	for _, h := range r.History {
		role := core.Role(h.Role)
		if role != core.RoleUser && role != core.RoleAssistant {
			continue
		}
		turns = append(turns, core.Turn{Role: role, Content: h.Content})
	}
	return turns
}

// sessionIDs accepts either a single id string or a list of ids.
type sessionIDs []string

func (s *sessionIDs) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = sessionIDs{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("session_ids must be a string or a list of strings")
	}
	*s = many
	return nil
}

func (s sessionIDs) first() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

type sourceResponse struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

type chatResponse struct {
	Role              string           `json:"role"`
	Content           string           `json:"content"`
	Sources           []sourceResponse `json:"sources"`
	MessagesRemaining int              `json:"messages_remaining"`
	SessionExpiresIn  float64          `json:"session_expires_in"`
}

func newChatResponse(result *core.TurnResult) chatResponse {
	sources := make([]sourceResponse, len(result.Sources))
	for i, f := range result.Sources {
		metadata := f.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		sources[i] = sourceResponse{Content: f.Content, Metadata: metadata}
	}
	return chatResponse{
		Role:              string(result.Role),
		Content:           result.Content,
		Sources:           sources,
		MessagesRemaining: result.MessagesRemaining,
		SessionExpiresIn:  result.SessionExpiresIn.Seconds(),
	}
}

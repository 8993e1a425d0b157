// Copyright 2025 The senseai Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/codefulcrum/senseai/core"
)

// TimestampFormat is the textual timestamp layout of persisted records.
const TimestampFormat = time.RFC3339Nano

// sessionRecordDoc is the persisted shape of a SessionRecord.
type sessionRecordDoc struct {
	CreatedAt    string `json:"created_at"`
	MessageCount int    `json:"message_count"`
	Owner        string `json:"device_id,omitempty"`
}

// transcriptDoc is the persisted shape of a transcript.
type transcriptDoc struct {
	ChatHistory []core.Turn `json:"chat_history"`
}

// MarshalContentItem serializes a ContentItem to JSON.
func MarshalContentItem(item *core.ContentItem) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalContentItem deserializes and validates a ContentItem.
func UnmarshalContentItem(data []byte) (*core.ContentItem, error) {
	var item core.ContentItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if err := core.ValidateContentItem(&item); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &item, nil
}

// MarshalSessionRecord serializes a SessionRecord. The ID is the storage key
// and is not repeated in the value.
func MarshalSessionRecord(record *core.SessionRecord) ([]byte, error) {
	doc := sessionRecordDoc{
		CreatedAt:    record.CreatedAt.UTC().Format(TimestampFormat),
		MessageCount: record.MessageCount,
		Owner:        record.Owner,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalSessionRecord deserializes and validates a SessionRecord stored under id.
func UnmarshalSessionRecord(id string, data []byte) (*core.SessionRecord, error) {
	var doc sessionRecordDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	createdAt, err := time.Parse(TimestampFormat, doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %w", ErrSerializationFailed, err)
	}
	record := &core.SessionRecord{
		ID:           id,
		CreatedAt:    createdAt.UTC(),
		MessageCount: doc.MessageCount,
		Owner:        doc.Owner,
	}
	if err := core.ValidateSessionRecord(record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return record, nil
}

// MarshalTranscript serializes a transcript.
func MarshalTranscript(turns []core.Turn) ([]byte, error) {
	if turns == nil {
		turns = []core.Turn{}
	}
	data, err := json.Marshal(transcriptDoc{ChatHistory: turns})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalTranscript deserializes a transcript and validates every role.
func UnmarshalTranscript(data []byte) ([]core.Turn, error) {
	var doc transcriptDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if err := core.ValidateTurns(doc.ChatHistory); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if doc.ChatHistory == nil {
		doc.ChatHistory = []core.Turn{}
	}
	return doc.ChatHistory, nil
}

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


package core

import "errors"

// Error kinds surfaced to callers. Components wrap these with detail, so
// match with errors.Is.
var (
	// ErrUnsupportedFormat indicates a file extension with no extraction adapter.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrIngestionFailed indicates extraction, splitting, embedding or index building failed.
	ErrIngestionFailed = errors.New("ingestion failed")

	// ErrContentNotProcessed indicates the content item has no usable vector index.
	ErrContentNotProcessed = errors.New("content not processed")

	// ErrNotFound indicates the content item does not exist.
	ErrNotFound = errors.New("content not found")

	// ErrForbidden indicates the caller's owner tag does not match the item's.
	ErrForbidden = errors.New("forbidden")

	// ErrSessionNotFound indicates there is no session record for the id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyMessage indicates a chat turn without message text.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrSessionLoadFailed indicates the conversation could not be materialized.
	ErrSessionLoadFailed = errors.New("session load failed")

	// ErrAnswerGenerationFailed indicates retrieval or answer generation failed.
	ErrAnswerGenerationFailed = errors.New("answer generation failed")

	// ErrMalformedPersistedState indicates persisted session state could not be decoded.
	ErrMalformedPersistedState = errors.New("malformed persisted state")
)

// Domain validation errors
var (
	// ErrInvalidContentItem indicates a ContentItem failed validation.
	ErrInvalidContentItem = errors.New("invalid content item")

	// ErrInvalidSessionRecord indicates a SessionRecord failed validation.
	ErrInvalidSessionRecord = errors.New("invalid session record")

	// ErrInvalidRole indicates a transcript role other than user or assistant.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptyID indicates a missing identifier.
	ErrEmptyID = errors.New("id cannot be empty")
)

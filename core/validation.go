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

import (
	"fmt"
	"strings"
)

// ValidateContentItem validates a ContentItem according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Origin must be file or url
//   - URL items must carry a source URL
//   - Status must be pending, ready or failed
func ValidateContentItem(item *ContentItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidContentItem)
	}
	if item.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidContentItem, ErrEmptyID)
	}
	switch item.Origin {
	case OriginFile:
	case OriginURL:
		if item.SourceURL == "" {
			return fmt.Errorf("%w: url item without source url", ErrInvalidContentItem)
		}
	default:
		return fmt.Errorf("%w: unknown origin %q", ErrInvalidContentItem, item.Origin)
	}
	switch item.Status {
	case StatusPending, StatusReady, StatusFailed:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidContentItem, item.Status)
	}
	return nil
}

// ValidateSessionRecord validates a SessionRecord.
func ValidateSessionRecord(record *SessionRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidSessionRecord)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSessionRecord, ErrEmptyID)
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing creation time", ErrInvalidSessionRecord)
	}
	if record.MessageCount < 0 {
		return fmt.Errorf("%w: negative message count", ErrInvalidSessionRecord)
	}
	return nil
}

// ValidateRole checks that role is one of the known roles.
func ValidateRole(role Role) error {
	switch role {
	case RoleUser, RoleAssistant:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
}

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if err := ValidateRole(role); err != nil {
		return "", err
	}
	return role, nil
}

// ValidateTurns validates every turn of a transcript.
// Content may be empty; roles may not.
func ValidateTurns(turns []Turn) error {
	for i, turn := range turns {
		if err := ValidateRole(turn.Role); err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}
	}
	return nil
}

// ValidateMessage rejects blank chat messages.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// CheckOwnership applies the owner tag policy. An empty caller tag always
// passes, and so does an item without an owner. Otherwise the tags must match.
func CheckOwnership(itemOwner, callerOwner string) error {
	if callerOwner == "" || itemOwner == "" {
		return nil
	}
	if itemOwner != callerOwner {
		return ErrForbidden
	}
	return nil
}

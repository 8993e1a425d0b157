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


package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/storage"
	"github.com/dgraph-io/badger/v4"
)

// SessionRepository implements storage.SessionRepository for BadgerDB.
//
// Each ReplaceSessions call writes the full state under a new generation
// and then moves sessionGenerationKey to it. Loads only read the generation
// the pointer names, so a flush interrupted part way leaves the previous
// state readable however many transactions the write needed.
type SessionRepository struct {
	backend *Backend
	mu      sync.Mutex
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(backend *Backend) *SessionRepository {
	return &SessionRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *SessionRepository) Close() error {
	return nil
}

// ReplaceSessions overwrites every persisted record and transcript.
func (r *SessionRepository) ReplaceSessions(ctx context.Context, records []*core.SessionRecord, transcripts map[string][]core.Turn) error {
	// Encode first so a bad record leaves storage untouched
	recordValues := make(map[string][]byte, len(records))
	for _, record := range records {
		if err := core.ValidateSessionRecord(record); err != nil {
			return err
		}
		value, err := storage.MarshalSessionRecord(record)
		if err != nil {
			return err
		}
		recordValues[record.ID] = value
	}

	transcriptValues := make(map[string][]byte, len(transcripts))
	for id, turns := range transcripts {
		if err := core.ValidateTurns(turns); err != nil {
			return err
		}
		value, err := storage.MarshalTranscript(turns)
		if err != nil {
			return err
		}
		transcriptValues[id] = value
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, _, err := r.generation()
	if err != nil {
		return err
	}
	next := current + 1

	// Leftovers of an interrupted flush may already sit under next
	if err := r.sweep(current); err != nil {
		return err
	}

	err = r.backend.Batch(func(wb *badger.WriteBatch) error {
		for id, value := range recordValues {
			if err := wb.Set(makeSessionRecordKey(next, id), value); err != nil {
				return err
			}
		}
		for id, value := range transcriptValues {
			if err := wb.Set(makeTranscriptKey(next, id), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write session generation %d: %w", next, err)
	}

	err = r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(sessionGenerationKey), encodeGeneration(next))
	})
	if err != nil {
		return err
	}

	// The new state is live; a failed sweep is retried by the next flush
	if err := r.sweep(next); err != nil {
		r.backend.logger.Warn("failed to remove previous session generation", "generation", current, "err", err)
	}
	return nil
}

// generation reads the live generation. ok is false when no state was ever
// written.
func (r *SessionRepository) generation() (gen uint64, ok bool, err error) {
	err = r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(sessionGenerationKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			gen, err = decodeGeneration(val)
			if err != nil {
				return fmt.Errorf("%w: session generation %q", storage.ErrSerializationFailed, val)
			}
			ok = true
			return nil
		})
	})
	return gen, ok, err
}

// sweep deletes every session key outside generation keep.
func (r *SessionRepository) sweep(keep uint64) error {
	var stale [][]byte
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, family := range []string{sessionRecordPrefix, transcriptPrefix} {
			for _, key := range keysWithPrefix(tx, prefixOf(family)) {
				if gen, ok := keyGeneration(family, key); !ok || gen != keep {
					stale = append(stale, key)
				}
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return err
	}

	return r.backend.Batch(func(wb *badger.WriteBatch) error {
		for _, key := range stale {
			if err := wb.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSessions reads every record and transcript of the live generation.
// Undecodable entries are reported in SessionState.Malformed.
func (r *SessionRepository) LoadSessions(ctx context.Context) (*storage.SessionState, error) {
	state := &storage.SessionState{
		Transcripts: make(map[string][]core.Turn),
	}

	gen, ok, err := r.generation()
	if err != nil || !ok {
		return state, err
	}

	recordPrefix := generationPrefix(sessionRecordPrefix, gen)
	turnsPrefix := generationPrefix(transcriptPrefix, gen)
	err = r.backend.View(func(tx *badger.Txn) error {
		err := scanPrefix(tx, recordPrefix, func(key, val []byte) error {
			record, err := storage.UnmarshalSessionRecord(idFromKey(recordPrefix, key), val)
			if err != nil {
				state.Malformed = append(state.Malformed, storage.MalformedEntry{Key: string(key), Err: err})
				return nil
			}
			state.Records = append(state.Records, record)
			return nil
		})
		if err != nil {
			return err
		}

		return scanPrefix(tx, turnsPrefix, func(key, val []byte) error {
			turns, err := storage.UnmarshalTranscript(val)
			if err != nil {
				state.Malformed = append(state.Malformed, storage.MalformedEntry{Key: string(key), Err: err})
				return nil
			}
			state.Transcripts[idFromKey(turnsPrefix, key)] = turns
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(state.Records, func(a, b *core.SessionRecord) int {
		return strings.Compare(a.ID, b.ID)
	})
	return state, nil
}

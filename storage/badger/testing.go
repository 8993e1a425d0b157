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
	"github.com/codefulcrum/senseai/storage"
	"github.com/dgraph-io/badger/v4"
)

// NewMemoryRepositories creates in-memory content and session repositories for testing.
// Returns contentRepo, sessionRepo, backend, and error.
// Caller must close the backend when done.
func NewMemoryRepositories() (storage.ContentRepository, storage.SessionRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewContentRepository(backend), NewSessionRepository(backend), backend, nil
}

// WriteRawSessionEntry stores value as the record (or transcript) of id in
// the live session generation, starting generation 1 on a store that was
// never flushed. Tests use it to plant entries the codecs would not produce.
func WriteRawSessionEntry(backend *Backend, transcript bool, id string, value []byte) error {
	repo := NewSessionRepository(backend)
	gen, ok, err := repo.generation()
	if err != nil {
		return err
	}
	if !ok {
		gen = 1
	}
	key := makeSessionRecordKey(gen, id)
	if transcript {
		key = makeTranscriptKey(gen, id)
	}
	return backend.Update(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(sessionGenerationKey), encodeGeneration(gen)); err != nil {
			return err
		}
		return tx.Set(key, value)
	})
}

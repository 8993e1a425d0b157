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


// Package storage provides the storage abstraction layer for senseai.
//
// Repository interfaces decouple the registry, session store and persistence
// gateway from the storage engine:
//
//   - ContentRepository: content item metadata, keyed by content id
//   - SessionRepository: session records and transcripts, written as one unit
//
// Values are stored as JSON text. Session timestamps use TimestampFormat
// (RFC 3339 with nanoseconds, UTC) so persisted state stays readable and
// stable across releases.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	contents := badger.NewContentRepository(backend)
//	sessions := badger.NewSessionRepository(backend)
//
// Tests use the in-memory helper:
//
//	contents, sessions, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be safe for concurrent use.
package storage

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


package session

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/codefulcrum/senseai/core"
)

// Store is the process-wide session record store. Records are returned as
// copies; all mutation goes through Store methods.
type Store struct {
	policy Policy
	now    func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]*core.SessionRecord
}

// Option configures a Store.
type Option func(*Store) error

// WithPolicy sets the usage limits.
// Default is DefaultPolicy().
func WithPolicy(p Policy) Option {
	return func(s *Store) error {
		if err := p.Validate(); err != nil {
			return err
		}
		s.policy = p
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		policy:  DefaultPolicy(),
		now:     time.Now,
		logger:  slog.Default().With("component", "session-store"),
		records: make(map[string]*core.SessionRecord),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Policy returns the store's usage limits.
func (s *Store) Policy() Policy {
	return s.policy
}

// Now returns the current time according to the store's clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// CreateOrGet returns the record for id, creating it with the given owner
// if it does not exist. An existing record keeps its original owner.
func (s *Store) CreateOrGet(id, owner string) *core.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[id]; ok {
		return copyRecord(rec)
	}
	rec := &core.SessionRecord{
		ID:        id,
		CreatedAt: s.now().UTC(),
		Owner:     owner,
	}
	s.records[id] = rec
	s.logger.Debug("session record created", "id", id, "owner", owner)
	return copyRecord(rec)
}

// Get returns the record for id or core.ErrSessionNotFound.
func (s *Store) Get(id string) (*core.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return copyRecord(rec), nil
}

// Increment adds one accepted message and returns the new count.
func (s *Store) Increment(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	rec.MessageCount++
	return rec.MessageCount, nil
}

// IsExpired reports whether more than the TTL has elapsed since creation.
func (s *Store) IsExpired(id string, now time.Time) (bool, error) {
	rec, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return s.policy.Expired(rec, now), nil
}

// IsExhausted reports whether the message cap has been reached.
func (s *Store) IsExhausted(id string) (bool, error) {
	rec, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return s.policy.Exhausted(rec), nil
}

// Remove deletes the record for id. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Snapshot returns copies of all records ordered by id.
func (s *Store) Snapshot() []*core.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.SessionRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore replaces the store contents with records, typically at startup.
func (s *Store) Restore(records []*core.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*core.SessionRecord, len(records))
	for _, rec := range records {
		s.records[rec.ID] = copyRecord(rec)
	}
	s.logger.Info("session records restored", "count", len(records))
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyRecord(rec *core.SessionRecord) *core.SessionRecord {
	c := *rec
	return &c
}

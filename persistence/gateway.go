// Package persistence flushes session records and conversation transcripts
// to durable storage and restores them at startup.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/storage"
)

// ErrRepositoryRequired is returned when a session repository is not provided.
var ErrRepositoryRequired = errors.New("session repository required")

// SessionSource supplies every session record.
type SessionSource interface {
	Snapshot() []*core.SessionRecord
}

// TranscriptSource supplies the transcripts to persist, keyed by content id.
type TranscriptSource interface {
	Transcripts() map[string][]core.Turn
}

// Gateway writes and reads the full session state.
type Gateway struct {
	repo   storage.SessionRepository
	strict bool
	logger *slog.Logger

	mu sync.Mutex // orders flushes
}

// Option configures a Gateway.
type Option func(*Gateway) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// WithStrictLoad makes Load fail on the first undecodable entry instead of
// skipping it.
func WithStrictLoad(strict bool) Option {
	return func(g *Gateway) error {
		g.strict = strict
		return nil
	}
}

// NewGateway creates a gateway over repo.
func NewGateway(repo storage.SessionRepository, opts ...Option) (*Gateway, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	g := &Gateway{
		repo:   repo,
		logger: slog.Default().With("component", "persistence"),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Flush overwrites persisted state with the current records and transcripts.
// State is captured and written under one lock, so concurrent flushes land
// in the order they captured.
func (g *Gateway) Flush(ctx context.Context, sessions SessionSource, transcripts TranscriptSource) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	records := sessions.Snapshot()
	turns := transcripts.Transcripts()
	if err := g.repo.ReplaceSessions(ctx, records, turns); err != nil {
		return fmt.Errorf("flush session state: %w", err)
	}
	g.logger.Debug("session state flushed", "records", len(records), "transcripts", len(turns))
	return nil
}

// Load reads persisted state. A store that was never written yields empty
// state. Undecodable entries are skipped with a warning, or fail the load
// with core.ErrMalformedPersistedState when strict loading is on.
func (g *Gateway) Load(ctx context.Context) ([]*core.SessionRecord, map[string][]core.Turn, error) {
	state, err := g.repo.LoadSessions(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, bad := range state.Malformed {
		if g.strict {
			return nil, nil, fmt.Errorf("%w: %s: %w", core.ErrMalformedPersistedState, bad.Key, bad.Err)
		}
		g.logger.Warn("skipping malformed persisted entry", "key", bad.Key, "err", bad.Err)
	}

	g.logger.Info("session state loaded", "records", len(state.Records), "transcripts", len(state.Transcripts), "skipped", len(state.Malformed))
	return state.Records, state.Transcripts, nil
}

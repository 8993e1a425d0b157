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


package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codefulcrum/senseai/ai"
	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/session"
	"github.com/codefulcrum/senseai/vectorindex"
)

const (
	// DefaultRetrievalK is how many fragments are retrieved per turn.
	DefaultRetrievalK = 4

	defaultCallTimeout = 2 * time.Minute
)

// ContentLookup resolves content items by id.
type ContentLookup interface {
	GetContent(ctx context.Context, id string) (*core.ContentItem, error)
}

// IndexLoader opens persisted vector indexes.
type IndexLoader interface {
	PathFor(item *core.ContentItem) string
	Exists(path string) bool
	Load(ctx context.Context, path string) (*vectorindex.Index, error)
}

// PersistFunc saves session state after an accepted turn.
type PersistFunc func(ctx context.Context) error

// Request is one chat turn.
type Request struct {
	SessionID string
	Message   string
	// History is a caller supplied transcript that replaces the
	// conversation's own memory as context for this turn when non-empty.
	History []core.Turn
	Owner   string
}

// Engine executes chat turns.
type Engine struct {
	contents    ContentLookup
	indexes     IndexLoader
	sessions    *session.Store
	embedder    ai.Embedder
	generator   ai.AnswerGenerator
	k           int
	callTimeout time.Duration
	persist     PersistFunc
	logger      *slog.Logger

	locks *keyLock

	mu      sync.RWMutex
	active  map[string]*activeConversation
	dormant map[string][]core.Turn // persisted transcripts not yet loaded
}

// activeConversation is a loaded index plus conversational memory.
type activeConversation struct {
	index *vectorindex.Index

	mu     sync.Mutex
	memory []core.Exchange
}

func (c *activeConversation) history() []core.Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Exchange(nil), c.memory...)
}

func (c *activeConversation) remember(ex core.Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory = append(c.memory, ex)
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithRetrievalK sets how many fragments are retrieved per turn.
func WithRetrievalK(k int) Option {
	return func(e *Engine) error {
		if k <= 0 {
			return ErrInvalidRetrievalK
		}
		e.k = k
		return nil
	}
}

// WithCallTimeout bounds each provider call made during a turn.
// Zero disables the bound. Default is 2 minutes.
func WithCallTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		e.callTimeout = timeout
		return nil
	}
}

// WithPersist sets the function called after every accepted turn.
func WithPersist(fn PersistFunc) Option {
	return func(e *Engine) error {
		e.persist = fn
		return nil
	}
}

// NewEngine creates a conversation engine.
func NewEngine(contents ContentLookup, indexes IndexLoader, sessions *session.Store, provider ai.AIProvider, opts ...Option) (*Engine, error) {
	if contents == nil {
		return nil, ErrContentLookupRequired
	}
	if indexes == nil {
		return nil, ErrIndexLoaderRequired
	}
	if sessions == nil {
		return nil, ErrSessionStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		contents:    contents,
		indexes:     indexes,
		sessions:    sessions,
		embedder:    provider.Embedder(),
		generator:   provider.AnswerGenerator(),
		k:           DefaultRetrievalK,
		callTimeout: defaultCallTimeout,
		logger:      slog.Default().With("component", "conversation"),
		locks:       newKeyLock(),
		active:      make(map[string]*activeConversation),
		dormant:     make(map[string][]core.Turn),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// EnsureLoaded makes the conversation for id active, replaying any
// persisted transcript. Failures are not cached.
func (e *Engine) EnsureLoaded(ctx context.Context, id string) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	_, err := e.ensureLoaded(ctx, id)
	return err
}

func (e *Engine) ensureLoaded(ctx context.Context, id string) (*activeConversation, error) {
	e.mu.RLock()
	conv, ok := e.active[id]
	e.mu.RUnlock()
	if ok {
		return conv, nil
	}

	item, err := e.contents.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}
	switch item.Status {
	case core.StatusPending:
		return nil, fmt.Errorf("%w: %s is still being processed", core.ErrContentNotProcessed, id)
	case core.StatusFailed:
		return nil, fmt.Errorf("%w: %s failed to process: %s", core.ErrContentNotProcessed, id, item.LastError)
	}

	path := e.indexes.PathFor(item)
	if !e.indexes.Exists(path) {
		return nil, fmt.Errorf("%w: %s has no index", core.ErrContentNotProcessed, id)
	}
	index, err := e.indexes.Load(ctx, path)
	if err != nil {
		e.logger.Error("failed to load index", "id", id, "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrSessionLoadFailed, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	conv = &activeConversation{
		index:  index,
		memory: core.PairTurns(e.dormant[id]),
	}
	e.active[id] = conv
	delete(e.dormant, id)

	e.logger.Info("conversation loaded", "id", id, "chunks", index.Len(), "replayed", len(conv.memory))
	return conv, nil
}

// Turn executes one chat turn.
func (e *Engine) Turn(ctx context.Context, req Request) (*core.TurnResult, error) {
	if err := core.ValidateMessage(req.Message); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(req.SessionID)
	defer unlock()

	rec, err := e.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := core.CheckOwnership(rec.Owner, req.Owner); err != nil {
		return nil, err
	}

	conv, err := e.ensureLoaded(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	policy := e.sessions.Policy()
	now := e.sessions.Now()
	remaining := policy.MessagesRemaining(rec)
	expiresIn := policy.ExpiresIn(rec, now)

	if policy.Expired(rec, now) {
		e.logger.Info("session expired", "id", req.SessionID, "created", rec.CreatedAt)
		return terminal(policy.TimeLimitMessage(), remaining, 0), nil
	}
	if policy.Exhausted(rec) {
		e.logger.Info("session exhausted", "id", req.SessionID, "messages", rec.MessageCount)
		return terminal(policy.MessageLimitMessage(), 0, expiresIn), nil
	}

	history := conv.history()
	if len(req.History) > 0 {
		history = core.PairTurns(req.History)
	}

	answer, err := e.answer(ctx, conv, req.Message, history)
	if err != nil {
		e.logger.Error("answer generation failed", "id", req.SessionID, "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrAnswerGenerationFailed, err)
	}

	count, err := e.sessions.Increment(req.SessionID)
	if err != nil {
		return nil, err
	}
	conv.remember(core.Exchange{Input: req.Message, Output: answer.Text})

	if e.persist != nil {
		if err := e.persist(ctx); err != nil {
			e.logger.Error("failed to persist session state", "id", req.SessionID, "err", err)
		}
	}

	rec.MessageCount = count
	return &core.TurnResult{
		Role:              core.RoleAssistant,
		Content:           answer.Text,
		Sources:           answer.Sources,
		MessagesRemaining: policy.MessagesRemaining(rec),
		SessionExpiresIn:  expiresIn,
	}, nil
}

// answer condenses the question against history, retrieves fragments for
// it, and generates the reply.
func (e *Engine) answer(ctx context.Context, conv *activeConversation, message string, history []core.Exchange) (*ai.Answer, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	standalone, err := e.generator.CondenseQuestion(callCtx, message, history)
	if err != nil {
		return nil, fmt.Errorf("condense question: %w", err)
	}

	vector, err := e.embedder.EmbedText(callCtx, standalone)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	fragments, err := conv.index.Search(callCtx, vector, e.k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	answer, err := e.generator.GenerateAnswer(callCtx, message, fragments, history)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

func terminal(text string, remaining int, expiresIn time.Duration) *core.TurnResult {
	return &core.TurnResult{
		Role:              core.RoleAssistant,
		Content:           text,
		Sources:           []core.Fragment{},
		MessagesRemaining: remaining,
		SessionExpiresIn:  expiresIn,
		Terminal:          true,
	}
}

// Evict drops the active conversation and any dormant transcript for id.
func (e *Engine) Evict(id string) {
	unlock := e.locks.Lock(id)
	defer unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, id)
	delete(e.dormant, id)
}

// Invalidate unloads the index for id but keeps its memory, so the next
// turn reopens a rebuilt index and replays the conversation so far.
func (e *Engine) Invalidate(id string) {
	unlock := e.locks.Lock(id)
	defer unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	conv, ok := e.active[id]
	if !ok {
		return
	}
	delete(e.active, id)
	e.dormant[id] = core.FlattenExchanges(conv.history())
}

// IsLoaded reports whether id has an active conversation.
func (e *Engine) IsLoaded(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.active[id]
	return ok
}

// RestoreTranscripts installs persisted transcripts to be replayed when
// each conversation is first loaded.
func (e *Engine) RestoreTranscripts(transcripts map[string][]core.Turn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, turns := range transcripts {
		if _, loaded := e.active[id]; loaded {
			continue
		}
		e.dormant[id] = append([]core.Turn(nil), turns...)
	}
}

// Transcripts returns the transcript of every active conversation plus
// every dormant one.
func (e *Engine) Transcripts() map[string][]core.Turn {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string][]core.Turn, len(e.active)+len(e.dormant))
	for id, turns := range e.dormant {
		out[id] = append([]core.Turn(nil), turns...)
	}
	for id, conv := range e.active {
		out[id] = core.FlattenExchanges(conv.history())
	}
	return out
}

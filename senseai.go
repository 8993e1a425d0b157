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


package senseai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/codefulcrum/senseai/ai"
	"github.com/codefulcrum/senseai/ai/openai"
	"github.com/codefulcrum/senseai/conversation"
	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/ingestion"
	"github.com/codefulcrum/senseai/persistence"
	"github.com/codefulcrum/senseai/registry"
	"github.com/codefulcrum/senseai/session"
	"github.com/codefulcrum/senseai/storage/badger"
	"github.com/codefulcrum/senseai/vectorindex"
)

// ErrDataDirRequired is returned when New is called without a data directory.
var ErrDataDirRequired = errors.New("data directory is required")

// App wires the registry, ingestion pipeline, session store, conversation
// engine and persistence gateway over one data directory.
type App struct {
	backend    *badger.Backend
	indexes    *vectorindex.Store
	registry   *registry.Registry
	sessions   *session.Store
	pipeline   *ingestion.Pipeline
	engine     *conversation.Engine
	gateway    *persistence.Gateway
	provider   ai.AIProvider
	background bool
	logger     *slog.Logger
}

// Option configures an App.
type Option func(*options)

type options struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	logger        *slog.Logger
	policy        session.Policy
	clock         func() time.Time
	background    bool
	strictLoad    bool
	ingestionOpts []ingestion.Option
	engineOpts    []conversation.Option
}

// WithAIConfig sets the configuration used to build the OpenAI-compatible
// provider. Ignored when WithAIProvider is set.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = cfg
	}
}

// WithAIProvider supplies a ready provider. The App closes it on Close.
func WithAIProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithLogger sets the base logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPolicy sets the session usage policy.
func WithPolicy(p session.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithBackgroundIngestion makes registration return right after the item
// is recorded, with ingestion running on the worker pool.
func WithBackgroundIngestion(enabled bool) Option {
	return func(o *options) {
		o.background = enabled
	}
}

// WithStrictLoad makes startup fail on undecodable persisted session state
// instead of skipping it.
func WithStrictLoad(strict bool) Option {
	return func(o *options) {
		o.strictLoad = strict
	}
}

// WithIngestionOptions passes options through to the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) Option {
	return func(o *options) {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
	}
}

// WithEngineOptions passes options through to the conversation engine.
func WithEngineOptions(opts ...conversation.Option) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// New opens or creates an App rooted at dataDir and restores persisted
// session state.
func New(ctx context.Context, dataDir string, opts ...Option) (*App, error) {
	if dataDir == "" {
		return nil, ErrDataDirRequired
	}
	o := &options{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
		policy:   session.DefaultPolicy(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	backend, err := badger.OpenBackend(filepath.Join(dataDir, "db"), false)
	if err != nil {
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		provider, err = openai.NewProvider(o.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	a := &App{
		backend:    backend,
		provider:   provider,
		background: o.background,
		logger:     o.logger.With("component", "app"),
	}
	if err := a.wire(ctx, dataDir, o); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, dataDir string, o *options) error {
	component := func(name string) *slog.Logger { return o.logger.With("component", name) }
	var err error

	a.indexes, err = vectorindex.NewStore(filepath.Join(dataDir, "vectorstores"),
		vectorindex.WithLogger(component("vectorindex")))
	if err != nil {
		return err
	}

	a.registry, err = registry.New(badger.NewContentRepository(a.backend), a.indexes, dataDir,
		registry.WithLogger(component("registry")),
		registry.WithClock(o.clock))
	if err != nil {
		return err
	}

	a.sessions, err = session.NewStore(
		session.WithPolicy(o.policy),
		session.WithClock(o.clock),
		session.WithLogger(component("session")))
	if err != nil {
		return err
	}

	a.gateway, err = persistence.NewGateway(badger.NewSessionRepository(a.backend),
		persistence.WithLogger(component("persistence")),
		persistence.WithStrictLoad(o.strictLoad))
	if err != nil {
		return err
	}

	pipelineOpts := append([]ingestion.Option{
		ingestion.WithLogger(component("ingestion")),
		ingestion.WithClock(o.clock),
	}, o.ingestionOpts...)
	a.pipeline, err = ingestion.NewPipeline(a.registry, a.indexes, a.provider, pipelineOpts...)
	if err != nil {
		return err
	}

	engineOpts := append([]conversation.Option{
		conversation.WithLogger(component("conversation")),
		conversation.WithPersist(a.flush),
	}, o.engineOpts...)
	a.engine, err = conversation.NewEngine(a.registry, a.indexes, a.sessions, a.provider, engineOpts...)
	if err != nil {
		return err
	}

	a.registry.OnRemove(func(ctx context.Context, item *core.ContentItem) {
		a.sessions.Remove(item.ID)
		a.engine.Evict(item.ID)
	})

	records, transcripts, err := a.gateway.Load(ctx)
	if err != nil {
		return err
	}
	a.sessions.Restore(records)
	a.engine.RestoreTranscripts(transcripts)

	return a.resumePending(ctx)
}

// resumePending requeues items left pending by an interrupted run.
func (a *App) resumePending(ctx context.Context) error {
	items, err := a.registry.List(ctx, "")
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Status != core.StatusPending {
			continue
		}
		a.logger.Info("resuming interrupted ingestion", "id", item.ID, "name", item.Name)
		if err := a.pipeline.Submit(item.ID); err != nil {
			a.logger.Error("failed to resume ingestion", "id", item.ID, "err", err)
		}
	}
	return nil
}

// Close waits for background ingestion, flushes session state and releases
// every resource.
func (a *App) Close() error {
	a.pipeline.Wait()
	flushErr := a.flush(context.Background())
	if flushErr != nil {
		a.logger.Error("final flush failed", "err", flushErr)
	}
	if err := a.closeResources(); err != nil {
		return err
	}
	return flushErr
}

func (a *App) closeResources() error {
	if a.pipeline != nil {
		a.pipeline.Release()
	}
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (a *App) flush(ctx context.Context) error {
	return a.gateway.Flush(ctx, a.sessions, a.engine)
}

// flushLogged flushes after a mutation whose in-memory effect already
// happened; a failure is logged and the next flush retries the full state.
func (a *App) flushLogged(ctx context.Context, op string) {
	if err := a.flush(ctx); err != nil {
		a.logger.Error("failed to persist session state", "op", op, "err", err)
	}
}

// RegisterFile stores an uploaded file, creates its session record and
// ingests it. Ingestion failures are recorded on the returned item rather
// than returned.
func (a *App) RegisterFile(ctx context.Context, name string, src io.Reader, owner string) (*core.ContentItem, error) {
	item, err := a.registry.RegisterFile(ctx, name, src, owner)
	if err != nil {
		return nil, err
	}
	return a.admit(ctx, item)
}

// RegisterURL records a URL, creates its session record and ingests it.
func (a *App) RegisterURL(ctx context.Context, rawURL, owner string) (*core.ContentItem, error) {
	item, err := a.registry.RegisterURL(ctx, rawURL, owner)
	if err != nil {
		return nil, err
	}
	return a.admit(ctx, item)
}

func (a *App) admit(ctx context.Context, item *core.ContentItem) (*core.ContentItem, error) {
	a.sessions.CreateOrGet(item.ID, item.Owner)
	defer a.flushLogged(ctx, "register")

	if a.background {
		if err := a.pipeline.Submit(item.ID); err != nil {
			a.logger.Error("failed to queue ingestion", "id", item.ID, "err", err)
		}
		return item, nil
	}

	if err := a.pipeline.Ingest(ctx, item.ID); err != nil {
		a.logger.Warn("content registered but not ingested", "id", item.ID, "err", err)
	}
	return a.registry.GetContent(ctx, item.ID)
}

// ListContent returns registered items newest first, filtered by owner
// when one is given.
func (a *App) ListContent(ctx context.Context, owner string) ([]*core.ContentItem, error) {
	return a.registry.List(ctx, owner)
}

// Content returns one item after applying the ownership policy.
func (a *App) Content(ctx context.Context, id, owner string) (*core.ContentItem, error) {
	return a.registry.Authorize(ctx, id, owner)
}

// DeleteContent removes an item together with its index, retained source,
// session record and conversation.
func (a *App) DeleteContent(ctx context.Context, id, owner string) error {
	if err := a.registry.Remove(ctx, id, owner); err != nil {
		return err
	}
	a.flushLogged(ctx, "delete")
	if err := a.backend.CollectGarbage(); err != nil {
		a.logger.Warn("value log garbage collection failed", "err", err)
	}
	return nil
}

// CreateSession makes the conversation for id ready to chat.
func (a *App) CreateSession(ctx context.Context, id, owner string) error {
	if _, err := a.registry.Authorize(ctx, id, owner); err != nil {
		return err
	}
	rec, err := a.sessions.Get(id)
	if err != nil {
		return err
	}
	if err := core.CheckOwnership(rec.Owner, owner); err != nil {
		return err
	}
	if err := a.engine.EnsureLoaded(ctx, id); err != nil {
		return err
	}
	a.flushLogged(ctx, "create_session")
	return nil
}

// Chat executes one chat turn.
func (a *App) Chat(ctx context.Context, req conversation.Request) (*core.TurnResult, error) {
	return a.engine.Turn(ctx, req)
}

// Reprocess re-runs ingestion from the retained raw source. The
// conversation keeps its memory and reopens the rebuilt index on its next
// turn.
func (a *App) Reprocess(ctx context.Context, id, owner string) (*core.ContentItem, error) {
	item, err := a.registry.Authorize(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	a.sessions.CreateOrGet(item.ID, item.Owner)

	ingestErr := a.pipeline.Ingest(ctx, id)
	if !errors.Is(ingestErr, ingestion.ErrInProgress) {
		a.engine.Invalidate(id)
	}
	a.flushLogged(ctx, "reprocess")
	if ingestErr != nil {
		return nil, fmt.Errorf("reprocess %s: %w", id, ingestErr)
	}
	return a.registry.GetContent(ctx, id)
}

// ReindexResult summarizes a ReprocessAll run.
type ReindexResult struct {
	Total  int
	Ready  int
	Failed []string
}

// ReprocessAll re-runs ingestion for every item visible to owner, as needed
// after switching embedding models. Items that fail to ingest are recorded
// and the run continues; each, when set, is called after every item.
func (a *App) ReprocessAll(ctx context.Context, owner string, each func(item *core.ContentItem, err error)) (*ReindexResult, error) {
	items, err := a.registry.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	res := &ReindexResult{Total: len(items)}
	a.logger.Info("reindexing content", "items", len(items), "owner", owner)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		updated, err := a.Reprocess(ctx, item.ID, owner)
		switch {
		case err == nil:
			res.Ready++
			item = updated
		case errors.Is(err, core.ErrIngestionFailed),
			errors.Is(err, ingestion.ErrInProgress),
			errors.Is(err, core.ErrNotFound):
			res.Failed = append(res.Failed, item.ID)
		default:
			return res, err
		}
		if each != nil {
			each(item, err)
		}
	}
	a.logger.Info("reindex complete", "items", res.Total, "ready", res.Ready, "failed", len(res.Failed))
	return res, nil
}

// Wait blocks until background ingestion has drained.
func (a *App) Wait() {
	a.pipeline.Wait()
}

// Policy returns the session usage policy in effect.
func (a *App) Policy() session.Policy {
	return a.sessions.Policy()
}

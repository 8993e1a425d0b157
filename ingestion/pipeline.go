package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/codefulcrum/senseai/ai"
	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/extract"
	"github.com/codefulcrum/senseai/vectorindex"
	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// ContentStore is the view of the registry the pipeline needs.
type ContentStore interface {
	GetContent(ctx context.Context, id string) (*core.ContentItem, error)
	UpdateContent(ctx context.Context, item *core.ContentItem) error
}

// IndexStore builds and discards vector indexes on disk.
type IndexStore interface {
	PathFor(item *core.ContentItem) string
	Build(ctx context.Context, path string, chunks []vectorindex.Chunk) error
	Remove(path string) error
}

// Extractor reads sections from a local file given its extension.
type Extractor interface {
	Extract(ctx context.Context, path, ext string) ([]schema.Document, error)
}

// Pipeline ingests content items: extract, split, embed, index.
type Pipeline struct {
	contents   ContentStore
	indexes    IndexStore
	extractors Extractor
	fetcher    extract.Fetcher
	splitter   textsplitter.TextSplitter
	embedder   *batchEmbedder
	pool       *ants.Pool
	progress   ProgressFunc
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for background ingestion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithRetry sets how embedding calls are retried.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.embedder.retry.MaxAttempts = maxAttempts
		p.embedder.retry.BaseDelay = baseDelay
		return nil
	}
}

// WithCallTimeout bounds each embedding call and each URL fetch.
// Zero disables the bound. Default is 2 minutes.
func WithCallTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		p.embedder.callTimeout = timeout
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per provider call.
// Default is 32.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.embedder.batchSize = size
		return nil
	}
}

// WithExtractor replaces the file format adapters.
func WithExtractor(e Extractor) Option {
	return func(p *Pipeline) error {
		p.extractors = e
		return nil
	}
}

// WithFetcher replaces the URL fetcher.
func WithFetcher(f extract.Fetcher) Option {
	return func(p *Pipeline) error {
		p.fetcher = f
		return nil
	}
}

// WithProgress registers a callback for embedding progress.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) error {
		p.progress = fn
		return nil
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

const (
	defaultBatchSize   = 32
	defaultCallTimeout = 2 * time.Minute
)

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(contents ContentStore, indexes IndexStore, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if contents == nil {
		return nil, ErrContentStoreRequired
	}
	if indexes == nil {
		return nil, ErrIndexStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		contents:   contents,
		indexes:    indexes,
		extractors: extract.NewRegistry(),
		fetcher:    extract.NewHTTPFetcher(),
		splitter:   newSplitter(),
		embedder: &batchEmbedder{
			embedder:    provider.Embedder(),
			batchSize:   defaultBatchSize,
			retry:       DefaultRetryPolicy(),
			callTimeout: defaultCallTimeout,
		},
		pool:     pool,
		now:      time.Now,
		logger:   slog.Default().With("component", "ingestion"),
		inflight: make(map[string]struct{}),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.embedder.logger = p.logger

	return p, nil
}

// Ingest runs ingestion for id inline. The item ends in StatusReady or
// StatusFailed; on failure the returned error wraps core.ErrIngestionFailed.
// Re-running for the same id replaces the previous index.
func (p *Pipeline) Ingest(ctx context.Context, id string) error {
	if !p.acquire(id) {
		return fmt.Errorf("%w: %s", ErrInProgress, id)
	}
	defer p.release(id)

	item, err := p.contents.GetContent(ctx, id)
	if err != nil {
		return err
	}

	start := p.now()
	p.logger.Info("ingesting content", "id", id, "origin", item.Origin, "type", item.Type)

	size, title, err := p.run(ctx, item)
	if err != nil {
		p.logger.Error("ingestion failed", "id", id, "err", err)
		item.Status = core.StatusFailed
		item.LastError = err.Error()
		item.UpdatedAt = p.now().UTC()
		if updErr := p.contents.UpdateContent(ctx, item); updErr != nil {
			p.logger.Error("failed to record ingestion failure", "id", id, "err", updErr)
		}
		return fmt.Errorf("%w: %w", core.ErrIngestionFailed, err)
	}

	item.Size = size
	if item.IsURL() && title != "" {
		item.Name = title
	}
	item.Status = core.StatusReady
	item.LastError = ""
	item.UpdatedAt = p.now().UTC()
	if err := p.contents.UpdateContent(ctx, item); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Removed while ingesting; the index built above has no owner
			p.logger.Info("content removed during ingestion, discarding index", "id", id)
			if rmErr := p.indexes.Remove(p.indexes.PathFor(item)); rmErr != nil {
				p.logger.Error("failed to discard index", "id", id, "err", rmErr)
			}
		}
		return err
	}

	p.logger.Info("content ready", "id", id, "size", size, "elapsed", p.now().Sub(start))
	return nil
}

// Submit queues ingestion for id on the worker pool and returns immediately.
// Failures are recorded on the item and logged.
func (p *Pipeline) Submit(id string) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		if err := p.Ingest(context.Background(), id); err != nil {
			p.logger.Error("background ingestion failed", "id", id, "err", err)
		}
	})
	if err != nil {
		p.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until every submitted ingestion has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release waits for queued work and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.wg.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}

// run does the work of one ingestion and returns the content size and the
// recovered page title, if any. Files measure the characters of all chunks,
// overlap included; URLs measure the fetched text.
func (p *Pipeline) run(ctx context.Context, item *core.ContentItem) (int64, string, error) {
	sections, err := p.sections(ctx, item)
	if err != nil {
		return 0, "", err
	}
	title := pageTitle(sections)

	chunks, err := splitSections(p.splitter, sections)
	if err != nil {
		return 0, "", err
	}
	if len(chunks) == 0 {
		return 0, "", ErrNoText
	}

	texts := make([]string, len(chunks))
	var size int64
	for i, c := range chunks {
		texts[i] = c.text
		size += int64(utf8.RuneCountInString(c.text))
	}
	if item.IsURL() {
		size = 0
		for _, sec := range sections {
			size += int64(utf8.RuneCountInString(sec.PageContent))
		}
	}

	var report func(int)
	if p.progress != nil {
		report = func(done int) { p.progress(item.ID, done, len(texts)) }
	}
	vectors, err := p.embedder.embed(ctx, texts, report)
	if err != nil {
		return 0, "", err
	}

	indexed := make([]vectorindex.Chunk, len(chunks))
	for i, c := range chunks {
		c.metadata["content_id"] = item.ID
		c.metadata["chunk"] = strconv.Itoa(i)
		if _, ok := c.metadata["source"]; !ok {
			c.metadata["source"] = item.Name
		}
		indexed[i] = vectorindex.Chunk{Text: c.text, Metadata: c.metadata, Vector: vectors[i]}
	}

	if err := p.indexes.Build(ctx, p.indexes.PathFor(item), indexed); err != nil {
		return 0, "", err
	}
	return size, title, nil
}

// sections extracts text from the item's retained raw source.
func (p *Pipeline) sections(ctx context.Context, item *core.ContentItem) ([]schema.Document, error) {
	if item.IsURL() {
		fetchCtx, cancel := p.embedder.callContext(ctx)
		defer cancel()
		return p.fetcher.Fetch(fetchCtx, item.SourceURL)
	}

	if item.SourcePath == "" {
		return nil, errors.New("content has no retained source file")
	}
	return p.extractors.Extract(ctx, item.SourcePath, item.Extension())
}

func pageTitle(sections []schema.Document) string {
	for _, s := range sections {
		if title, ok := s.Metadata["title"].(string); ok && title != "" {
			return title
		}
	}
	return ""
}

func (p *Pipeline) acquire(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[id]; busy {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *Pipeline) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, id)
}

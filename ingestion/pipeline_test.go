package ingestion

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codefulcrum/senseai/ai/mock"
	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
)

// memoryContents implements ContentStore over a map.
type memoryContents struct {
	mu    sync.Mutex
	items map[string]core.ContentItem
}

func newMemoryContents(items ...*core.ContentItem) *memoryContents {
	m := &memoryContents{items: make(map[string]core.ContentItem)}
	for _, item := range items {
		m.items[item.ID] = *item
	}
	return m
}

func (m *memoryContents) GetContent(ctx context.Context, id string) (*core.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &item, nil
}

func (m *memoryContents) UpdateContent(ctx context.Context, item *core.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return core.ErrNotFound
	}
	m.items[item.ID] = *item
	return nil
}

func (m *memoryContents) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
}

// stubFetcher returns fixed sections for any URL.
type stubFetcher struct {
	docs []schema.Document
	err  error
	urls []string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]schema.Document, error) {
	s.urls = append(s.urls, url)
	return s.docs, s.err
}

type fixture struct {
	contents *memoryContents
	indexes  *vectorindex.Store
	provider *mock.MockProvider
	pipeline *Pipeline
}

func newFixture(t *testing.T, items []*core.ContentItem, opts ...Option) *fixture {
	t.Helper()
	indexes, err := vectorindex.NewStore(filepath.Join(t.TempDir(), "vectorstores"))
	require.NoError(t, err)

	provider := mock.NewMockProvider().(*mock.MockProvider)
	contents := newMemoryContents(items...)

	opts = append([]Option{WithRetry(2, time.Millisecond)}, opts...)
	pipeline, err := NewPipeline(contents, indexes, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return &fixture{contents: contents, indexes: indexes, provider: provider, pipeline: pipeline}
}

func fileItem(t *testing.T, id, name, content string) *core.ContentItem {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return &core.ContentItem{
		ID:         id,
		Name:       name,
		Type:       core.FileTypeTag(filepath.Ext(name)),
		Origin:     core.OriginFile,
		SourcePath: path,
		Size:       int64(len(content)),
		Owner:      "dev1",
		Status:     core.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	indexes, err := vectorindex.NewStore(t.TempDir())
	require.NoError(t, err)
	provider := mock.NewMockProvider()
	contents := newMemoryContents()

	_, err = NewPipeline(nil, indexes, provider)
	assert.ErrorIs(t, err, ErrContentStoreRequired)
	_, err = NewPipeline(contents, nil, provider)
	assert.ErrorIs(t, err, ErrIndexStoreRequired)
	_, err = NewPipeline(contents, indexes, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
	_, err = NewPipeline(contents, indexes, provider, WithRetry(0, time.Second))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestPipeline_IngestFile(t *testing.T) {
	text := strings.Repeat("Revenue grew ten percent in 2024. ", 80)
	item := fileItem(t, "doc1", "report.txt", text)
	f := newFixture(t, []*core.ContentItem{item})
	ctx := context.Background()

	require.NoError(t, f.pipeline.Ingest(ctx, "doc1"))

	got, err := f.contents.GetContent(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, got.Status)
	assert.Empty(t, got.LastError)
	assert.Equal(t, "report.txt", got.Name)
	assert.Greater(t, got.Size, int64(len(strings.TrimSpace(text))), "overlap counts twice")
	assert.False(t, got.UpdatedAt.IsZero())

	index, err := f.indexes.Load(ctx, f.indexes.PathFor(got))
	require.NoError(t, err)
	assert.Greater(t, index.Len(), 1)

	fragments, err := index.Search(ctx, mock.Vector("anything"), 1)
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, "doc1", fragments[0].Metadata["content_id"])
	assert.LessOrEqual(t, len([]rune(fragments[0].Content)), ChunkSize)
}

func TestPipeline_IngestURL(t *testing.T) {
	item := &core.ContentItem{
		ID:        "u1",
		Name:      "example.com/article",
		Type:      core.URLTypeTag,
		Origin:    core.OriginURL,
		SourceURL: "https://example.com/article",
		Status:    core.StatusPending,
	}
	fetcher := &stubFetcher{docs: []schema.Document{{
		PageContent: "The article body.",
		Metadata:    map[string]any{"title": "An Article", "source": "https://example.com/article"},
	}}}
	f := newFixture(t, []*core.ContentItem{item}, WithFetcher(fetcher))
	ctx := context.Background()

	require.NoError(t, f.pipeline.Ingest(ctx, "u1"))

	got, err := f.contents.GetContent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, got.Status)
	assert.Equal(t, "An Article", got.Name)
	assert.Equal(t, int64(len("The article body.")), got.Size)
	assert.Equal(t, []string{"https://example.com/article"}, fetcher.urls)
	assert.True(t, f.indexes.Exists(f.indexes.PathFor(got)))
	assert.Equal(t, "url_u1", filepath.Base(f.indexes.PathFor(got)))
}

func TestPipeline_IngestURL_SizeIsFetchedText(t *testing.T) {
	item := &core.ContentItem{ID: "u3", Name: "example.com", Type: core.URLTypeTag, Origin: core.OriginURL, SourceURL: "https://example.com"}
	body := strings.Repeat("long page text ", 200)
	fetcher := &stubFetcher{docs: []schema.Document{{PageContent: body}, {PageContent: "tail"}}}
	f := newFixture(t, []*core.ContentItem{item}, WithFetcher(fetcher))
	ctx := context.Background()

	require.NoError(t, f.pipeline.Ingest(ctx, "u3"))
	got, _ := f.contents.GetContent(ctx, "u3")
	assert.Equal(t, int64(len(body)+len("tail")), got.Size)

	index, err := f.indexes.Load(ctx, f.indexes.PathFor(got))
	require.NoError(t, err)
	assert.Greater(t, index.Len(), 2, "body spans overlapping chunks")
}

func TestPipeline_IngestURL_KeepsNameWithoutTitle(t *testing.T) {
	item := &core.ContentItem{ID: "u2", Name: "example.com", Type: core.URLTypeTag, Origin: core.OriginURL, SourceURL: "https://example.com"}
	fetcher := &stubFetcher{docs: []schema.Document{{PageContent: "body"}}}
	f := newFixture(t, []*core.ContentItem{item}, WithFetcher(fetcher))

	require.NoError(t, f.pipeline.Ingest(context.Background(), "u2"))
	got, _ := f.contents.GetContent(context.Background(), "u2")
	assert.Equal(t, "example.com", got.Name)
}

func TestPipeline_IngestFailures(t *testing.T) {
	tests := []struct {
		name    string
		item    func(t *testing.T) *core.ContentItem
		setup   func(f *fixture)
		opts    []Option
		wantErr error
	}{
		{
			name: "no text",
			item: func(t *testing.T) *core.ContentItem { return fileItem(t, "x", "blank.txt", "   \n\n  ") },
			wantErr: ErrNoText,
		},
		{
			name: "embedding provider down",
			item: func(t *testing.T) *core.ContentItem { return fileItem(t, "x", "a.txt", "some text") },
			setup: func(f *fixture) {
				f.provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
					return nil, errors.New("provider unavailable")
				}
			},
		},
		{
			name: "embedding count mismatch",
			item: func(t *testing.T) *core.ContentItem { return fileItem(t, "x", "a.txt", "some text") },
			setup: func(f *fixture) {
				f.provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
					return nil, nil
				}
			},
			wantErr: ErrEmbeddingMismatch,
		},
		{
			name: "fetch failure",
			item: func(t *testing.T) *core.ContentItem {
				return &core.ContentItem{ID: "x", Origin: core.OriginURL, Type: core.URLTypeTag, SourceURL: "https://down.example"}
			},
			opts: []Option{WithFetcher(&stubFetcher{err: errors.New("connection refused")})},
		},
		{
			name: "missing source file",
			item: func(t *testing.T) *core.ContentItem {
				item := fileItem(t, "x", "gone.txt", "text")
				require.NoError(t, os.Remove(item.SourcePath))
				return item
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, []*core.ContentItem{tt.item(t)}, tt.opts...)
			if tt.setup != nil {
				tt.setup(f)
			}
			ctx := context.Background()

			err := f.pipeline.Ingest(ctx, "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrIngestionFailed)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			got, getErr := f.contents.GetContent(ctx, "x")
			require.NoError(t, getErr, "item stays registered")
			assert.Equal(t, core.StatusFailed, got.Status)
			assert.NotEmpty(t, got.LastError)
			assert.False(t, f.indexes.Exists(f.indexes.PathFor(got)))
		})
	}
}

func TestPipeline_RetriesTransientEmbeddingErrors(t *testing.T) {
	item := fileItem(t, "doc", "a.txt", "short text")
	f := newFixture(t, []*core.ContentItem{item})

	embedder := f.provider.GetMockEmbedder()
	var calls int
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("rate limited")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text)
		}
		return out, nil
	}

	require.NoError(t, f.pipeline.Ingest(context.Background(), "doc"))
	assert.Equal(t, 2, calls)
}

func TestPipeline_ReingestOverwrites(t *testing.T) {
	item := fileItem(t, "doc", "a.txt", strings.Repeat("word ", 600))
	f := newFixture(t, []*core.ContentItem{item})
	ctx := context.Background()

	require.NoError(t, f.pipeline.Ingest(ctx, "doc"))
	first, _ := f.contents.GetContent(ctx, "doc")

	require.NoError(t, os.WriteFile(item.SourcePath, []byte("tiny"), 0644))
	require.NoError(t, f.pipeline.Ingest(ctx, "doc"))
	second, _ := f.contents.GetContent(ctx, "doc")

	assert.Equal(t, int64(4), second.Size)
	assert.NotEqual(t, first.Size, second.Size)

	index, err := f.indexes.Load(ctx, f.indexes.PathFor(second))
	require.NoError(t, err)
	assert.Equal(t, 1, index.Len())
}

func TestPipeline_FailedThenReady(t *testing.T) {
	item := fileItem(t, "doc", "a.txt", "content")
	f := newFixture(t, []*core.ContentItem{item})
	ctx := context.Background()

	embedder := f.provider.GetMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("down")
	}
	require.Error(t, f.pipeline.Ingest(ctx, "doc"))

	embedder.Reset()
	require.NoError(t, f.pipeline.Ingest(ctx, "doc"))
	got, _ := f.contents.GetContent(ctx, "doc")
	assert.Equal(t, core.StatusReady, got.Status)
	assert.Empty(t, got.LastError)
}

func TestPipeline_IngestUnknownID(t *testing.T) {
	f := newFixture(t, nil)
	err := f.pipeline.Ingest(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPipeline_Submit(t *testing.T) {
	items := []*core.ContentItem{
		fileItem(t, "a", "a.txt", "alpha text"),
		fileItem(t, "b", "b.csv", "name,city\nAda,London\n"),
	}
	f := newFixture(t, items, WithPoolSize(2))

	require.NoError(t, f.pipeline.Submit("a"))
	require.NoError(t, f.pipeline.Submit("b"))
	f.pipeline.Wait()

	for _, id := range []string{"a", "b"} {
		got, err := f.contents.GetContent(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusReady, got.Status, id)
	}
}

func TestPipeline_RemovedDuringIngestion(t *testing.T) {
	item := fileItem(t, "doc", "a.txt", "some text to embed")
	f := newFixture(t, []*core.ContentItem{item})

	started := make(chan struct{})
	unblock := make(chan struct{})
	f.provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		close(started)
		<-unblock
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text)
		}
		return out, nil
	}

	require.NoError(t, f.pipeline.Submit("doc"))
	<-started
	f.contents.remove("doc")
	require.NoError(t, f.indexes.Remove(f.indexes.PathFor(item)))
	close(unblock)
	f.pipeline.Wait()

	assert.False(t, f.indexes.Exists(f.indexes.PathFor(item)), "no index outlives its item")
	_, err := f.contents.GetContent(context.Background(), "doc")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPipeline_InProgress(t *testing.T) {
	item := fileItem(t, "doc", "a.txt", "text")
	f := newFixture(t, []*core.ContentItem{item})

	require.True(t, f.pipeline.acquire("doc"))
	err := f.pipeline.Ingest(context.Background(), "doc")
	assert.ErrorIs(t, err, ErrInProgress)
	f.pipeline.release("doc")

	assert.NoError(t, f.pipeline.Ingest(context.Background(), "doc"))
}

func TestPipeline_Progress(t *testing.T) {
	item := fileItem(t, "doc", "a.txt", strings.Repeat("sentence number one. ", 300))
	var buf bytes.Buffer
	f := newFixture(t, []*core.ContentItem{item}, WithBatchSize(2), WithProgress(NewProgressTracker(&buf).Report))

	require.NoError(t, f.pipeline.Ingest(context.Background(), "doc"))
	out := buf.String()
	assert.Contains(t, out, "Embedding doc:")
	assert.Contains(t, out, "(100.0%)")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

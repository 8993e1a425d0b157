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


package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/extract"
	"github.com/codefulcrum/senseai/storage"
	"github.com/google/uuid"
)

const urlFileName = "url.txt"

// IndexStore is the part of the vector index store the registry needs to
// clean up after removed items.
type IndexStore interface {
	PathFor(item *core.ContentItem) string
	Remove(path string) error
}

// FormatChecker reports whether a file extension can be ingested.
type FormatChecker interface {
	Supports(ext string) bool
}

// RemoveHook is called after an item has been removed.
type RemoveHook func(ctx context.Context, item *core.ContentItem)

// Registry is the knowledge base registry.
type Registry struct {
	repo       storage.ContentRepository
	indexes    IndexStore
	formats    FormatChecker
	uploadsDir string
	urlsDir    string
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger

	mu    sync.Mutex // serializes mutations
	hooks []RemoveHook
}

// Option configures a Registry.
type Option func(*Registry) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithClock overrides the time source for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// WithIDGenerator overrides how item ids are generated.
// Default is a random UUID.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) error {
		if fn != nil {
			r.newID = fn
		}
		return nil
	}
}

// WithFormatChecker overrides which file extensions are accepted.
func WithFormatChecker(fc FormatChecker) Option {
	return func(r *Registry) error {
		if fc != nil {
			r.formats = fc
		}
		return nil
	}
}

// New creates a registry that keeps raw sources under dataDir.
func New(repo storage.ContentRepository, indexes IndexStore, dataDir string, opts ...Option) (*Registry, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if indexes == nil {
		return nil, ErrIndexStoreRequired
	}

	r := &Registry{
		repo:       repo,
		indexes:    indexes,
		formats:    extract.NewRegistry(),
		uploadsDir: filepath.Join(dataDir, "uploads"),
		urlsDir:    filepath.Join(dataDir, "urls"),
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     slog.Default().With("component", "registry"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	for _, dir := range []string{r.uploadsDir, r.urlsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// OnRemove registers a hook run after every successful removal.
func (r *Registry) OnRemove(hook RemoveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// RegisterFile stores an uploaded file and registers it as pending content.
// Files whose extension no adapter handles are rejected with
// core.ErrUnsupportedFormat before anything is written.
func (r *Registry) RegisterFile(ctx context.Context, name string, src io.Reader, owner string) (*core.ContentItem, error) {
	base := cleanFileName(name)
	if base == "" {
		return nil, ErrEmptyFileName
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	if !r.formats.Supports(ext) {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ext)
	}

	id := r.newID()
	dir := filepath.Join(r.uploadsDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, base)
	size, err := writeFile(path, src)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	item := &core.ContentItem{
		ID:         id,
		Name:       base,
		Type:       core.FileTypeTag(ext),
		Origin:     core.OriginFile,
		SourcePath: path,
		Size:       size,
		Owner:      owner,
		Status:     core.StatusPending,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.put(ctx, item); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	r.logger.Info("registered file", "id", id, "name", base, "size", size, "owner", owner)
	return item, nil
}

// RegisterURL records a URL as pending content.
func (r *Registry) RegisterURL(ctx context.Context, rawURL, owner string) (*core.ContentItem, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	normalized := u.String()

	id := r.newID()
	dir := filepath.Join(r.urlsDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, urlFileName), []byte(normalized), 0644); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	item := &core.ContentItem{
		ID:        id,
		Name:      urlDisplayName(u),
		Type:      core.URLTypeTag,
		Origin:    core.OriginURL,
		SourceURL: normalized,
		Size:      int64(len(normalized)),
		Owner:     owner,
		Status:    core.StatusPending,
		CreatedAt: r.now().UTC(),
	}
	if err := r.put(ctx, item); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	r.logger.Info("registered url", "id", id, "url", normalized, "owner", owner)
	return item, nil
}

func (r *Registry) put(ctx context.Context, item *core.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repo.PutContent(ctx, item)
}

// GetContent returns the item with the given id or core.ErrNotFound.
func (r *Registry) GetContent(ctx context.Context, id string) (*core.ContentItem, error) {
	item, err := r.repo.GetContent(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return item, err
}

// Authorize returns the item after applying the ownership policy for owner.
func (r *Registry) Authorize(ctx context.Context, id, owner string) (*core.ContentItem, error) {
	item, err := r.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := core.CheckOwnership(item.Owner, owner); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateContent replaces the metadata of an existing item. It fails with
// core.ErrNotFound if the item was removed in the meantime.
func (r *Registry) UpdateContent(ctx context.Context, item *core.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.repo.GetContent(ctx, item.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", core.ErrNotFound, item.ID)
		}
		return err
	}
	return r.repo.PutContent(ctx, item)
}

// List returns items newest first. With an empty owner every item is
// returned; otherwise only items tagged with exactly that owner.
func (r *Registry) List(ctx context.Context, owner string) ([]*core.ContentItem, error) {
	all, err := r.repo.ListContent(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*core.ContentItem, 0, len(all))
	for _, item := range all {
		if owner == "" || item.Owner == owner {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Remove deletes an item, its vector index and its retained source, then
// runs the removal hooks. Unknown ids fail with core.ErrNotFound after any
// leftover files for that id are swept.
func (r *Registry) Remove(ctx context.Context, id, owner string) error {
	r.mu.Lock()
	item, err := r.repo.GetContent(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		r.mu.Unlock()
		r.sweep(id)
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if err := core.CheckOwnership(item.Owner, owner); err != nil {
		r.mu.Unlock()
		return err
	}
	if err := r.repo.DeleteContent(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.mu.Unlock()
		return err
	}
	hooks := append([]RemoveHook(nil), r.hooks...)
	r.mu.Unlock()

	if err := r.indexes.Remove(r.indexes.PathFor(item)); err != nil {
		r.logger.Warn("failed to remove vector index", "id", id, "err", err)
	}
	r.sweep(id)

	for _, hook := range hooks {
		hook(ctx, item)
	}
	r.logger.Info("removed content", "id", id, "name", item.Name)
	return nil
}

// sweep deletes retained sources and indexes for id in both namespaces.
func (r *Registry) sweep(id string) {
	if !safeID(id) {
		return
	}
	for _, dir := range []string{filepath.Join(r.uploadsDir, id), filepath.Join(r.urlsDir, id)} {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("failed to remove retained source", "path", dir, "err", err)
		}
	}
	for _, origin := range []core.Origin{core.OriginFile, core.OriginURL} {
		path := r.indexes.PathFor(&core.ContentItem{ID: id, Origin: origin})
		if err := r.indexes.Remove(path); err != nil {
			r.logger.Warn("failed to remove vector index", "path", path, "err", err)
		}
	}
}

func writeFile(path string, src io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

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


package vectorindex

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/codefulcrum/senseai/core"
	"github.com/go-crypt/x/blake2b"
	"github.com/philippgille/chromem-go"
)

const (
	collectionName = "chunks"
	urlPrefix      = "url_"
)

// Chunk is an embedded piece of text ready to be indexed.
type Chunk struct {
	Text     string
	Metadata map[string]string
	Vector   []float32
}

// Store manages on-disk vector indexes, one directory per content item.
type Store struct {
	root   string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

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

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		root:   dir,
		logger: slog.Default().With("component", "vectorindex"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// PathFor returns the index directory of a content item. URL items live
// under a distinguishing prefix.
func (s *Store) PathFor(item *core.ContentItem) string {
	name := item.ID
	if item.IsURL() {
		name = urlPrefix + item.ID
	}
	return filepath.Join(s.root, name)
}

// Exists reports whether an index directory is present at path.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Build embeds nothing itself: it writes the pre-embedded chunks into a new
// index at path, replacing any index already there. The index is assembled
// in a sibling directory and renamed into place once complete.
func (s *Store) Build(ctx context.Context, path string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return ErrNoChunks
	}
	dim := len(chunks[0].Vector)
	for i, chunk := range chunks {
		if len(chunk.Vector) == 0 || len(chunk.Vector) != dim {
			return fmt.Errorf("%w: chunk %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(chunk.Vector), dim)
		}
	}

	staging := path + ".building-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	if err := os.RemoveAll(staging); err != nil {
		return err
	}

	if err := s.write(ctx, staging, chunks); err != nil {
		os.RemoveAll(staging)
		return err
	}

	if err := os.RemoveAll(path); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(staging, path); err != nil {
		os.RemoveAll(staging)
		return err
	}

	s.logger.Debug("built vector index", "path", path, "chunks", len(chunks), "dimensions", dim)
	return nil
}

func (s *Store) write(ctx context.Context, dir string, chunks []Chunk) error {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return err
	}
	col, err := db.CreateCollection(collectionName, nil, queryByVectorOnly)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        ChunkID(i, chunk.Text),
			Content:   chunk.Text,
			Metadata:  chunk.Metadata,
			Embedding: chunk.Vector,
		}
	}
	return col.AddDocuments(ctx, docs, runtime.NumCPU())
}

// Load opens the index at path.
func (s *Store) Load(ctx context.Context, path string) (*Index, error) {
	if !s.Exists(path) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexCorrupt, err)
	}
	col := db.GetCollection(collectionName, queryByVectorOnly)
	if col == nil {
		return nil, fmt.Errorf("%w: %s has no %q collection", ErrIndexCorrupt, path, collectionName)
	}
	if col.Count() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrIndexCorrupt, path)
	}

	return &Index{collection: col}, nil
}

// Remove deletes the index at path. A missing index is not an error.
func (s *Store) Remove(path string) error {
	err := os.RemoveAll(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ChunkID derives a stable document id from a chunk's position and text.
func ChunkID(position int, text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(strconv.Itoa(position)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func queryByVectorOnly(ctx context.Context, text string) ([]float32, error) {
	return nil, errQueryByText
}

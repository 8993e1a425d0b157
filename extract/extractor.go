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


package extract

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/codefulcrum/senseai/core"
	"github.com/tmc/langchaingo/schema"
)

// Extractor reads a local file into ordered text sections.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]schema.Document, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, path string) ([]schema.Document, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, path string) ([]schema.Document, error) {
	return f(ctx, path)
}

// Fetcher retrieves a URL into ordered text sections.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]schema.Document, error)
}

// Registry maps lowercase file extensions to extractors.
// Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

// NewRegistry creates a Registry with the built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register("pdf", ExtractorFunc(loadPDF))
	r.Register("txt", ExtractorFunc(loadText))
	r.Register("csv", ExtractorFunc(loadCSV))
	r.Register("doc", ExtractorFunc(loadDocx))
	r.Register("docx", ExtractorFunc(loadDocx))
	r.Register("xls", ExtractorFunc(loadXlsx))
	r.Register("xlsx", ExtractorFunc(loadXlsx))
	return r
}

// Register adds or replaces the extractor for ext.
func (r *Registry) Register(ext string, extractor Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[normalizeExt(ext)] = extractor
}

// Supports reports whether ext has an extractor.
func (r *Registry) Supports(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[normalizeExt(ext)]
	return ok
}

// Extensions returns the supported extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Extract reads path with the extractor registered for ext.
// Returns core.ErrUnsupportedFormat when there is none.
func (r *Registry) Extract(ctx context.Context, path, ext string) ([]schema.Document, error) {
	r.mu.RLock()
	extractor, ok := r.extractors[normalizeExt(ext)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ext)
	}
	return extractor.Extract(ctx, path)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

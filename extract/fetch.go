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
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20
	userAgent           = "senseai/1.0"
)

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	multiSpaces   = regexp.MustCompile(`[ \t\r\f\v]+`)
	spacedLines   = regexp.MustCompile(` *\n *`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeout sets the per-request timeout. Default: 30s
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client.Timeout = timeout
	}
}

// WithMaxBodyBytes caps how much of a response is read. Default: 10 MiB
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewHTTPFetcher creates a fetcher with default settings.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   &http.Client{Timeout: defaultFetchTimeout},
		maxBytes: defaultMaxBodyBytes,
		logger:   slog.Default().With("component", "url-fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url and returns its readable text as one section.
// The page title, when present, is reported in the "title" metadata key.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]schema.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetchFailed, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	contentType = strings.ToLower(contentType)

	var docs []schema.Document
	title := ""
	switch {
	case strings.Contains(contentType, "html"):
		title = pageTitle(body)
		docs, err = documentloaders.NewHTML(bytes.NewReader(body)).Load(ctx)
	case strings.HasPrefix(contentType, "text/"):
		docs, err = documentloaders.NewText(bytes.NewReader(body)).Load(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	for i := range docs {
		docs[i].PageContent = tidyText(docs[i].PageContent)
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any)
		}
		docs[i].Metadata["source"] = url
		if title != "" {
			docs[i].Metadata["title"] = title
		}
	}

	f.logger.Debug("fetched url", "url", url, "bytes", len(body), "title", title)
	return docs, nil
}

// pageTitle extracts the <title> text, unescaped and whitespace-collapsed.
func pageTitle(body []byte) string {
	matches := titleTag.FindSubmatch(body)
	if len(matches) < 2 {
		return ""
	}
	title := html.UnescapeString(string(matches[1]))
	return strings.Join(strings.Fields(title), " ")
}

// tidyText collapses the whitespace runs HTML text extraction leaves behind.
func tidyText(s string) string {
	s = multiSpaces.ReplaceAllString(s, " ")
	s = spacedLines.ReplaceAllString(s, "\n")
	s = multiNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

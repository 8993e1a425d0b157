package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>
  Rock &amp; Roll
  History</title></head><body><h1>Origins</h1><p>It started in the 1950s.</p></body></html>`))
	}))
	defer srv.Close()

	docs, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL+"/article")
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Contains(t, docs[0].PageContent, "It started in the 1950s.")
	assert.NotContains(t, docs[0].PageContent, "<p>")
	assert.Equal(t, "Rock & Roll History", docs[0].Metadata["title"])
	assert.Equal(t, srv.URL+"/article", docs[0].Metadata["source"])
}

func TestHTTPFetcher_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain   body\n\n\n\nnext"))
	}))
	defer srv.Close()

	docs, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "plain body\n\nnext", docs[0].PageContent)
	_, hasTitle := docs[0].Metadata["title"]
	assert.False(t, hasTitle)
}

func TestHTTPFetcher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		opts    []FetcherOption
		wantErr error
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			wantErr: ErrFetchFailed,
		},
		{
			name: "binary content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				w.Write([]byte{0x89, 'P', 'N', 'G'})
			},
			wantErr: ErrUnsupportedContent,
		},
		{
			name: "too large",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.Write([]byte(strings.Repeat("x", 64)))
			},
			opts:    []FetcherOption{WithMaxBodyBytes(16)},
			wantErr: ErrBodyTooLarge,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
			opts:    []FetcherOption{WithTimeout(20 * time.Millisecond)},
			wantErr: ErrFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPFetcher(tt.opts...).Fetch(context.Background(), srv.URL)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPFetcher_BadURL(t *testing.T) {
	_, err := NewHTTPFetcher().Fetch(context.Background(), "://nope")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "", pageTitle([]byte("<html><body>x</body></html>")))
	assert.Equal(t, "A < B", pageTitle([]byte("<TITLE lang=en>A &lt; B</TITLE>")))
}

func TestTidyText(t *testing.T) {
	assert.Equal(t, "a b\nc\n\nd", tidyText("  a \t b \n c\n\n\n\n d  "))
}

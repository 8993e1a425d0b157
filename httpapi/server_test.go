package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/codefulcrum/senseai/conversation"
	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/ingestion"
	"github.com/codefulcrum/senseai/registry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeService records calls and returns canned results.
type fakeService struct {
	item     *core.ContentItem
	items    []*core.ContentItem
	result   *core.TurnResult
	err      error
	uploaded string
	owner    string
	lastID   string
	lastReq  conversation.Request
}

func (f *fakeService) RegisterFile(ctx context.Context, name string, src io.Reader, owner string) (*core.ContentItem, error) {
	data, _ := io.ReadAll(src)
	f.uploaded = string(data)
	f.owner = owner
	if f.err != nil {
		return nil, f.err
	}
	item := *f.item
	item.Name = name
	return &item, nil
}

func (f *fakeService) RegisterURL(ctx context.Context, rawURL, owner string) (*core.ContentItem, error) {
	f.owner = owner
	if f.err != nil {
		return nil, f.err
	}
	item := *f.item
	item.SourceURL = rawURL
	return &item, nil
}

func (f *fakeService) ListContent(ctx context.Context, owner string) ([]*core.ContentItem, error) {
	f.owner = owner
	return f.items, f.err
}

func (f *fakeService) DeleteContent(ctx context.Context, id, owner string) error {
	f.lastID, f.owner = id, owner
	return f.err
}

func (f *fakeService) CreateSession(ctx context.Context, id, owner string) error {
	f.lastID, f.owner = id, owner
	return f.err
}

func (f *fakeService) Chat(ctx context.Context, req conversation.Request) (*core.TurnResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeService) Reprocess(ctx context.Context, id, owner string) (*core.ContentItem, error) {
	f.lastID, f.owner = id, owner
	if f.err != nil {
		return nil, f.err
	}
	return f.item, nil
}

var testCreated = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func fileItem() *core.ContentItem {
	return &core.ContentItem{
		ID:        "doc-1",
		Name:      "report.pdf",
		Type:      core.FileTypeTag("pdf"),
		Origin:    core.OriginFile,
		Size:      2048,
		Owner:     "dev1",
		Status:    core.StatusReady,
		CreatedAt: testCreated,
	}
}

func newTestServer(t *testing.T, svc *fakeService) http.Handler {
	t.Helper()
	s, err := NewServer(svc)
	require.NoError(t, err)
	return s.Handler()
}

func do(h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doJSON(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	return do(h, method, target, strings.NewReader(body), "application/json")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(nil)
	assert.ErrorIs(t, err, ErrServiceRequired)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeService{})
	rec := do(h, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")
}

func TestUpload(t *testing.T) {
	svc := &fakeService{item: fileItem()}
	h := newTestServer(t, svc)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("device_id", "dev1"))
	require.NoError(t, w.Close())

	rec := do(h, http.MethodPost, "/upload", &body, w.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc map[string]any
	decode(t, rec, &doc)
	assert.Equal(t, "doc-1", doc["id"])
	assert.Equal(t, "report.pdf", doc["name"])
	assert.Equal(t, "pdf", doc["type"])
	assert.Equal(t, "file", doc["source"])
	assert.Equal(t, "dev1", doc["device_id"])
	assert.Equal(t, "ready", doc["status"])
	assert.Equal(t, float64(2048), doc["size"])
	assert.Equal(t, "2025-06-02T09:00:00Z", doc["uploadedAt"])

	assert.Equal(t, "%PDF-1.4 fake", svc.uploaded)
	assert.Equal(t, "dev1", svc.owner)
}

func TestUpload_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		h := newTestServer(t, &fakeService{item: fileItem()})
		rec := do(h, http.MethodPost, "/upload", strings.NewReader(""), "multipart/form-data; boundary=x")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unsupported format", func(t *testing.T) {
		h := newTestServer(t, &fakeService{err: fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, "pptx")})

		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile("file", "slides.pptx")
		require.NoError(t, err)
		part.Write([]byte("x"))
		require.NoError(t, w.Close())

		rec := do(h, http.MethodPost, "/upload", &body, w.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unsupported format")
	})

	t.Run("too large", func(t *testing.T) {
		s, err := NewServer(&fakeService{item: fileItem()}, WithMaxUploadBytes(16))
		require.NoError(t, err)

		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile("file", "big.txt")
		require.NoError(t, err)
		part.Write(bytes.Repeat([]byte("a"), 1024))
		require.NoError(t, w.Close())

		rec := do(s.Handler(), http.MethodPost, "/upload", &body, w.FormDataContentType())
		assert.NotEqual(t, http.StatusOK, rec.Code)
	})
}

func TestAddURL(t *testing.T) {
	item := &core.ContentItem{
		ID:        "url-1",
		Name:      "example.com/article",
		Type:      core.URLTypeTag,
		Origin:    core.OriginURL,
		Status:    core.StatusReady,
		CreatedAt: testCreated,
	}
	svc := &fakeService{item: item}
	h := newTestServer(t, svc)

	rec := doJSON(h, http.MethodPost, "/add_url", `{"url":"https://example.com/article","device_id":"dev2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc map[string]any
	decode(t, rec, &doc)
	assert.Equal(t, "url/html", doc["type"])
	assert.Equal(t, "url", doc["source"])
	assert.Equal(t, "https://example.com/article", doc["sourceUrl"])
	assert.Equal(t, "dev2", svc.owner)

	rec = doJSON(h, http.MethodPost, "/add_url", `{"device_id":"dev2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = fmt.Errorf("%w: %q", registry.ErrInvalidURL, "ftp://x")
	rec = doJSON(h, http.MethodPost, "/add_url", `{"url":"ftp://x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDocuments(t *testing.T) {
	svc := &fakeService{items: []*core.ContentItem{fileItem()}}
	h := newTestServer(t, svc)

	rec := do(h, http.MethodGet, "/documents?device_id=dev1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var docs []map[string]any
	decode(t, rec, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0]["id"])
	assert.Equal(t, "dev1", svc.owner)

	svc.items = nil
	rec = do(h, http.MethodGet, "/documents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Empty(t, svc.owner)
}

func TestDeleteDocument(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"deleted", nil, http.StatusOK},
		{"not found", core.ErrNotFound, http.StatusNotFound},
		{"forbidden", core.ErrForbidden, http.StatusForbidden},
		{"storage failure", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			h := newTestServer(t, svc)

			rec := do(h, http.MethodDelete, "/documents/doc-1?device_id=dev1", nil, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "doc-1", svc.lastID)
			assert.Equal(t, "dev1", svc.owner)
			if tt.err == nil {
				assert.JSONEq(t, `{"status":"deleted"}`, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"detail"`)
			}
		})
	}
}

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		body      string
		err       error
		status    int
		wantOwner string
	}{
		{"owner from body", "/create_session/doc-1", `{"device_id":"dev1"}`, nil, http.StatusOK, "dev1"},
		{"owner from query", "/create_session/doc-1?device_id=dev2", "", nil, http.StatusOK, "dev2"},
		{"no owner", "/create_session/doc-1", "", nil, http.StatusOK, ""},
		{"not processed", "/create_session/doc-1", "", core.ErrContentNotProcessed, http.StatusNotFound, ""},
		{"session missing", "/create_session/doc-1", "", core.ErrSessionNotFound, http.StatusNotFound, ""},
		{"forbidden", "/create_session/doc-1", `{"device_id":"other"}`, core.ErrForbidden, http.StatusForbidden, "other"},
		{"bad body", "/create_session/doc-1", `{`, nil, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			h := newTestServer(t, svc)

			rec := doJSON(h, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantOwner, svc.owner)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"doc-1","status":"created"}`, rec.Body.String())
			}
		})
	}
}

func TestChat(t *testing.T) {
	svc := &fakeService{result: &core.TurnResult{
		Role:              core.RoleAssistant,
		Content:           "Revenue grew.",
		Sources:           []core.Fragment{{Content: "Revenue grew ten percent.", Metadata: map[string]string{"page": "1"}}},
		MessagesRemaining: 19,
		SessionExpiresIn:  59*time.Minute + 30*time.Second + 500*time.Millisecond,
	}}
	h := newTestServer(t, svc)

	body := `{
		"messages": "What is the summary?",
		"session_ids": "doc-1",
		"history": [
			{"role": "user", "content": "hi"},
			{"role": "system", "content": "ignored"},
			{"role": "assistant", "content": "hello"}
		],
		"device_id": "dev1"
	}`
	rec := doJSON(h, http.MethodPost, "/chat", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	decode(t, rec, &resp)
	assert.Equal(t, "assistant", resp["role"])
	assert.Equal(t, "Revenue grew.", resp["content"])
	assert.Equal(t, float64(19), resp["messages_remaining"])
	assert.InDelta(t, 3570.5, resp["session_expires_in"], 1e-6)
	sources := resp["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "Revenue grew ten percent.", sources[0].(map[string]any)["content"])

	assert.Equal(t, "doc-1", svc.lastReq.SessionID)
	assert.Equal(t, "What is the summary?", svc.lastReq.Message)
	assert.Equal(t, "dev1", svc.lastReq.Owner)
	assert.Equal(t, []core.Turn{
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
	}, svc.lastReq.History)
}

func TestChat_SessionIDList(t *testing.T) {
	svc := &fakeService{result: &core.TurnResult{Role: core.RoleAssistant, Content: "ok"}}
	h := newTestServer(t, svc)

	rec := doJSON(h, http.MethodPost, "/chat", `{"messages":"hi","session_ids":["doc-2","doc-3"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doc-2", svc.lastReq.SessionID)

	var resp map[string]any
	decode(t, rec, &resp)
	assert.Equal(t, []any{}, resp["sources"])

	rec = doJSON(h, http.MethodPost, "/chat", `{"messages":"hi","session_ids":42}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"empty message", core.ErrEmptyMessage, http.StatusBadRequest},
		{"session not found", core.ErrSessionNotFound, http.StatusNotFound},
		{"forbidden", core.ErrForbidden, http.StatusForbidden},
		{"not processed", core.ErrContentNotProcessed, http.StatusNotFound},
		{"load failed", fmt.Errorf("%w: corrupt", core.ErrSessionLoadFailed), http.StatusInternalServerError},
		{"answer failed", fmt.Errorf("%w: timeout", core.ErrAnswerGenerationFailed), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeService{err: tt.err})
			rec := doJSON(h, http.MethodPost, "/chat", `{"messages":"hi","session_ids":"doc-1"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.err.Error())
		})
	}
}

func TestTerminalReply(t *testing.T) {
	svc := &fakeService{result: &core.TurnResult{
		Role:              core.RoleAssistant,
		Content:           "Session has ended due to time limit (1 hour)",
		Sources:           []core.Fragment{},
		MessagesRemaining: 5,
		Terminal:          true,
	}}
	h := newTestServer(t, svc)

	rec := doJSON(h, http.MethodPost, "/chat", `{"messages":"hi","session_ids":"doc-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"role": "assistant",
		"content": "Session has ended due to time limit (1 hour)",
		"sources": [],
		"messages_remaining": 5,
		"session_expires_in": 0
	}`, rec.Body.String())
}

func TestReprocess(t *testing.T) {
	svc := &fakeService{item: fileItem()}
	h := newTestServer(t, svc)

	rec := do(h, http.MethodPost, "/documents/doc-1/reprocess?device_id=dev1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doc-1", svc.lastID)
	assert.Equal(t, "dev1", svc.owner)

	svc.err = fmt.Errorf("%w: doc-1", ingestion.ErrInProgress)
	rec = do(h, http.MethodPost, "/documents/doc-1/reprocess", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, &fakeService{})
	rec := do(h, http.MethodOptions, "/chat", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s, err := NewServer(&fakeService{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

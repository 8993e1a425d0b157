package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codefulcrum/senseai/conversation"
	"github.com/codefulcrum/senseai/core"
	"github.com/gin-gonic/gin"
)

const (
	defaultMaxUploadBytes  = 64 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// Service is the set of operations the HTTP surface exposes.
type Service interface {
	RegisterFile(ctx context.Context, name string, src io.Reader, owner string) (*core.ContentItem, error)
	RegisterURL(ctx context.Context, rawURL, owner string) (*core.ContentItem, error)
	ListContent(ctx context.Context, owner string) ([]*core.ContentItem, error)
	DeleteContent(ctx context.Context, id, owner string) error
	CreateSession(ctx context.Context, id, owner string) error
	Chat(ctx context.Context, req conversation.Request) (*core.TurnResult, error)
	Reprocess(ctx context.Context, id, owner string) (*core.ContentItem, error)
}

// Server routes HTTP requests to a Service.
type Server struct {
	service        Service
	engine         *gin.Engine
	maxUploadBytes int64
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMaxUploadBytes caps the size of an upload request body.
// Default is 64 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) error {
		if n > 0 {
			s.maxUploadBytes = n
		}
		return nil
	}
}

// NewServer creates a server for svc.
func NewServer(svc Service, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, ErrServiceRequired
	}
	s := &Server{
		service:        svc,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         slog.Default().With("component", "httpapi"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.logRequests(), allowCORS())
	s.engine = engine
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/", s.health)
	s.engine.POST("/upload", s.upload)
	s.engine.POST("/add_url", s.addURL)
	s.engine.POST("/create_session/:id", s.createSession)
	s.engine.POST("/chat", s.chat)

	docs := s.engine.Group("/documents")
	{
		docs.GET("", s.listDocuments)
		docs.DELETE("/:id", s.deleteDocument)
		docs.POST("/:id/reprocess", s.reprocess)
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

func allowCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": detail})
}

// health reports liveness.
// GET /
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Document Chat API is running"})
}

// upload registers an uploaded file.
// POST /upload
func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "upload too large"})
			return
		}
		badRequest(c, "file is required")
		return
	}
	defer file.Close()

	item, err := s.service.RegisterFile(c.Request.Context(), header.Filename, file, c.PostForm("device_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(item))
}

// addURL registers a URL.
// POST /add_url
func (s *Server) addURL(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	item, err := s.service.RegisterURL(c.Request.Context(), req.URL, req.DeviceID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(item))
}

// listDocuments lists content items.
// GET /documents
func (s *Server) listDocuments(c *gin.Context) {
	items, err := s.service.ListContent(c.Request.Context(), c.Query("device_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	docs := make([]documentResponse, len(items))
	for i, item := range items {
		docs[i] = newDocumentResponse(item)
	}
	c.JSON(http.StatusOK, docs)
}

// deleteDocument removes a content item.
// DELETE /documents/:id
func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.service.DeleteContent(c.Request.Context(), c.Param("id"), c.Query("device_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// reprocess re-runs ingestion for a content item.
// POST /documents/:id/reprocess
func (s *Server) reprocess(c *gin.Context) {
	item, err := s.service.Reprocess(c.Request.Context(), c.Param("id"), c.Query("device_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(item))
}

// createSession loads the conversation for a content item.
// POST /create_session/:id
func (s *Server) createSession(c *gin.Context) {
	owner := c.Query("device_id")
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}
	if req.DeviceID != "" {
		owner = req.DeviceID
	}

	id := c.Param("id")
	if err := s.service.CreateSession(c.Request.Context(), id, owner); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "created"})
}

// chat runs one chat turn.
// POST /chat
func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := s.service.Chat(c.Request.Context(), conversation.Request{
		SessionID: req.SessionIDs.first(),
		Message:   req.Messages,
		History:   req.turns(),
		Owner:     req.DeviceID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newChatResponse(result))
}

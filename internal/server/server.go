// Package server provides the HTTP API for docchat.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/chat"
	"github.com/fyrsmithlabs/docchat/internal/ingest"
	"github.com/fyrsmithlabs/docchat/internal/store"
	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
)

// Config holds HTTP server configuration.
type Config struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	UploadDir   string `koanf:"upload_dir"`
	MaxUploadMB int    `koanf:"max_upload_mb"`
}

// ApplyDefaults fills in unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(os.TempDir(), "docchat-uploads")
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 50
	}
}

// Server exposes chat and document ingestion over HTTP.
type Server struct {
	echo     *echo.Echo
	chat     *chat.Service
	pipeline *ingest.Pipeline
	store    *store.Store
	logger   *zap.Logger
	config   Config
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(chatSvc *chat.Service, pipeline *ingest.Pipeline, st *store.Store, logger *zap.Logger, cfg Config) (*Server, error) {
	if chatSvc == nil || pipeline == nil || st == nil {
		return nil, fmt.Errorf("chat service, pipeline and store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadMB)))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		chat:     chatSvc,
		pipeline: pipeline,
		store:    st,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.POST("/documents", s.handleUpload)
	v1.GET("/documents", s.handleListDocuments)
	v1.GET("/sessions", s.handleListSessions)
	v1.GET("/sessions/:id/messages", s.handleListMessages)
}

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// UploadResponse is the response body for POST /api/v1/documents.
type UploadResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Extractor  string `json:"extractor"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	reply, err := s.chat.Respond(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrGenerationFailed) {
			s.logger.Error("chat completion failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadGateway, "chat completion failed")
		}
		s.logger.Error("chat turn failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "chat turn failed")
	}
	return c.JSON(http.StatusOK, reply)
}

// handleUpload receives one multipart file, stores a copy in the upload dir
// and runs it through the ingestion pipeline. The outcome is recorded in the
// document table either way so failed uploads stay visible.
func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	docID := uuid.NewString()
	ext := filepath.Ext(fh.Filename)
	blobPath := filepath.Join(s.config.UploadDir, docID+ext)
	if err := s.saveUpload(fh, blobPath); err != nil {
		s.logger.Error("saving upload failed", zap.String("name", fh.Filename), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "saving upload failed")
	}

	ctx := c.Request().Context()
	doc := store.Document{
		ID:        docID,
		Name:      fh.Filename,
		SizeBytes: fh.Size,
	}

	res, ingestErr := s.pipeline.Ingest(ctx, blobPath, ext, fh.Filename)
	if ingestErr != nil {
		doc.Status = store.DocumentError
		doc.Error = ingestErr.Error()
	} else {
		doc.Status = store.DocumentProcessed
		doc.Extractor = res.Extractor
		doc.ChunkCount = res.ChunkCount
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		s.logger.Error("recording document failed", zap.String("id", docID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "recording document failed")
	}

	if ingestErr != nil {
		s.logger.Error("ingestion failed",
			zap.String("id", docID),
			zap.String("name", fh.Filename),
			zap.Error(ingestErr))
		if errors.Is(ingestErr, vectorstore.ErrDuplicateID) {
			return echo.NewHTTPError(http.StatusConflict, "document chunks already indexed")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "ingestion failed")
	}

	return c.JSON(http.StatusCreated, UploadResponse{
		ID:         docID,
		Name:       fh.Filename,
		Extractor:  doc.Extractor,
		ChunkCount: doc.ChunkCount,
		Status:     doc.Status,
	})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.store.ListDocuments(c.Request().Context(), queryLimit(c))
	if err != nil {
		s.logger.Error("listing documents failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "listing documents failed")
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.store.ListSessions(c.Request().Context(), queryLimit(c))
	if err != nil {
		s.logger.Error("listing sessions failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "listing sessions failed")
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleListMessages(c echo.Context) error {
	sessionID := c.Param("id")
	msgs, err := s.store.ListMessages(c.Request().Context(), sessionID, queryLimit(c))
	if err != nil {
		s.logger.Error("listing messages failed", zap.String("session_id", sessionID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "listing messages failed")
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return err
	}
	return out.Close()
}

func queryLimit(c echo.Context) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

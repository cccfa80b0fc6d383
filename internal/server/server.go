// Package server provides the HTTP API for honyaku.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kotobalab/honyaku/internal/config"
	"github.com/kotobalab/honyaku/internal/extract"
	"github.com/kotobalab/honyaku/internal/kb"
	"github.com/kotobalab/honyaku/internal/llm"
	"github.com/kotobalab/honyaku/internal/progress"
	"github.com/kotobalab/honyaku/internal/translate"
)

// Server is the HTTP server for the honyaku API.
type Server struct {
	registry    *kb.Registry
	controller  *kb.Controller
	service     *kb.Service
	pipeline    *translate.Pipeline
	broadcaster *progress.Broadcaster
	extractor   *extract.Extractor
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	registry *kb.Registry,
	controller *kb.Controller,
	service *kb.Service,
	pipeline *translate.Pipeline,
	broadcaster *progress.Broadcaster,
	extractor *extract.Extractor,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		registry:    registry,
		controller:  controller,
		service:     service,
		pipeline:    pipeline,
		broadcaster: broadcaster,
		extractor:   extractor,
		config:      cfg,
		logger:      logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/api/knowledge_bases", s.handleListKnowledgeBases)
	r.Post("/api/knowledge_base", s.handleCreateKnowledgeBase)
	r.Delete("/api/knowledge_base/{id}", s.handleDeleteKnowledgeBase)
	r.Post("/api/knowledge_base/switch/{id}", s.handleSwitchKnowledgeBase)
	r.Post("/api/knowledge_base/reset/{id}", s.handleResetKnowledgeBase)
	r.Get("/api/knowledge_base/{id}/files", s.handleKnowledgeBaseFiles)
	r.Delete("/api/knowledge_base/{id}/file/{docID}", s.handleDeleteDocument)
	r.Get("/api/knowledge_base/{id}/search", s.handleKeywordSearch)

	r.Post("/api/translate", s.handleTranslate)
	r.Post("/api/upload_and_translate", s.handleUploadAndTranslate)
	r.Post("/api/embed", s.handleEmbed)
	r.Post("/api/query", s.handleQuery)
	r.Get("/api/events", s.handleEvents)

	r.Get("/api/files", s.handleFilesList)
	r.Post("/api/files/upload", s.handleFilesUpload)
	r.Get("/api/files/content/*", s.handleFilesContent)
	r.Post("/api/files/create_folder", s.handleFilesCreateFolder)
	r.Delete("/api/files/folder/*", s.handleFilesDeleteFolder)
	r.Delete("/api/files/*", s.handleFilesDelete)

	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// respondDomainError maps domain errors onto HTTP statuses.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kb.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, kb.ErrInvalidOperation), errors.Is(err, extract.ErrUnsupportedType):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, llm.ErrExternal):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// Package server provides the HTTP API for medmatch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/medmatch/internal/classify"
	"github.com/hyperjump/medmatch/internal/config"
	"github.com/hyperjump/medmatch/internal/lifecycle"
	"github.com/hyperjump/medmatch/internal/storage"
)

// Server is the HTTP server for the medmatch API.
type Server struct {
	engine  *classify.Engine
	catalog storage.Catalog
	manager *lifecycle.Manager
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *classify.Engine,
	catalog storage.Catalog,
	manager *lifecycle.Manager,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:  engine,
		catalog: catalog,
		manager: manager,
		config:  cfg,
		logger:  logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Post("/api/v1/classify", s.handleClassify)
	r.Get("/api/v1/diseases", s.handleListDiseases)
	r.Post("/api/v1/diseases", s.handleCreateDisease)
	r.Get("/api/v1/diseases/{id}", s.handleGetDisease)
	r.Delete("/api/v1/diseases/{id}", s.handleDeleteDisease)
	r.Put("/api/v1/diseases/{id}/description", s.handleUpdateDescription)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
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

// Package server provides the HTTP API for lmsearch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/keyword"
	"github.com/hyperjump/lmsearch/internal/layers"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/session"
	"go.uber.org/zap"
)

// Suggester answers one-shot suggestion requests.
type Suggester interface {
	Suggest(ctx context.Context, text string, limit int) []*models.Suggestion
}

// Importer imports and removes layer files.
type Importer interface {
	ImportFile(ctx context.Context, path string, allowedExts []string) (bool, error)
	ImportDirectory(ctx context.Context, dir string, allowedExts []string) (int, error)
	DeleteLayer(ctx context.Context, name string) error
}

// DirectoryLister reports the watched layer directories.
type DirectoryLister interface {
	Directories() []string
}

// Server is the HTTP server for the lmsearch API.
type Server struct {
	cfg       *config.Config
	sessions  *session.Manager
	suggester Suggester
	registry  layers.Registry
	keyword   keyword.FeatureIndex
	importer  Importer
	watch     DirectoryLister
	validate  *validator.Validate
	logger    *zap.Logger
	started   time.Time
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithKeywordIndex reports the local full-text index in status.
func WithKeywordIndex(idx keyword.FeatureIndex) Option {
	return func(s *Server) { s.keyword = idx }
}

// WithImporter enables the layer import and delete endpoints.
func WithImporter(imp Importer) Option {
	return func(s *Server) { s.importer = imp }
}

// WithWatcher enables the watched directories endpoint.
func WithWatcher(w DirectoryLister) Option {
	return func(s *Server) { s.watch = w }
}

// NewServer creates a server with the given dependencies.
func NewServer(cfg *config.Config, sessions *session.Manager, suggester Suggester, registry layers.Registry, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		sessions:  sessions,
		suggester: suggester,
		registry:  registry,
		validate:  validator.New(),
		logger:    zap.NewNop(),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/suggest", s.handleSuggest)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Post("/input", s.handleInput)
			r.Get("/suggestions", s.handleSuggestions)
			r.Post("/select", s.handleSelect)
			r.Post("/clear", s.handleClear)
			r.Post("/click", s.handleClick)
			r.Post("/toggle", s.handleToggle)
			r.Post("/interaction", s.handleInteraction)
			r.Put("/view", s.handleView)
			r.Get("/map", s.handleMap)
			r.Delete("/modal", s.handleCloseModal)
		})

		r.Get("/layers", s.handleListLayers)
		r.Post("/layers", s.handleImportLayers)
		r.Get("/layers/directories", s.handleLayerDirectories)
		r.Get("/layers/{name}", s.handleGetLayer)
		r.Delete("/layers/{name}", s.handleDeleteLayer)
		r.Get("/layers/{name}/features", s.handleLayerFeatures)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
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

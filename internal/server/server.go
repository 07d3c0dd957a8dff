// Package server provides the HTTP API for pdfsearch.
package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/config"
	"github.com/hyperjump/pdfsearch/internal/ingest"
	"github.com/hyperjump/pdfsearch/internal/models"
)

// Uploader ingests uploaded files.
type Uploader interface {
	Upload(ctx context.Context, u ingest.Upload) (*ingest.Result, error)
	MaxUploadBytes() int64
}

// Searcher answers search queries.
type Searcher interface {
	Search(ctx context.Context, query string) (*models.SearchResponse, error)
}

// TicketReader looks up dispatch tickets.
type TicketReader interface {
	Ticket(ctx context.Context, id string) (*models.DispatchTicket, error)
}

// FileOpener opens stored originals by filename.
type FileOpener interface {
	Open(name string) (*os.File, error)
}

// Registry lists ingested documents and reports registry counts for the status endpoint.
type Registry interface {
	GetDocument(ctx context.Context, id string) (*models.StoredDocument, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.StoredDocument, error)
	CountDocuments(ctx context.Context) (int64, error)
	CountTicketsByStatus(ctx context.Context) (map[models.TicketStatus]int64, error)
}

// IndexCounter is implemented by searchers that can report the size of their index.
type IndexCounter interface {
	IndexedDocuments(ctx context.Context) (uint64, error)
}

// StatusInfo is the static part of the status response.
type StatusInfo struct {
	EngineType   string   `json:"engine"`
	CacheType    string   `json:"cache"`
	IndexName    string   `json:"index_name"`
	IndexingMode string   `json:"indexing_mode"`
	DiskPaths    []string `json:"-"`
}

// Server is the HTTP server for the pdfsearch API.
type Server struct {
	uploads  Uploader
	searcher Searcher
	tickets  TicketReader
	files    FileOpener
	registry Registry
	info     StatusInfo
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. registry may be nil, which
// disables the document routes and the registry part of the status response.
func NewServer(
	uploads Uploader,
	searcher Searcher,
	tickets TicketReader,
	files FileOpener,
	registry Registry,
	info StatusInfo,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		uploads:  uploads,
		searcher: searcher,
		tickets:  tickets,
		files:    files,
		registry: registry,
		info:     info,
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/search", s.handleSearch)
		r.Get("/download/{filename}", s.handleDownload)
		r.Get("/tickets/{id}", s.handleTicket)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("base_url", s.config.BaseURL))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

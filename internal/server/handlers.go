package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/dispatch"
	"github.com/hyperjump/pdfsearch/internal/extract"
	"github.com/hyperjump/pdfsearch/internal/ingest"
	"github.com/hyperjump/pdfsearch/internal/models"
	"github.com/hyperjump/pdfsearch/internal/search"
	"github.com/hyperjump/pdfsearch/internal/storage"
)

const (
	// formOverhead is allowed on top of the file limit for multipart framing and fields.
	formOverhead = 1 << 20
	// maxFormMemory is kept in memory while parsing; the rest spills to temp files.
	maxFormMemory = 32 << 20

	defaultPageSize = 50
	maxPageSize     = 500

	msgUploaded = "File uploaded and indexed successfully."
	msgQueued   = "File uploaded and queued for indexing."
)

type uploadResponse struct {
	Message string `json:"message"`
	*ingest.Result
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.uploads.MaxUploadBytes()
	if r.ContentLength > limit+formOverhead {
		s.respondIngestError(w, ingest.ErrPayloadTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondIngestError(w, ingest.ErrPayloadTooLarge)
			return
		}
		s.logger.Debug("upload: unreadable form", zap.Error(err))
		s.respondIngestError(w, ingest.ErrMissingFile)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	upload := ingest.Upload{
		Metadata: ingest.Metadata{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Category:    r.FormValue("category"),
		},
	}
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		upload.File = file
		upload.Filename = header.Filename
	}

	s.logger.Debug("upload request", zap.String("filename", upload.Filename))
	res, err := s.uploads.Upload(r.Context(), upload)
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	msg := msgUploaded
	if res.Ticket != nil && !res.Ticket.Status.Terminal() {
		msg = msgQueued
	}
	s.respondJSON(w, http.StatusCreated, uploadResponse{Message: msg, Result: res})
}

// respondIngestError maps upload pipeline errors to status codes and messages.
func (s *Server) respondIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrMissingFile):
		s.respondError(w, http.StatusBadRequest, "No file uploaded. Please select a file to upload")
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		s.respondError(w, http.StatusUnsupportedMediaType, "Only PDF files are supported.")
	case errors.Is(err, ingest.ErrPayloadTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File size exceeds %d MB limit.", s.uploads.MaxUploadBytes()>>20))
	case errors.Is(err, extract.ErrMalformedDocument):
		s.respondError(w, http.StatusUnprocessableEntity, "PDF could not be parsed.")
	case errors.Is(err, ingest.ErrUnreadableContent):
		s.respondError(w, http.StatusUnprocessableEntity, "PDF does not contain readable text.")
	case errors.Is(err, dispatch.ErrIndexingFailed):
		s.logger.Error("upload: indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "indexing failed")
	default:
		s.logger.Error("upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "upload failed")
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	s.logger.Debug("search request", zap.String("query", query))
	resp, err := s.searcher.Search(r.Context(), query)
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		s.respondError(w, http.StatusBadRequest, "No query provided.")
		return
	case err != nil:
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !storage.ValidName(name) {
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	f, err := s.files.Open(name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("download: open failed", zap.String("filename", name), zap.Error(err))
		}
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ticket, err := s.tickets.Ticket(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "ticket not found")
			return
		}
		s.logger.Error("ticket lookup failed", zap.String("ticket", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "ticket lookup failed")
		return
	}
	s.respondJSON(w, http.StatusOK, ticket)
}

type documentsResponse struct {
	Documents []*models.StoredDocument `json:"documents"`
	Total     int64                    `json:"total"`
	Offset    int                      `json:"offset"`
	Limit     int                      `json:"limit"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.respondError(w, http.StatusServiceUnavailable, "document registry unavailable")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	ctx := r.Context()
	docs, err := s.registry.ListDocuments(ctx, offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "document listing failed")
		return
	}
	total, err := s.registry.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "document listing failed")
		return
	}
	if docs == nil {
		docs = []*models.StoredDocument{}
	}
	s.respondJSON(w, http.StatusOK, documentsResponse{Documents: docs, Total: total, Offset: offset, Limit: limit})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.respondError(w, http.StatusServiceUnavailable, "document registry unavailable")
		return
	}
	id := chi.URLParam(r, "id")
	doc, err := s.registry.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("document lookup failed", zap.String("document", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

// queryInt parses the named query parameter, returning def when it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"engine":        s.info.EngineType,
		"cache":         s.info.CacheType,
		"index_name":    s.info.IndexName,
		"indexing_mode": s.info.IndexingMode,
	}
	if s.registry != nil {
		docCount, err := s.registry.CountDocuments(ctx)
		if err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "status unavailable")
			return
		}
		tickets, err := s.registry.CountTicketsByStatus(ctx)
		if err != nil {
			s.logger.Error("status: count tickets failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "status unavailable")
			return
		}
		resp["documents"] = docCount
		resp["tickets"] = tickets
	}
	if counter, ok := s.searcher.(IndexCounter); ok {
		if n, err := counter.IndexedDocuments(ctx); err == nil {
			resp["index_documents"] = n
		} else {
			s.logger.Warn("status: index count unavailable", zap.Error(err))
		}
	}
	if len(s.info.DiskPaths) > 0 {
		if diskBytes, err := storage.DiskUsageBytes(s.info.DiskPaths...); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

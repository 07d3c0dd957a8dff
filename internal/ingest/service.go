package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/fileid"
	"github.com/hyperjump/pdfsearch/internal/models"
)

// FileStore saves and removes uploaded originals.
type FileStore interface {
	Save(ctx context.Context, name string, content []byte) error
	Remove(name string) error
}

// Dispatcher hands a record to the indexing pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, indexName, id string, record models.IndexRecord) (*models.DispatchTicket, error)
}

// Registry records ingested documents.
type Registry interface {
	CreateDocument(ctx context.Context, doc *models.StoredDocument) error
}

// Result describes an accepted upload.
type Result struct {
	ID          string                 `json:"id"`
	Filename    string                 `json:"filename"`
	DownloadURL string                 `json:"download_url"`
	Ticket      *models.DispatchTicket `json:"ticket"`
}

// Service runs the upload pipeline: validate, store the original, build the record,
// dispatch it and register the document.
type Service struct {
	validator  *Validator
	builder    *RecordBuilder
	files      FileStore
	dispatcher Dispatcher
	registry   Registry
	indexName  string
	logger     *zap.Logger
	newID      func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithRegistry records accepted uploads in r.
func WithRegistry(r Registry) ServiceOption {
	return func(s *Service) {
		s.registry = r
	}
}

// NewService returns an ingestion service writing to indexName.
func NewService(v *Validator, b *RecordBuilder, files FileStore, d Dispatcher, indexName string, opts ...ServiceOption) *Service {
	s := &Service{
		validator:  v,
		builder:    b,
		files:      files,
		dispatcher: d,
		indexName:  indexName,
		logger:     zap.NewNop(),
		newID:      fileid.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxUploadBytes returns the validator's size limit.
func (s *Service) MaxUploadBytes() int64 {
	return s.validator.MaxBytes()
}

// Upload ingests u. A rejected upload leaves nothing behind. When dispatch fails the stored
// original is removed and the dispatch error returned.
func (s *Service) Upload(ctx context.Context, u Upload) (*Result, error) {
	valid, err := s.validator.Validate(u)
	if err != nil {
		return nil, err
	}

	id := s.newID()
	filename := fileid.StorageName(id, valid.OriginalName)
	if err := s.files.Save(ctx, filename, valid.Data); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	record := s.builder.Build(filename, valid.Metadata, valid.Content)
	ticket, err := s.dispatcher.Dispatch(ctx, s.indexName, id, record)
	if err != nil {
		if rmErr := s.files.Remove(filename); rmErr != nil {
			s.logger.Warn("failed to remove stored upload", zap.String("filename", filename), zap.Error(rmErr))
		}
		return nil, err
	}

	if s.registry != nil {
		doc := &models.StoredDocument{
			ID:           id,
			Filename:     filename,
			OriginalName: valid.OriginalName,
			Title:        record.Title,
			Description:  record.Description,
			Category:     record.Category,
			DownloadURL:  record.DownloadURL,
			SizeBytes:    valid.Size,
		}
		if ticket != nil {
			doc.TicketID = ticket.ID
		}
		if err := s.registry.CreateDocument(ctx, doc); err != nil {
			s.logger.Warn("failed to register document", zap.String("id", id), zap.Error(err))
		}
	}

	s.logger.Info("document uploaded",
		zap.String("id", id),
		zap.String("filename", filename),
		zap.Int64("size", valid.Size),
	)
	return &Result{ID: id, Filename: filename, DownloadURL: record.DownloadURL, Ticket: ticket}, nil
}

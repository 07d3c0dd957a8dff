package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/camelcase"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/models"
)

// contentAnalyzer tokenizes on word boundaries, splits camelCase runs and lowercases, so words
// glued together at page boundaries ("reportBeta") remain individually searchable.
const contentAnalyzer = "content_text"

// BleveEngine implements Engine with embedded on-disk Bleve indexes, one per index name,
// stored under a root directory.
type BleveEngine struct {
	root    string
	logger  *zap.Logger
	mu      sync.Mutex
	indexes map[string]bleve.Index
}

// BleveOption configures a BleveEngine.
type BleveOption func(*BleveEngine)

// WithBleveLogger sets the logger.
func WithBleveLogger(l *zap.Logger) BleveOption {
	return func(b *BleveEngine) {
		b.logger = l
	}
}

// NewBleveEngine returns an engine storing its indexes under root.
func NewBleveEngine(root string, opts ...BleveOption) (*BleveEngine, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bleve directory: %w", err)
	}
	b := &BleveEngine{root: root, logger: zap.NewNop(), indexes: make(map[string]bleve.Index)}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func buildMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(contentAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{camelcase.Name, lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = contentAnalyzer
	for _, f := range []string{FieldTitle, FieldDescription, FieldDownloadURL, FieldContent} {
		docMapping.AddFieldMappingsAt(f, textField)
	}
	keywordField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt(FieldCategory, keywordField)
	docMapping.AddFieldMappingsAt(FieldFilename, keywordField)

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = contentAnalyzer
	return im, nil
}

func (b *BleveEngine) indexPath(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("invalid index name %q", name)
	}
	return filepath.Join(b.root, name+".bleve"), nil
}

// open returns the named index, opening it from disk when present. When create is true a
// missing index is created; otherwise ErrIndexNotFound is returned.
func (b *BleveEngine) open(name string, create bool) (bleve.Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indexes[name]; ok {
		return idx, nil
	}
	path, err := b.indexPath(name)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		b.indexes[name] = idx
		return idx, nil
	}
	if !create {
		return nil, fmt.Errorf("%s: %w", name, ErrIndexNotFound)
	}

	im, err := buildMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	b.logger.Info("created index", zap.String("index", name), zap.String("path", path))
	b.indexes[name] = idx
	return idx, nil
}

// EnsureIndex opens or creates the named index.
func (b *BleveEngine) EnsureIndex(ctx context.Context, name string) error {
	_, err := b.open(name, true)
	return err
}

// Upsert indexes the record by id. Indexes are created on first write.
func (b *BleveEngine) Upsert(ctx context.Context, index, id string, record *models.IndexRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx, err := b.open(index, true)
	if err != nil {
		return err
	}
	doc := map[string]interface{}{
		FieldTitle:       record.Title,
		FieldDescription: record.Description,
		FieldCategory:    record.Category,
		FieldFilename:    record.Filename,
		FieldDownloadURL: record.DownloadURL,
		FieldContent:     record.Content,
	}
	if err := idx.Index(id, doc); err != nil {
		return fmt.Errorf("Bleve index failed: %w", err)
	}
	return nil
}

// Search runs a disjunction of match queries, one per field, and returns up to limit hits
// with their stored records.
func (b *BleveEngine) Search(ctx context.Context, index, query string, fields []string, limit int) ([]Hit, error) {
	idx, err := b.open(index, false)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		fields = SearchFields
	}
	queries := make([]blevequery.Query, 0, len(fields))
	for _, f := range fields {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(f)
		queries = append(queries, mq)
	}
	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit
	req.Fields = []string{"*"}

	results, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make([]Hit, len(results.Hits))
	for i, h := range results.Hits {
		hits[i] = Hit{
			ID:    h.ID,
			Score: h.Score,
			Record: models.IndexRecord{
				Title:       stringField(h.Fields, FieldTitle),
				Description: stringField(h.Fields, FieldDescription),
				Category:    stringField(h.Fields, FieldCategory),
				Filename:    stringField(h.Fields, FieldFilename),
				DownloadURL: stringField(h.Fields, FieldDownloadURL),
				Content:     stringField(h.Fields, FieldContent),
			},
		}
	}
	return hits, nil
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

// DocCount returns the number of records in the named index, or zero if it does not exist.
func (b *BleveEngine) DocCount(_ context.Context, index string) (uint64, error) {
	idx, err := b.open(index, false)
	if errors.Is(err, ErrIndexNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Path returns the directory holding the indexes.
func (b *BleveEngine) Path() string {
	return b.root
}

// Close closes every open index.
func (b *BleveEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for name, idx := range b.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close index %s: %w", name, err)
		}
		delete(b.indexes, name)
	}
	return firstErr
}
